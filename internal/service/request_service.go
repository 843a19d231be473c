package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/capacity"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/repository"
)

// RequestService admits participation requests against event capacity.
// Every operation that can change an event's confirmed count runs under the
// event's lock.
type RequestService struct {
	store    repository.Store
	capacity *capacity.Tracker
	now      func() time.Time
	log      zerolog.Logger
}

// NewRequestService constructs a RequestService.
func NewRequestService(store repository.Store, tracker *capacity.Tracker, log zerolog.Logger) *RequestService {
	return &RequestService{store: store, capacity: tracker, now: time.Now, log: log}
}

// Create files a participation request. The request is confirmed at once
// when the event needs no moderation or has no limit; otherwise it waits
// PENDING for the initiator's decision.
func (s *RequestService) Create(ctx context.Context, requesterID, eventID string) (*model.ParticipationRequest, error) {
	const op = "create request for event"
	if _, err := requireUser(ctx, s.store, op, requesterID); err != nil {
		return nil, err
	}

	var created model.ParticipationRequest
	err := s.store.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		e := tx.Event()
		if e.InitiatorID == requesterID {
			return model.Errorf(model.ErrConditionsNotMet, op,
				"the initiator of the event cannot request to participate in it")
		}
		if e.State != model.EventPublished {
			return model.Errorf(model.ErrConditionsNotMet, op, "cannot participate in an unpublished event")
		}
		dup, err := tx.HasActiveRequest(ctx, requesterID)
		if err != nil {
			return err
		}
		if dup {
			return model.Errorf(model.ErrConditionsNotMet, op, "a repeated request is not allowed")
		}
		if !e.HasFreeSlot() {
			return model.Errorf(model.ErrLimitReached, op, "the participant limit has been reached")
		}

		r := model.ParticipationRequest{
			ID:          uuid.NewString(),
			EventID:     e.ID,
			RequesterID: requesterID,
			Status:      model.RequestPending,
			CreatedAt:   s.now(),
		}
		if !e.RequestModeration || e.Unlimited() {
			ok, err := s.capacity.TryReserveSlot(ctx, tx)
			if err != nil {
				return err
			}
			if ok {
				r.Status = model.RequestConfirmed
			}
		}

		if err := tx.InsertRequest(ctx, &r); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return model.Errorf(model.ErrConditionsNotMet, op, "a repeated request is not allowed")
			}
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, missing(op, "Event", eventID, err)
	}

	s.log.Info().Str("request_id", created.ID).Str("event_id", eventID).Str("requester_id", requesterID).
		Str("status", string(created.Status)).Msg("participation request created")
	return &created, nil
}

// BulkDecide applies the initiator's decision to PENDING requests in the
// order given. Confirmations that find the event full are CANCELED and
// reported among the rejected. The whole batch is validated before the
// first write, so an invalid item leaves every request untouched.
func (s *RequestService) BulkDecide(ctx context.Context, initiatorID, eventID string, upd model.StatusUpdate) (*model.BulkDecision, error) {
	const op = "update status of requests for event"
	if !upd.Status.Decidable() {
		return nil, model.Errorf(model.ErrIncorrectRequest, op, "status must be CONFIRMED or REJECTED, got %s", upd.Status)
	}
	if _, err := requireUser(ctx, s.store, op, initiatorID); err != nil {
		return nil, err
	}

	var result model.BulkDecision
	err := s.store.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		result = model.BulkDecision{
			Confirmed: []model.ParticipationRequest{},
			Rejected:  []model.ParticipationRequest{},
		}

		e := tx.Event()
		if e.InitiatorID != initiatorID {
			return model.Errorf(model.ErrNotFound, op, "Event with id=%s was not found", eventID)
		}
		if !e.RequestModeration {
			return model.Errorf(model.ErrConditionsNotMet, op,
				"pre-moderation of requests is disabled, confirmation is not required")
		}
		if !e.Unlimited() && !e.HasFreeSlot() {
			return model.Errorf(model.ErrLimitReached, op, "the participant limit has been reached")
		}

		found, err := tx.Requests(ctx, upd.RequestIDs)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(upd.RequestIDs))
		for _, id := range upd.RequestIDs {
			if seen[id] {
				return model.Errorf(model.ErrIncorrectRequest, op, "request with id=%s is listed twice", id)
			}
			seen[id] = true
			r, ok := found[id]
			if !ok {
				return model.Errorf(model.ErrNotFound, op, "Request with id=%s was not found", id)
			}
			if r.Status != model.RequestPending {
				return model.Errorf(model.ErrIncorrectRequest, op, "request with id=%s must have status PENDING", id)
			}
		}

		for _, id := range upd.RequestIDs {
			r := found[id]
			next := upd.Status
			if next == model.RequestConfirmed {
				ok, err := s.capacity.TryReserveSlot(ctx, tx)
				if err != nil {
					return err
				}
				if !ok {
					next = model.RequestCanceled
				}
			}
			if err := r.Status.Transition(next); err != nil {
				return err
			}
			if err := tx.SetRequestStatus(ctx, id, next); err != nil {
				return err
			}
			r.Status = next
			if next == model.RequestConfirmed {
				result.Confirmed = append(result.Confirmed, r)
			} else {
				result.Rejected = append(result.Rejected, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, missing(op, "Event", eventID, err)
	}

	s.log.Info().Str("event_id", eventID).Str("decision", string(upd.Status)).
		Int("confirmed", len(result.Confirmed)).Int("rejected", len(result.Rejected)).
		Msg("participation requests decided")
	return &result, nil
}

// Cancel withdraws the requester's own request, freeing its slot if it was
// confirmed. Canceling a canceled request changes nothing.
func (s *RequestService) Cancel(ctx context.Context, requesterID, requestID string) (*model.ParticipationRequest, error) {
	const op = "cancel request for event"
	if _, err := requireUser(ctx, s.store, op, requesterID); err != nil {
		return nil, err
	}
	r, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, missing(op, "Request", requestID, err)
	}
	if r.RequesterID != requesterID {
		return nil, model.Errorf(model.ErrNotFound, op, "Request with id=%s was not found", requestID)
	}

	var (
		result   model.ParticipationRequest
		released bool
	)
	err = s.store.WithEventLock(ctx, r.EventID, func(tx repository.EventTx) error {
		released = false
		cur, err := tx.Request(ctx, requestID)
		if err != nil {
			return missing(op, "Request", requestID, err)
		}
		result = *cur
		if cur.Status == model.RequestCanceled {
			return nil
		}
		if err := cur.Status.Transition(model.RequestCanceled); err != nil {
			return err
		}
		if cur.Status == model.RequestConfirmed {
			if err := s.capacity.ReleaseSlot(ctx, tx); err != nil {
				return err
			}
			released = true
		}
		if err := tx.SetRequestStatus(ctx, requestID, model.RequestCanceled); err != nil {
			return err
		}
		result.Status = model.RequestCanceled
		return nil
	})
	if err != nil {
		return nil, missing(op, "Event", r.EventID, err)
	}

	s.log.Info().Str("request_id", requestID).Str("event_id", r.EventID).Bool("slot_released", released).
		Msg("participation request canceled")
	return &result, nil
}

// ListForEvent returns every request of an event to its initiator.
func (s *RequestService) ListForEvent(ctx context.Context, initiatorID, eventID string) ([]model.ParticipationRequest, error) {
	const op = "get requests for event of initiator"
	if _, err := requireUser(ctx, s.store, op, initiatorID); err != nil {
		return nil, err
	}
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, missing(op, "Event", eventID, err)
	}
	if e.InitiatorID != initiatorID {
		return nil, model.Errorf(model.ErrNotFound, op, "Event with id=%s was not found", eventID)
	}
	reqs, err := s.store.ListRequestsByEvent(ctx, eventID)
	if err != nil {
		return nil, wrap(op, err)
	}
	return reqs, nil
}

// ListByRequester returns the requests a user has filed, oldest first.
func (s *RequestService) ListByRequester(ctx context.Context, requesterID string) ([]model.ParticipationRequest, error) {
	const op = "get requests of user"
	if _, err := requireUser(ctx, s.store, op, requesterID); err != nil {
		return nil, err
	}
	reqs, err := s.store.ListRequestsByRequester(ctx, requesterID)
	if err != nil {
		return nil, wrap(op, err)
	}
	return reqs, nil
}

// Capacity reports the free participant slots of a published event.
func (s *RequestService) Capacity(ctx context.Context, eventID string) (capacity.Remaining, error) {
	const op = "get event capacity"
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return capacity.Remaining{}, missing(op, "Event", eventID, err)
	}
	if e.State != model.EventPublished {
		return capacity.Remaining{}, model.Errorf(model.ErrNotFound, op, "Event with id=%s was not found", eventID)
	}
	rem, err := s.capacity.RemainingCapacity(ctx, eventID)
	if err != nil {
		return capacity.Remaining{}, missing(op, "Event", eventID, err)
	}
	return rem, nil
}
