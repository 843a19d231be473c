package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/repository"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/stats"
)

// EventService drives the moderation lifecycle of events and serves their
// public reads.
type EventService struct {
	store repository.Store
	views stats.Aggregator
	hits  HitSink
	app   string
	now   func() time.Time
	log   zerolog.Logger
}

// NewEventService constructs an EventService. app is the application name
// reported with every recorded hit.
func NewEventService(
	store repository.Store,
	views stats.Aggregator,
	hits HitSink,
	app string,
	log zerolog.Logger,
) *EventService {
	return &EventService{store: store, views: views, hits: hits, app: app, now: time.Now, log: log}
}

// Submit creates a PENDING event owned by initiatorID.
func (s *EventService) Submit(ctx context.Context, initiatorID string, in model.NewEvent) (*model.Event, error) {
	const op = "add event"
	if _, err := requireUser(ctx, s.store, op, initiatorID); err != nil {
		return nil, err
	}
	now := s.now()
	if err := checkEventDate(op, in.EventDate, now); err != nil {
		return nil, err
	}

	e := &model.Event{
		ID:                uuid.NewString(),
		Title:             in.Title,
		Annotation:        in.Annotation,
		Description:       in.Description,
		EventDate:         in.EventDate,
		InitiatorID:       initiatorID,
		Paid:              model.DefaultPaid,
		ParticipantLimit:  model.DefaultParticipantLimit,
		RequestModeration: model.DefaultRequestModeration,
		State:             model.EventPending,
		CreatedOn:         now,
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.Paid != nil {
		e.Paid = *in.Paid
	}
	if in.ParticipantLimit != nil {
		e.ParticipantLimit = *in.ParticipantLimit
	}
	if in.RequestModeration != nil {
		e.RequestModeration = *in.RequestModeration
	}

	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, missing(op, "User", initiatorID, err)
	}
	s.log.Info().Str("event_id", e.ID).Str("initiator_id", initiatorID).Msg("event submitted")
	return e, nil
}

// ListByInitiator pages through the events of one initiator.
func (s *EventService) ListByInitiator(ctx context.Context, initiatorID string, page model.Page) ([]model.Event, error) {
	const op = "get events of user"
	if _, err := requireUser(ctx, s.store, op, initiatorID); err != nil {
		return nil, err
	}
	events, err := s.store.ListEventsByInitiator(ctx, initiatorID, page)
	if err != nil {
		return nil, wrap(op, err)
	}
	s.decorate(ctx, events, false)
	return events, nil
}

// GetByInitiator returns one event of its initiator in any state.
func (s *EventService) GetByInitiator(ctx context.Context, initiatorID, eventID string) (*model.Event, error) {
	const op = "get event of user"
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
	s.decorateOne(ctx, e, false)
	return e, nil
}

// InitiatorEdit changes an unpublished event. CANCEL_REVIEW withdraws it;
// any other edit, with or without SEND_TO_REVIEW, puts it back to PENDING.
func (s *EventService) InitiatorEdit(ctx context.Context, initiatorID, eventID string, upd model.EventUpdate) (*model.Event, error) {
	const op = "update event by user"
	if upd.StateAction != nil && !upd.StateAction.ByInitiator() {
		return nil, model.Errorf(model.ErrIncorrectRequest, op, "state action %s is not available to the initiator", *upd.StateAction)
	}
	if _, err := requireUser(ctx, s.store, op, initiatorID); err != nil {
		return nil, err
	}
	if upd.EventDate != nil {
		if err := checkEventDate(op, *upd.EventDate, s.now()); err != nil {
			return nil, err
		}
	}

	action := model.ActionSendToReview
	if upd.StateAction != nil {
		action = *upd.StateAction
	}

	var result model.Event
	err := s.store.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		e := tx.Event()
		if e.InitiatorID != initiatorID {
			return model.Errorf(model.ErrNotFound, op, "Event with id=%s was not found", eventID)
		}
		if !e.State.Editable() {
			return model.Errorf(model.ErrConditionsNotMet, op, "only pending or canceled events can be changed")
		}
		next, err := e.State.Apply(action)
		if err != nil {
			return err
		}

		edited := *e
		if action != model.ActionCancelReview {
			applyUpdate(&edited, upd)
		}
		edited.State = next
		if err := tx.SaveEvent(ctx, &edited); err != nil {
			return err
		}
		result = *tx.Event()
		return nil
	})
	if err != nil {
		return nil, missing(op, "Event", eventID, err)
	}

	s.log.Info().Str("event_id", eventID).Str("action", string(action)).Str("state", string(result.State)).
		Msg("event edited by initiator")
	s.decorateOne(ctx, &result, false)
	return &result, nil
}

// AdminSearch lists events of any state for moderators.
func (s *EventService) AdminSearch(ctx context.Context, f model.AdminEventFilter) ([]model.Event, error) {
	const op = "search events by admin"
	if err := checkRange(op, f.RangeStart, f.RangeEnd); err != nil {
		return nil, err
	}
	events, err := s.store.SearchEvents(ctx, f)
	if err != nil {
		return nil, wrap(op, err)
	}
	s.decorate(ctx, events, false)
	return events, nil
}

// AdminModerate publishes or rejects an event, applying any supplied field
// edits on publish. Without a state action it only edits fields, which is
// refused once the event is published.
func (s *EventService) AdminModerate(ctx context.Context, eventID string, upd model.EventUpdate) (*model.Event, error) {
	const op = "update event by admin"
	if upd.StateAction != nil && !upd.StateAction.ByAdmin() {
		return nil, model.Errorf(model.ErrIncorrectRequest, op, "state action %s is not available to an admin", *upd.StateAction)
	}
	now := s.now()
	if upd.EventDate != nil {
		if err := checkEventDate(op, *upd.EventDate, now); err != nil {
			return nil, err
		}
	}

	var result model.Event
	err := s.store.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		e := tx.Event()
		edited := *e

		switch {
		case upd.StateAction == nil:
			if !e.State.Editable() {
				return model.Errorf(model.ErrConditionsNotMet, op, "cannot edit the event because it's already published")
			}
			applyUpdate(&edited, upd)
		case *upd.StateAction == model.ActionPublish:
			next, err := e.State.Apply(model.ActionPublish)
			if err != nil {
				return err
			}
			applyUpdate(&edited, upd)
			edited.State = next
			published := now
			edited.PublishedOn = &published
		default:
			next, err := e.State.Apply(*upd.StateAction)
			if err != nil {
				return err
			}
			edited.State = next
		}

		if err := tx.SaveEvent(ctx, &edited); err != nil {
			return err
		}
		result = *tx.Event()
		return nil
	})
	if err != nil {
		return nil, missing(op, "Event", eventID, err)
	}

	ev := s.log.Info().Str("event_id", eventID).Str("state", string(result.State))
	if upd.StateAction != nil {
		ev = ev.Str("action", string(*upd.StateAction))
	}
	ev.Msg("event moderated")

	s.decorateOne(ctx, &result, false)
	return &result, nil
}

// ListPublished serves the public listing and records a hit for it. Sorting
// by views happens within the requested page.
func (s *EventService) ListPublished(ctx context.Context, f model.PublicEventFilter, ip string) ([]model.Event, error) {
	const op = "get published events"
	if err := checkRange(op, f.RangeStart, f.RangeEnd); err != nil {
		return nil, err
	}
	now := s.now()
	if f.RangeStart == nil && f.RangeEnd == nil {
		f.RangeStart = &now
	}

	events, err := s.store.ListPublishedEvents(ctx, f)
	if err != nil {
		return nil, wrap(op, err)
	}
	s.decorate(ctx, events, false)
	if f.Sort == model.SortByViews {
		sort.SliceStable(events, func(i, j int) bool { return events[i].Views > events[j].Views })
	}

	s.record(model.EventsURI, ip, now)
	return events, nil
}

// GetPublished serves one published event and records a hit for it. Views
// are counted once per client address.
func (s *EventService) GetPublished(ctx context.Context, eventID, ip string) (*model.Event, error) {
	const op = "get published event"
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, missing(op, "Event", eventID, err)
	}
	if e.State != model.EventPublished {
		return nil, model.Errorf(model.ErrNotFound, op, "Event with id=%s was not found", eventID)
	}
	s.decorateOne(ctx, e, true)
	s.record(e.URI(), ip, s.now())
	return e, nil
}

func (s *EventService) record(uri, ip string, at time.Time) {
	if s.hits == nil {
		return
	}
	s.hits.Record(stats.Hit{App: s.app, URI: uri, IP: ip, Timestamp: at})
}

func (s *EventService) decorateOne(ctx context.Context, e *model.Event, unique bool) {
	events := []model.Event{*e}
	s.decorate(ctx, events, unique)
	e.Views = events[0].Views
}

// decorate fills Views from the statistics service. A failing statistics
// service leaves views at zero rather than failing the read.
func (s *EventService) decorate(ctx context.Context, events []model.Event, unique bool) {
	if len(events) == 0 || s.views == nil {
		return
	}
	uris := make([]string, len(events))
	start := s.now()
	for i := range events {
		uris[i] = events[i].URI()
		from := events[i].CreatedOn
		if events[i].PublishedOn != nil {
			from = *events[i].PublishedOn
		}
		if from.Before(start) {
			start = from
		}
	}

	views, err := s.views.QueryViews(ctx, stats.ViewQuery{URIs: uris, Start: start, End: s.now(), Unique: unique})
	if err != nil {
		s.log.Warn().Err(err).Int("events", len(events)).Msg("failed to load views")
		return
	}
	for i := range events {
		events[i].Views = views[uris[i]]
	}
}

func applyUpdate(e *model.Event, upd model.EventUpdate) {
	if upd.Title != nil {
		e.Title = *upd.Title
	}
	if upd.Annotation != nil {
		e.Annotation = *upd.Annotation
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	if upd.EventDate != nil {
		e.EventDate = *upd.EventDate
	}
	if upd.Location != nil {
		e.Location = *upd.Location
	}
	if upd.Paid != nil {
		e.Paid = *upd.Paid
	}
	if upd.ParticipantLimit != nil {
		e.ParticipantLimit = *upd.ParticipantLimit
	}
	if upd.RequestModeration != nil {
		e.RequestModeration = *upd.RequestModeration
	}
}
