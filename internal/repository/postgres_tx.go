package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
)

// WithEventLock runs fn inside a transaction holding a row-level lock on the
// event.
//
// SELECT … FOR UPDATE serialises every writer of the same event row: a
// second transaction asking for the lock blocks until the first commits or
// rolls back. lock_timeout bounds that wait; a timed out attempt is rolled
// back and retried with exponential backoff, up to the configured number of
// attempts.
func (s *PostgresStore) WithEventLock(ctx context.Context, eventID string, fn func(EventTx) error) error {
	return withLockRetry(ctx, s.policy, s.log, eventID, func() error {
		return contention(s.runLocked(ctx, eventID, fn))
	})
}

func (s *PostgresStore) runLocked(ctx context.Context, eventID string, fn func(EventTx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// SET does not take bind parameters.
	if _, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.policy.LockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	event, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == "22P02" {
			return ErrNotFound
		}
		return fmt.Errorf("lock event row: %w", err)
	}

	if err = fn(&pgEventTx{tx: tx, event: event}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// pgEventTx is an EventTx bound to an open transaction.
type pgEventTx struct {
	tx    pgx.Tx
	event *model.Event
}

func (t *pgEventTx) Event() *model.Event {
	return t.event
}

// ReserveSlot performs the capacity check and the increment in one
// statement so the limit holds even without the surrounding row lock.
func (t *pgEventTx) ReserveSlot(ctx context.Context) (bool, error) {
	var confirmed int
	err := t.tx.QueryRow(ctx,
		`UPDATE events
		 SET confirmed_count = confirmed_count + 1
		 WHERE id = $1 AND (participant_limit = 0 OR confirmed_count < participant_limit)
		 RETURNING confirmed_count`,
		t.event.ID,
	).Scan(&confirmed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}
	t.event.ConfirmedCount = confirmed
	return true, nil
}

func (t *pgEventTx) ReleaseSlot(ctx context.Context) error {
	var confirmed int
	err := t.tx.QueryRow(ctx,
		`UPDATE events
		 SET confirmed_count = GREATEST(confirmed_count - 1, 0)
		 WHERE id = $1
		 RETURNING confirmed_count`,
		t.event.ID,
	).Scan(&confirmed)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	t.event.ConfirmedCount = confirmed
	return nil
}

func (t *pgEventTx) CountConfirmed(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM participation_requests WHERE event_id = $1 AND status = $2`,
		t.event.ID, model.RequestConfirmed,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count confirmed: %w", err)
	}
	return n, nil
}

func (t *pgEventTx) ResetConfirmedCount(ctx context.Context, n int) error {
	if _, err := t.tx.Exec(ctx, `UPDATE events SET confirmed_count = $2 WHERE id = $1`, t.event.ID, n); err != nil {
		return fmt.Errorf("reset confirmed count: %w", err)
	}
	t.event.ConfirmedCount = n
	return nil
}

func (t *pgEventTx) SaveEvent(ctx context.Context, e *model.Event) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE events SET
			title = $2, annotation = $3, description = $4, lat = $5, lon = $6, paid = $7,
			event_date = $8, participant_limit = $9, request_moderation = $10, state = $11,
			published_on = $12
		 WHERE id = $1`,
		t.event.ID, e.Title, e.Annotation, e.Description, e.Location.Lat, e.Location.Lon, e.Paid,
		e.EventDate, e.ParticipantLimit, e.RequestModeration, e.State, e.PublishedOn,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	id, confirmed := t.event.ID, t.event.ConfirmedCount
	*t.event = *e
	t.event.ID, t.event.ConfirmedCount = id, confirmed
	return nil
}

func (t *pgEventTx) Request(ctx context.Context, id string) (*model.ParticipationRequest, error) {
	r, err := scanRequest(t.tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM participation_requests WHERE id = $1 AND event_id = $2`,
		id, t.event.ID))
	if err != nil {
		return nil, notFoundOr(err, "get request")
	}
	return r, nil
}

func (t *pgEventTx) Requests(ctx context.Context, ids []string) (map[string]model.ParticipationRequest, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+requestColumns+` FROM participation_requests
		 WHERE event_id = $1 AND id = ANY($2::uuid[])`,
		t.event.ID, ids,
	)
	if err != nil {
		if pgCode(err) == "22P02" {
			return map[string]model.ParticipationRequest{}, nil
		}
		return nil, fmt.Errorf("load requests: %w", err)
	}
	reqs, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.ParticipationRequest, len(reqs))
	for _, r := range reqs {
		byID[r.ID] = r
	}
	return byID, nil
}

func (t *pgEventTx) HasActiveRequest(ctx context.Context, requesterID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM participation_requests
			WHERE event_id = $1 AND requester_id = $2 AND status <> $3
		 )`,
		t.event.ID, requesterID, model.RequestCanceled,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return exists, nil
}

func (t *pgEventTx) InsertRequest(ctx context.Context, r *model.ParticipationRequest) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO participation_requests (`+requestColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, t.event.ID, r.RequesterID, r.Status, r.CreatedAt,
	)
	switch pgCode(err) {
	case "":
	case "23505":
		return ErrDuplicate
	case "23503":
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (t *pgEventTx) SetRequestStatus(ctx context.Context, id string, status model.RequestStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE participation_requests SET status = $3 WHERE id = $1 AND event_id = $2`,
		id, t.event.ID, status,
	)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
