package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
)

// PostgresStore implements Store on PostgreSQL using pgx directly (no ORM).
type PostgresStore struct {
	db     *pgxpool.Pool
	policy LockPolicy
	log    zerolog.Logger
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool, policy LockPolicy, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{db: db, policy: policy, log: log}
}

const eventColumns = `id, title, annotation, description, lat, lon, paid, event_date, initiator_id,
	participant_limit, request_moderation, confirmed_count, state, created_on, published_on`

const requestColumns = `id, event_id, requester_id, status, created_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Annotation, &e.Description, &e.Location.Lat, &e.Location.Lon,
		&e.Paid, &e.EventDate, &e.InitiatorID, &e.ParticipantLimit, &e.RequestModeration,
		&e.ConfirmedCount, &e.State, &e.CreatedOn, &e.PublishedOn)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanRequest(row pgx.Row) (*model.ParticipationRequest, error) {
	var r model.ParticipationRequest
	if err := row.Scan(&r.ID, &r.EventID, &r.RequesterID, &r.Status, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()
	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func collectRequests(rows pgx.Rows) ([]model.ParticipationRequest, error) {
	defer rows.Close()
	var reqs []model.ParticipationRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		reqs = append(reqs, *r)
	}
	return reqs, rows.Err()
}

// pgCode returns the SQLSTATE of err, or "" when err is not a server error.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// notFoundOr maps "no rows" and malformed identifiers to ErrNotFound.
func notFoundOr(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == "22P02" {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// contention tags lock_not_available, serialization_failure and
// deadlock_detected as retryable.
func contention(err error) error {
	switch pgCode(err) {
	case "55P03", "40001", "40P01":
		return fmt.Errorf("%w: %w", errLockContention, err)
	}
	return err
}

// CreateUser inserts a user.
func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Name, u.Email, u.CreatedAt,
	)
	if pgCode(err) == "23505" {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a single user or ErrNotFound.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "get user")
	}
	return &u, nil
}

// CreateEvent inserts a new event.
func (s *PostgresStore) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.Title, e.Annotation, e.Description, e.Location.Lat, e.Location.Lon, e.Paid,
		e.EventDate, e.InitiatorID, e.ParticipantLimit, e.RequestModeration, e.ConfirmedCount,
		e.State, e.CreatedOn, e.PublishedOn,
	)
	if pgCode(err) == "23503" {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns a single event or ErrNotFound.
func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "get event")
	}
	return e, nil
}

// ListEventsByInitiator returns the initiator's events in creation order.
func (s *PostgresStore) ListEventsByInitiator(ctx context.Context, initiatorID string, page model.Page) ([]model.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE initiator_id = $1
		 ORDER BY created_on ASC, id ASC
		 OFFSET $2 LIMIT $3`,
		initiatorID, page.From, page.Size,
	)
	if err != nil {
		return nil, fmt.Errorf("list initiator events: %w", err)
	}
	return collectEvents(rows)
}

// whereBuilder accumulates AND-ed predicates with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *whereBuilder) page(p model.Page) string {
	w.args = append(w.args, p.From, p.Size)
	return fmt.Sprintf(" OFFSET $%d LIMIT $%d", len(w.args)-1, len(w.args))
}

// SearchEvents returns events of any state matching the moderator filter.
func (s *PostgresStore) SearchEvents(ctx context.Context, f model.AdminEventFilter) ([]model.Event, error) {
	var w whereBuilder
	if len(f.InitiatorIDs) > 0 {
		w.add("initiator_id = ANY(?::uuid[])", f.InitiatorIDs)
	}
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, st := range f.States {
			states[i] = string(st)
		}
		w.add("state = ANY(?)", states)
	}
	if f.RangeStart != nil {
		w.add("event_date >= ?", *f.RangeStart)
	}
	if f.RangeEnd != nil {
		w.add("event_date <= ?", *f.RangeEnd)
	}
	query := `SELECT ` + eventColumns + ` FROM events` + w.sql() + ` ORDER BY created_on ASC, id ASC` + w.page(f.Page)

	rows, err := s.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return collectEvents(rows)
}

// ListPublishedEvents returns published events matching the public filter,
// ordered by event date.
func (s *PostgresStore) ListPublishedEvents(ctx context.Context, f model.PublicEventFilter) ([]model.Event, error) {
	var w whereBuilder
	w.add("state = ?", string(model.EventPublished))
	if f.Text != "" {
		pattern := "%" + f.Text + "%"
		w.add("(annotation ILIKE ? OR description ILIKE ?)", pattern, pattern)
	}
	if f.Paid != nil {
		w.add("paid = ?", *f.Paid)
	}
	if f.RangeStart != nil {
		w.add("event_date >= ?", *f.RangeStart)
	}
	if f.RangeEnd != nil {
		w.add("event_date <= ?", *f.RangeEnd)
	}
	if f.OnlyAvailable {
		w.add("(participant_limit = 0 OR confirmed_count < participant_limit)")
	}
	query := `SELECT ` + eventColumns + ` FROM events` + w.sql() + ` ORDER BY event_date ASC, id ASC` + w.page(f.Page)

	rows, err := s.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list published events: %w", err)
	}
	return collectEvents(rows)
}

// GetRequest returns a single participation request or ErrNotFound.
func (s *PostgresStore) GetRequest(ctx context.Context, id string) (*model.ParticipationRequest, error) {
	r, err := scanRequest(s.db.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM participation_requests WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "get request")
	}
	return r, nil
}

// ListRequestsByEvent returns all requests for an event, oldest first.
func (s *PostgresStore) ListRequestsByEvent(ctx context.Context, eventID string) ([]model.ParticipationRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+requestColumns+` FROM participation_requests
		 WHERE event_id = $1
		 ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list event requests: %w", err)
	}
	return collectRequests(rows)
}

// ListRequestsByRequester returns all requests made by a user, oldest first.
func (s *PostgresStore) ListRequestsByRequester(ctx context.Context, requesterID string) ([]model.ParticipationRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+requestColumns+` FROM participation_requests
		 WHERE requester_id = $1
		 ORDER BY created_at ASC, id ASC`,
		requesterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list requester requests: %w", err)
	}
	return collectRequests(rows)
}

// EventIDsWithCountDrift compares stored counters with CONFIRMED requests.
func (s *PostgresStore) EventIDsWithCountDrift(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT e.id
		 FROM events e
		 LEFT JOIN participation_requests r ON r.event_id = e.id AND r.status = 'CONFIRMED'
		 GROUP BY e.id, e.confirmed_count
		 HAVING e.confirmed_count <> COUNT(r.id)`,
	)
	if err != nil {
		return nil, fmt.Errorf("find count drift: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
