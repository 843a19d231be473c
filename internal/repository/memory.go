package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
)

// MemoryStore implements Store in process. Per-event serialisation uses a
// semaphore per event id with a bounded wait, standing in for the row lock
// the Postgres store takes.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]model.User
	events   map[string]model.Event
	requests map[string]model.ParticipationRequest

	locks  *lockTable
	policy LockPolicy
	log    zerolog.Logger
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(policy LockPolicy, log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]model.User),
		events:   make(map[string]model.Event),
		requests: make(map[string]model.ParticipationRequest),
		locks:    newLockTable(),
		policy:   policy,
		log:      log,
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) CreateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[e.InitiatorID]; !ok {
		return ErrNotFound
	}
	s.events[e.ID] = *e
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) ListEventsByInitiator(_ context.Context, initiatorID string, page model.Page) ([]model.Event, error) {
	events := s.filterEvents(func(e *model.Event) bool { return e.InitiatorID == initiatorID })
	sortEvents(events, func(a, b *model.Event) bool { return a.CreatedOn.Before(b.CreatedOn) })
	return paginate(events, page), nil
}

func (s *MemoryStore) SearchEvents(_ context.Context, f model.AdminEventFilter) ([]model.Event, error) {
	events := s.filterEvents(func(e *model.Event) bool {
		if len(f.InitiatorIDs) > 0 && !contains(f.InitiatorIDs, e.InitiatorID) {
			return false
		}
		if len(f.States) > 0 && !contains(f.States, e.State) {
			return false
		}
		return inRange(e.EventDate, f.RangeStart, f.RangeEnd)
	})
	sortEvents(events, func(a, b *model.Event) bool { return a.CreatedOn.Before(b.CreatedOn) })
	return paginate(events, f.Page), nil
}

func (s *MemoryStore) ListPublishedEvents(_ context.Context, f model.PublicEventFilter) ([]model.Event, error) {
	text := strings.ToLower(f.Text)
	events := s.filterEvents(func(e *model.Event) bool {
		if e.State != model.EventPublished {
			return false
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(e.Annotation), text) &&
			!strings.Contains(strings.ToLower(e.Description), text) {
			return false
		}
		if f.Paid != nil && e.Paid != *f.Paid {
			return false
		}
		if f.OnlyAvailable && !e.HasFreeSlot() {
			return false
		}
		return inRange(e.EventDate, f.RangeStart, f.RangeEnd)
	})
	sortEvents(events, func(a, b *model.Event) bool { return a.EventDate.Before(b.EventDate) })
	return paginate(events, f.Page), nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (*model.ParticipationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) ListRequestsByEvent(_ context.Context, eventID string) ([]model.ParticipationRequest, error) {
	return s.filterRequests(func(r *model.ParticipationRequest) bool { return r.EventID == eventID }), nil
}

func (s *MemoryStore) ListRequestsByRequester(_ context.Context, requesterID string) ([]model.ParticipationRequest, error) {
	return s.filterRequests(func(r *model.ParticipationRequest) bool { return r.RequesterID == requesterID }), nil
}

func (s *MemoryStore) EventIDsWithCountDrift(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	confirmed := make(map[string]int)
	for _, r := range s.requests {
		if r.Status == model.RequestConfirmed {
			confirmed[r.EventID]++
		}
	}
	var ids []string
	for id, e := range s.events {
		if e.ConfirmedCount != confirmed[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// WithEventLock acquires the event's semaphore, runs fn against a staged
// copy and applies the staged writes only when fn succeeds.
func (s *MemoryStore) WithEventLock(ctx context.Context, eventID string, fn func(EventTx) error) error {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return err
	}
	return withLockRetry(ctx, s.policy, s.log, eventID, func() error {
		release, err := s.locks.acquire(ctx, eventID, s.policy.LockTimeout)
		if err != nil {
			return err
		}
		defer release()

		event, err := s.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		tx := &memEventTx{store: s, event: event, staged: make(map[string]model.ParticipationRequest)}
		if err := fn(tx); err != nil {
			return err
		}
		s.commit(tx)
		return nil
	})
}

func (s *MemoryStore) commit(tx *memEventTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[tx.event.ID] = *tx.event
	for id, r := range tx.staged {
		s.requests[id] = r
	}
}

func (s *MemoryStore) filterEvents(keep func(*model.Event) bool) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, e := range s.events {
		if keep(&e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemoryStore) filterRequests(keep func(*model.ParticipationRequest) bool) []model.ParticipationRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ParticipationRequest
	for _, r := range s.requests {
		if keep(&r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func sortEvents(events []model.Event, less func(a, b *model.Event) bool) {
	sort.Slice(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.ID < b.ID
	})
}

func paginate(events []model.Event, p model.Page) []model.Event {
	if p.From >= len(events) {
		return nil
	}
	end := len(events)
	if p.Size > 0 && p.From+p.Size < end {
		end = p.From + p.Size
	}
	return events[p.From:end]
}

func inRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// memEventTx stages request writes; event writes go to its private copy.
type memEventTx struct {
	store  *MemoryStore
	event  *model.Event
	staged map[string]model.ParticipationRequest
}

func (t *memEventTx) Event() *model.Event {
	return t.event
}

func (t *memEventTx) ReserveSlot(context.Context) (bool, error) {
	if !t.event.HasFreeSlot() {
		return false, nil
	}
	t.event.ConfirmedCount++
	return true, nil
}

func (t *memEventTx) ReleaseSlot(context.Context) error {
	if t.event.ConfirmedCount > 0 {
		t.event.ConfirmedCount--
	}
	return nil
}

func (t *memEventTx) CountConfirmed(context.Context) (int, error) {
	n := 0
	for _, r := range t.eventRequests() {
		if r.Status == model.RequestConfirmed {
			n++
		}
	}
	return n, nil
}

func (t *memEventTx) ResetConfirmedCount(_ context.Context, n int) error {
	t.event.ConfirmedCount = n
	return nil
}

func (t *memEventTx) SaveEvent(_ context.Context, e *model.Event) error {
	id, confirmed := t.event.ID, t.event.ConfirmedCount
	*t.event = *e
	t.event.ID, t.event.ConfirmedCount = id, confirmed
	return nil
}

func (t *memEventTx) Request(_ context.Context, id string) (*model.ParticipationRequest, error) {
	r, ok := t.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (t *memEventTx) Requests(_ context.Context, ids []string) (map[string]model.ParticipationRequest, error) {
	out := make(map[string]model.ParticipationRequest, len(ids))
	for _, id := range ids {
		if r, ok := t.lookup(id); ok {
			out[id] = r
		}
	}
	return out, nil
}

func (t *memEventTx) HasActiveRequest(_ context.Context, requesterID string) (bool, error) {
	for _, r := range t.eventRequests() {
		if r.RequesterID == requesterID && r.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (t *memEventTx) InsertRequest(ctx context.Context, r *model.ParticipationRequest) error {
	if _, err := t.store.GetUser(ctx, r.RequesterID); err != nil {
		return err
	}
	if active, _ := t.HasActiveRequest(ctx, r.RequesterID); active && r.Active() {
		return ErrDuplicate
	}
	stored := *r
	stored.EventID = t.event.ID
	t.staged[r.ID] = stored
	return nil
}

func (t *memEventTx) SetRequestStatus(_ context.Context, id string, status model.RequestStatus) error {
	r, ok := t.lookup(id)
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	t.staged[id] = r
	return nil
}

// lookup returns the staged version of a request of this event, falling
// back to the committed one.
func (t *memEventTx) lookup(id string) (model.ParticipationRequest, bool) {
	if r, ok := t.staged[id]; ok {
		return r, true
	}
	r, err := t.store.GetRequest(context.Background(), id)
	if err != nil || r.EventID != t.event.ID {
		return model.ParticipationRequest{}, false
	}
	return *r, true
}

func (t *memEventTx) eventRequests() []model.ParticipationRequest {
	committed := t.store.filterRequests(func(r *model.ParticipationRequest) bool {
		_, shadowed := t.staged[r.ID]
		return r.EventID == t.event.ID && !shadowed
	})
	for _, r := range t.staged {
		committed = append(committed, r)
	}
	return committed
}
