package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/capacity"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/repository"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/stats"
)

// syncHits records hits straight into an aggregator so tests can read them
// back without a running Recorder.
type syncHits struct {
	agg stats.Aggregator
}

func (s syncHits) Record(hit stats.Hit) {
	_ = s.agg.RecordHit(context.Background(), hit)
}

type fixture struct {
	store      *repository.MemoryStore
	views      *stats.Memory
	events     *EventService
	requests   *RequestService
	users      *UserService
	reconciler *Reconciler
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()
	store := repository.NewMemoryStore(repository.DefaultLockPolicy(), log)
	views := stats.NewMemory()
	tracker := capacity.NewTracker(store, log)

	f := &fixture{
		store:      store,
		views:      views,
		events:     NewEventService(store, views, syncHits{agg: views}, "ewm-main-service", log),
		requests:   NewRequestService(store, tracker, log),
		users:      NewUserService(store, log),
		reconciler: NewReconciler(store, tracker, log),
		now:        time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.events.now = clock
	f.requests.now = clock
	f.users.now = clock
	return f
}

func (f *fixture) user(t *testing.T) *model.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), model.NewUser{
		Name:  "user",
		Email: uuid.NewString() + "@example.com",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) newEvent(limit int, moderation bool) model.NewEvent {
	return model.NewEvent{
		Title:             "Jazz in the park",
		Annotation:        "An evening of live jazz under the trees",
		Description:       "Bring a blanket, the band starts at sunset and plays for two hours",
		EventDate:         f.now.Add(72 * time.Hour),
		Location:          &model.Location{Lat: 55.75, Lon: 37.61},
		ParticipantLimit:  &limit,
		RequestModeration: &moderation,
	}
}

func (f *fixture) pendingEvent(t *testing.T, initiator *model.User, limit int, moderation bool) *model.Event {
	t.Helper()
	e, err := f.events.Submit(context.Background(), initiator.ID, f.newEvent(limit, moderation))
	require.NoError(t, err)
	return e
}

func (f *fixture) publishedEvent(t *testing.T, initiator *model.User, limit int, moderation bool) *model.Event {
	t.Helper()
	e := f.pendingEvent(t, initiator, limit, moderation)
	publish := model.ActionPublish
	e, err := f.events.AdminModerate(context.Background(), e.ID, model.EventUpdate{StateAction: &publish})
	require.NoError(t, err)
	return e
}

// assertConsistent checks that the stored counter equals the number of
// CONFIRMED requests and stays within the limit.
func assertConsistent(t *testing.T, store repository.Store, eventID string) {
	t.Helper()
	ctx := context.Background()
	e, err := store.GetEvent(ctx, eventID)
	require.NoError(t, err)
	reqs, err := store.ListRequestsByEvent(ctx, eventID)
	require.NoError(t, err)

	confirmed := 0
	for _, r := range reqs {
		if r.Status == model.RequestConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, confirmed, e.ConfirmedCount, "counter must match confirmed requests")
	if e.ParticipantLimit > 0 {
		assert.LessOrEqual(t, e.ConfirmedCount, e.ParticipantLimit, "counter must stay within the limit")
	}
}

func ptr[T any](v T) *T {
	return &v
}
