package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/capacity"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/repository"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/service"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/stats"
)

type hitsFunc func(stats.Hit)

func (f hitsFunc) Record(h stats.Hit) { f(h) }

type api struct {
	t      *testing.T
	router http.Handler
	views  *stats.Memory
	h      *Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := zerolog.Nop()
	store := repository.NewMemoryStore(repository.DefaultLockPolicy(), log)
	views := stats.NewMemory()
	tracker := capacity.NewTracker(store, log)
	hits := hitsFunc(func(h stats.Hit) { _ = views.RecordHit(t.Context(), h) })

	h := New(
		service.NewEventService(store, views, hits, "ewm-main-service", log),
		service.NewRequestService(store, tracker, log),
		service.NewUserService(store, log),
		log,
	)
	return &api{t: t, router: h.Router(), views: views, h: h}
}

func (a *api) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:51234"
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *api) user(name string) model.User {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/admin/users", model.NewUser{Name: name, Email: uuid.NewString() + "@example.com"})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.User](a.t, rec)
}

func (a *api) event(initiator string, limit int, moderation bool) model.Event {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/users/"+initiator+"/events", map[string]any{
		"title":             "Night market",
		"annotation":        "Street food and music until midnight",
		"description":       "Forty stalls, two stages and a lot of lanterns along the river",
		"eventDate":         time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"location":          map[string]float64{"lat": 59.93, "lon": 30.31},
		"participantLimit":  limit,
		"requestModeration": moderation,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Event](a.t, rec)
}

func (a *api) publish(eventID string) model.Event {
	a.t.Helper()
	rec := a.do(http.MethodPatch, "/admin/events/"+eventID, map[string]string{"stateAction": "PUBLISH_EVENT"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[model.Event](a.t, rec)
}

func TestHealthCheck(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestParticipationFlow(t *testing.T) {
	a := newAPI(t)
	owner := a.user("Owner")
	alice := a.user("Alice")
	bob := a.user("Bob")

	e := a.event(owner.ID, 1, true)
	assert.Equal(t, model.EventPending, e.State)
	a.publish(e.ID)

	reqA := decode[model.ParticipationRequest](t, a.do(http.MethodPost, fmt.Sprintf("/users/%s/requests?eventId=%s", alice.ID, e.ID), nil))
	assert.Equal(t, model.RequestPending, reqA.Status)
	rec := a.do(http.MethodPost, fmt.Sprintf("/users/%s/requests?eventId=%s", bob.ID, e.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	reqB := decode[model.ParticipationRequest](t, rec)

	rec = a.do(http.MethodPatch, fmt.Sprintf("/users/%s/events/%s/requests", owner.ID, e.ID), model.StatusUpdate{
		RequestIDs: []string{reqA.ID, reqB.ID},
		Status:     model.RequestConfirmed,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[model.BulkDecision](t, rec)
	require.Len(t, res.Confirmed, 1)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, model.RequestCanceled, res.Rejected[0].Status)

	rec = a.do(http.MethodGet, "/events/"+e.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.Event](t, rec)
	assert.Equal(t, 1, got.ConfirmedCount)

	rec = a.do(http.MethodGet, "/events/"+e.ID+"/capacity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"slots":0,"unlimited":false}`, rec.Body.String())

	rec = a.do(http.MethodPatch, fmt.Sprintf("/users/%s/requests/%s/cancel", alice.ID, reqA.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.RequestCanceled, decode[model.ParticipationRequest](t, rec).Status)

	rec = a.do(http.MethodGet, "/users/"+alice.ID+"/requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.ParticipationRequest](t, rec), 1)

	hits := a.views.Hits()
	require.NotEmpty(t, hits)
	assert.Equal(t, "192.0.2.10", hits[0].IP)
	assert.Equal(t, "/events/"+e.ID, hits[0].URI)
}

func TestErrorEnvelope(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/events/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, "NOT_FOUND", body.Status)
	assert.Equal(t, "The required object was not found.", body.Reason)
	assert.Contains(t, body.Message, "was not found")
	assert.False(t, body.Timestamp.IsZero())
}

func TestStatusMapping(t *testing.T) {
	a := newAPI(t)
	owner := a.user("Owner")
	e := a.event(owner.ID, 0, true)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed id", http.MethodGet, "/events/not-a-uuid", nil, http.StatusBadRequest},
		{"bad sort", http.MethodGet, "/events?sort=POPULARITY", nil, http.StatusBadRequest},
		{"bad range", http.MethodGet, "/events?rangeStart=2030-01-02%2000:00:00&rangeEnd=2030-01-01%2000:00:00", nil, http.StatusBadRequest},
		{"missing eventId", http.MethodPost, "/users/" + owner.ID + "/requests", nil, http.StatusBadRequest},
		{"unpublished event", http.MethodPost, fmt.Sprintf("/users/%s/requests?eventId=%s", owner.ID, e.ID), nil, http.StatusConflict},
		{"short title", http.MethodPatch, fmt.Sprintf("/users/%s/events/%s", owner.ID, e.ID), map[string]string{"title": "x"}, http.StatusBadRequest},
		{"unknown field", http.MethodPatch, "/admin/events/" + e.ID, map[string]string{"colour": "red"}, http.StatusBadRequest},
		{"unknown state", http.MethodGet, "/admin/events?states=ARCHIVED", nil, http.StatusBadRequest},
		{"unknown user", http.MethodGet, "/admin/users/" + uuid.NewString(), nil, http.StatusNotFound},
		{"empty decision", http.MethodPatch, fmt.Sprintf("/users/%s/events/%s/requests", owner.ID, e.ID), map[string]any{"requestIds": []string{}, "status": "CONFIRMED"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestPublishedEventEditConflict(t *testing.T) {
	a := newAPI(t)
	owner := a.user("Owner")
	e := a.event(owner.ID, 0, true)
	a.publish(e.ID)

	rec := a.do(http.MethodPatch, "/admin/events/"+e.ID, map[string]string{"stateAction": "PUBLISH_EVENT"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, "CONFLICT", body.Status)
	assert.Contains(t, body.Message, "PUBLISHED")
}

func TestAdminSearchByUserAndState(t *testing.T) {
	a := newAPI(t)
	owner := a.user("Owner")
	other := a.user("Other")
	e := a.event(owner.ID, 0, true)
	a.publish(e.ID)
	a.event(other.ID, 0, true)

	rec := a.do(http.MethodGet, fmt.Sprintf("/admin/events?users=%s&states=PUBLISHED,PENDING", owner.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]model.Event](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, e.ID, events[0].ID)
}

func TestLockTimeoutIsServiceUnavailable(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	a.h.writeError(rec, req, fmt.Errorf("%w: event %s", repository.ErrLockTimeout, uuid.NewString()))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "SERVICE_UNAVAILABLE", decode[model.ErrorResponse](t, rec).Status)
}

func TestEmptyListsEncodeAsArrays(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
