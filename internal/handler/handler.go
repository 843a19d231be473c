// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/repository"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/service"
)

// queryTimeLayout is the format of date-time query parameters.
const queryTimeLayout = "2006-01-02 15:04:05"

const defaultPageSize = 10

// Handler holds all HTTP handlers of the API.
type Handler struct {
	events   *service.EventService
	requests *service.RequestService
	users    *service.UserService
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

// New constructs a Handler.
func New(
	events *service.EventService,
	requests *service.RequestService,
	users *service.UserService,
	log zerolog.Logger,
) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{events: events, requests: requests, users: users, validate: v, log: log, now: time.Now}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the status of its kind. Anything unclassified is
// logged and answered with 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, reason := http.StatusInternalServerError, "Internal server error."
	switch {
	case errors.Is(err, model.ErrNotFound):
		status, reason = http.StatusNotFound, "The required object was not found."
	case errors.Is(err, model.ErrConditionsNotMet):
		status, reason = http.StatusConflict, "For the requested operation the conditions are not met."
	case errors.Is(err, model.ErrLimitReached):
		status, reason = http.StatusConflict, "The participant limit has been reached."
	case errors.Is(err, model.ErrIncorrectRequest):
		status, reason = http.StatusBadRequest, "Incorrectly made request."
	case errors.Is(err, repository.ErrLockTimeout):
		status, reason = http.StatusServiceUnavailable, "The event is busy."
		w.Header().Set("Retry-After", "1")
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		msg = "unexpected error"
	}

	writeJSON(w, status, model.ErrorResponse{
		Status:    strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_")),
		Reason:    reason,
		Message:   msg,
		Timestamp: h.now().UTC(),
	})
}

func badRequest(format string, args ...any) error {
	return model.Errorf(model.ErrIncorrectRequest, "", format, args...)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %s", err.Error())
	}
	return nil
}

// decodeValid decodes the body into dst and runs its validation tags.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return badRequest("Field: %s. Error: failed on %s. Value: %v", fe.Field(), fe.Tag(), fe.Value())
		}
		return badRequest("%s", err.Error())
	}
	return nil
}

// pathID reads a UUID path parameter.
func pathID(r *http.Request, name string) (string, error) {
	return parseID(name, chi.URLParam(r, name))
}

func parseID(name, raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", badRequest("Field: %s. Error: must be a UUID. Value: %s", name, raw)
	}
	return id.String(), nil
}

func parsePage(r *http.Request) (model.Page, error) {
	p := model.Page{From: 0, Size: defaultPageSize}
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, badRequest("Field: from. Error: must be a non-negative integer. Value: %s", v)
		}
		p.From = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return p, badRequest("Field: size. Error: must be a positive integer. Value: %s", v)
		}
		p.Size = n
	}
	return p, nil
}

func parseTime(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{queryTimeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, badRequest("Field: %s. Error: expected format %q. Value: %s", name, queryTimeLayout, v)
}

func parseBool(r *http.Request, name string) (*bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, badRequest("Field: %s. Error: must be true or false. Value: %s", name, v)
	}
	return &b, nil
}

// queryList accepts both repeated and comma separated values.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// clientIP returns the caller address without port. RealIP has already
// replaced RemoteAddr when a proxy header was present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// emptyIfNil keeps JSON arrays from encoding as null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
