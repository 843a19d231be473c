package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
)

// CreateRequest handles POST /users/{userId}/requests?eventId=
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw := r.URL.Query().Get("eventId")
	if raw == "" {
		h.writeError(w, r, badRequest("Field: eventId. Error: must not be blank. Value: null"))
		return
	}
	eventID, err := parseID("eventId", raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := h.requests.Create(r.Context(), userID, eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListOwnRequests handles GET /users/{userId}/requests
func (h *Handler) ListOwnRequests(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	reqs, err := h.requests.ListByRequester(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(reqs))
}

// CancelRequest handles PATCH /users/{userId}/requests/{requestId}/cancel
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	requestID, err := pathID(r, "requestId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := h.requests.Cancel(r.Context(), userID, requestID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListEventRequests handles GET /users/{userId}/events/{eventId}/requests
func (h *Handler) ListEventRequests(w http.ResponseWriter, r *http.Request) {
	userID, eventID, err := userAndEvent(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	reqs, err := h.requests.ListForEvent(r.Context(), userID, eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(reqs))
}

// DecideRequests handles PATCH /users/{userId}/events/{eventId}/requests
// Confirms or rejects pending requests in the order given.
func (h *Handler) DecideRequests(w http.ResponseWriter, r *http.Request) {
	userID, eventID, err := userAndEvent(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd model.StatusUpdate
	if err := h.decodeValid(w, r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	for i, raw := range upd.RequestIDs {
		if upd.RequestIDs[i], err = parseID("requestIds", raw); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	res, err := h.requests.BulkDecide(r.Context(), userID, eventID, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
