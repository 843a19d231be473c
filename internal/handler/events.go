package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
)

// ListPublished handles GET /events
// Searches published events; records a view of the listing.
func (h *Handler) ListPublished(w http.ResponseWriter, r *http.Request) {
	f, err := parsePublicFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	events, err := h.events.ListPublished(r.Context(), f, clientIP(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(events))
}

// GetPublished handles GET /events/{eventId}
func (h *Handler) GetPublished(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	event, err := h.events.GetPublished(r.Context(), eventID, clientIP(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// GetCapacity handles GET /events/{eventId}/capacity
func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rem, err := h.requests.Capacity(r.Context(), eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

// SubmitEvent handles POST /users/{userId}/events
func (h *Handler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in model.NewEvent
	if err := h.decodeValid(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	event, err := h.events.Submit(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListOwnEvents handles GET /users/{userId}/events
func (h *Handler) ListOwnEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	events, err := h.events.ListByInitiator(r.Context(), userID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(events))
}

// GetOwnEvent handles GET /users/{userId}/events/{eventId}
func (h *Handler) GetOwnEvent(w http.ResponseWriter, r *http.Request) {
	userID, eventID, err := userAndEvent(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	event, err := h.events.GetByInitiator(r.Context(), userID, eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// EditOwnEvent handles PATCH /users/{userId}/events/{eventId}
func (h *Handler) EditOwnEvent(w http.ResponseWriter, r *http.Request) {
	userID, eventID, err := userAndEvent(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd model.EventUpdate
	if err := h.decodeValid(w, r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	event, err := h.events.InitiatorEdit(r.Context(), userID, eventID, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// SearchEvents handles GET /admin/events
func (h *Handler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	f, err := parseAdminFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	events, err := h.events.AdminSearch(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(events))
}

// ModerateEvent handles PATCH /admin/events/{eventId}
func (h *Handler) ModerateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd model.EventUpdate
	if err := h.decodeValid(w, r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	event, err := h.events.AdminModerate(r.Context(), eventID, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func userAndEvent(r *http.Request) (string, string, error) {
	userID, err := pathID(r, "userId")
	if err != nil {
		return "", "", err
	}
	eventID, err := pathID(r, "eventId")
	if err != nil {
		return "", "", err
	}
	return userID, eventID, nil
}

func parsePublicFilter(r *http.Request) (model.PublicEventFilter, error) {
	var (
		f   model.PublicEventFilter
		err error
	)
	q := r.URL.Query()
	f.Text = q.Get("text")
	if f.Paid, err = parseBool(r, "paid"); err != nil {
		return f, err
	}
	if f.RangeStart, err = parseTime(r, "rangeStart"); err != nil {
		return f, err
	}
	if f.RangeEnd, err = parseTime(r, "rangeEnd"); err != nil {
		return f, err
	}
	onlyAvailable, err := parseBool(r, "onlyAvailable")
	if err != nil {
		return f, err
	}
	f.OnlyAvailable = onlyAvailable != nil && *onlyAvailable

	switch sort := model.EventSort(q.Get("sort")); sort {
	case "":
		f.Sort = model.SortByEventDate
	case model.SortByEventDate, model.SortByViews:
		f.Sort = sort
	default:
		return f, badRequest("Field: sort. Error: must be EVENT_DATE or VIEWS. Value: %s", sort)
	}

	f.Page, err = parsePage(r)
	return f, err
}

func parseAdminFilter(r *http.Request) (model.AdminEventFilter, error) {
	var (
		f   model.AdminEventFilter
		err error
	)
	for _, raw := range queryList(r, "users") {
		id, err := parseID("users", raw)
		if err != nil {
			return f, err
		}
		f.InitiatorIDs = append(f.InitiatorIDs, id)
	}
	for _, raw := range queryList(r, "states") {
		s, err := model.ParseEventState(raw)
		if err != nil {
			return f, err
		}
		f.States = append(f.States, s)
	}
	if f.RangeStart, err = parseTime(r, "rangeStart"); err != nil {
		return f, err
	}
	if f.RangeEnd, err = parseTime(r, "rangeEnd"); err != nil {
		return f, err
	}
	f.Page, err = parsePage(r)
	return f, err
}
