package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
)

// RegisterUser handles POST /admin/users
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var in model.NewUser
	if err := h.decodeValid(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.users.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// GetUser handles GET /admin/users/{userId}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
