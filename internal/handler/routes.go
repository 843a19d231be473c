package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Router builds the HTTP surface of the service.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(h.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	// Public
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListPublished)
		r.Get("/{eventId}", h.GetPublished)
		r.Get("/{eventId}/capacity", h.GetCapacity)
	})

	// Initiators and requesters
	r.Route("/users/{userId}", func(r chi.Router) {
		r.Post("/events", h.SubmitEvent)
		r.Get("/events", h.ListOwnEvents)
		r.Get("/events/{eventId}", h.GetOwnEvent)
		r.Patch("/events/{eventId}", h.EditOwnEvent)
		r.Get("/events/{eventId}/requests", h.ListEventRequests)
		r.Patch("/events/{eventId}/requests", h.DecideRequests)

		r.Post("/requests", h.CreateRequest)
		r.Get("/requests", h.ListOwnRequests)
		r.Patch("/requests/{requestId}/cancel", h.CancelRequest)
	})

	// Moderators
	r.Route("/admin", func(r chi.Router) {
		r.Get("/events", h.SearchEvents)
		r.Patch("/events/{eventId}", h.ModerateEvent)
		r.Post("/users", h.RegisterUser)
		r.Get("/users/{userId}", h.GetUser)
	})

	return r
}
