package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the session and analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.HandleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", h.HandleDeleteSession)
			r.Post("/stats", h.HandleSessionStats)
			r.Post("/profiles", h.HandleSessionProfiles)
			r.Post("/explain", h.HandleSessionExplain)
		})
	})

	r.Route("/analytics", func(r chi.Router) {
		r.Post("/allocation", h.HandleAllocation)
		r.Post("/backtest", h.HandleBacktest)
	})
}
