package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	// Rate limiter for sync triggers: burst of 10, then sustained 1 per second.
	// Each trigger fans out into provider API calls, so abuse is expensive.
	syncRateLimiter := NewRateLimiter(10, time.Second)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/health", h.Health)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Post("/items", h.CreateItem)
			r.Get("/items", h.ListItems)
			r.Get("/items/{id}", h.GetItem)
			r.Get("/items/{id}/accounts", h.ListAccounts)
			r.Get("/items/{id}/transactions", h.ListTransactions)
			r.Get("/snapshot", h.SnapshotURL)

			// Sync triggers share one rate limit bucket
			r.With(syncRateLimiter.Middleware).Post("/items/{id}/sync", h.SyncItem)
			r.With(syncRateLimiter.Middleware).Post("/sync", h.SyncAll)
		})
	})

	return r
}
