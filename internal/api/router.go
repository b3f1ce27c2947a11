/**
 * @description
 * This file sets up the HTTP router for the webhook service using the
 * go-chi/chi router. It defines the API routes, applies middleware for logging
 * and panic recovery, and maps the routes to their handler functions.
 */
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter creates a new Chi router and registers the webhook routes.
func NewRouter(h *WebhookHandler, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(RequestLogger(logger))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]string{"Root"})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"message": "Health Check",
			"status":  "ok",
		})
	})

	r.Route("/webhooks/chargebee", func(r chi.Router) {
		r.Post("/v2/management", h.ServeHTTP)
	})

	return r
}
