/**
 * @description
 * HTTP middleware for the webhook service. Attaches a request-scoped zerolog
 * logger carrying a correlation id, and logs one line per request with method,
 * path, status and latency.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5/middleware: status-capturing response writer.
 * - github.com/google/uuid: correlation ids.
 * - github.com/rs/zerolog: structured logging.
 */
package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestLogger returns middleware that attaches a child logger with a request
// id to the request context and emits a completion line.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}

			reqLogger := logger.With().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(reqLogger.WithContext(r.Context())))

			reqLogger.Info().
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
