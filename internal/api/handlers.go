/**
 * @description
 * This file contains the HTTP handler for processing incoming webhooks from
 * Chargebee. It acts as the entry point for all billing event notifications.
 *
 * Key features:
 * - Security: Validates the Basic-auth credentials each Chargebee site is
 *   configured to send, and requires a ChargeBee user agent.
 * - Tenant resolution: The cb-instance query parameter names the Chargebee
 *   site; sandbox instances ("-test" suffix) share the production site's
 *   engine and credentials.
 * - Parsing: Decodes the event envelope into strongly-typed Go structs and
 *   hands it to the tenant's reconciliation engine.
 * - Response: Serialises the engine's outcome verbatim and mirrors its status
 *   code onto the HTTP response.
 *
 * @dependencies
 * - encoding/json, net/http: standard HTTP plumbing.
 * - github.com/rs/zerolog: request-scoped structured logging.
 * - The service's internal packages for domain models and the engine.
 */
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
	"github.com/MarkM-Portfolio/atmail-webhooks/internal/secrets"
)

// EventProcessor is the part of the engine the transport layer needs.
type EventProcessor interface {
	Handle(ctx context.Context, payload *domain.WebhookPayload) *domain.Outcome
}

// WebhookHandler processes incoming webhooks from Chargebee.
type WebhookHandler struct {
	engines  map[string]EventProcessor
	secrets  *secrets.Store
	testMode bool
}

// NewWebhookHandler creates a handler for the webhook endpoint. The engines map
// is keyed by Chargebee instance name without the "-test" suffix.
func NewWebhookHandler(engines map[string]EventProcessor, store *secrets.Store, testMode bool) *WebhookHandler {
	return &WebhookHandler{
		engines:  engines,
		secrets:  store,
		testMode: testMode,
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	instance := r.URL.Query().Get("cb-instance")
	if h.testMode && instance == "" {
		instance = r.URL.Query().Get("cb_instance")
	}

	engine, ok := h.engines[strings.TrimSuffix(instance, "-test")]
	if !ok {
		logger.Warn().Str("cb_instance", instance).Msg("unknown chargebee instance")
		writeOutcome(w, &domain.Outcome{
			StatusCode: 422,
			Message:    "Unknown Chargebee instance",
			APISrc:     domain.SourceBilling,
		})
		return
	}

	if outcome := h.authorize(r, instance); outcome != nil {
		logger.Warn().Str("cb_instance", instance).Msg(outcome.Message)
		writeOutcome(w, outcome)
		return
	}

	var payload domain.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Error().Err(err).Msg("failed to decode webhook payload")
		writeOutcome(w, &domain.Outcome{
			StatusCode: 400,
			Message:    "Invalid JSON payload",
			APISrc:     domain.SourceBilling,
		})
		return
	}

	logger.Info().
		Str("cb_instance", instance).
		Str("event_type", payload.EventType).
		Msg("received chargebee webhook")

	outcome := engine.Handle(r.Context(), &payload)

	logEvent := logger.Info()
	if !outcome.OK() {
		logEvent = logger.Error()
	}
	logEvent.
		Int("status_code", outcome.StatusCode).
		Str("status_reason", domain.StatusReason(outcome.StatusCode)).
		Str("event_type", payload.EventType).
		Str("api_src", outcome.APISrc).
		Msg(outcome.Message)

	writeOutcome(w, outcome)
}

// authorize checks the Basic-auth credentials the tenant's webhook
// configuration sends, plus the ChargeBee user agent. Skipped in test mode.
// A nil return means the request is authorized.
func (h *WebhookHandler) authorize(r *http.Request, instance string) *domain.Outcome {
	if h.testMode {
		return nil
	}

	creds, ok := h.secrets.Tenant(instance)
	if !ok {
		return &domain.Outcome{StatusCode: 403, Message: "Authentication Failed!"}
	}

	username, password, ok := r.BasicAuth()
	if !ok ||
		subtle.ConstantTimeCompare([]byte(username), []byte(creds.WebhookUsername)) != 1 ||
		subtle.ConstantTimeCompare([]byte(password), []byte(creds.WebhookPassword)) != 1 {
		return &domain.Outcome{StatusCode: 403, Message: "Authentication Failed!"}
	}

	if userAgent := r.UserAgent(); !strings.Contains(userAgent, "ChargeBee") {
		return &domain.Outcome{StatusCode: 403, Message: "Invalid User Agent: " + userAgent}
	}
	return nil
}

// responseBody is the JSON shape returned to Chargebee.
type responseBody struct {
	StatusCode   int    `json:"status_code"`
	StatusReason string `json:"status_reason"`
	Message      string `json:"msg,omitempty"`
	Data         any    `json:"data,omitempty"`
	Object       any    `json:"object,omitempty"`
	APISrc       string `json:"api_src,omitempty"`
}

func writeOutcome(w http.ResponseWriter, outcome *domain.Outcome) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(outcome.StatusCode)
	_ = json.NewEncoder(w).Encode(responseBody{
		StatusCode:   outcome.StatusCode,
		StatusReason: domain.StatusReason(outcome.StatusCode),
		Message:      outcome.Message,
		Data:         outcome.Data,
		Object:       outcome.Object,
		APISrc:       outcome.APISrc,
	})
}
