/**
 * @description
 * The reconciliation engine. Each inbound billing event is a transition rule
 * evaluated against the live mailbox account state fetched at call time: the
 * engine decodes the payload, consults the plan classifier, queries the billing
 * and account gateways as needed, computes the target account status/profile,
 * issues at most one corrective update, and terminates in a uniform outcome.
 *
 * Some event types resolve by re-entering the engine under a different event
 * type ("fallthrough"). Chaining is modelled as a tagged next-action value
 * evaluated in a bounded loop rather than mutual recursion, which keeps the
 * chain graph mechanically acyclic and the recursion depth bounded.
 *
 * Invocations are independent and stateless. Concurrent events for the same
 * customer are not serialised; a late write can overwrite an earlier one's
 * effect under concurrent delivery. This is a known, accepted race: correctness
 * relies on every branch re-reading live state, and the webhook sender's
 * redelivery policy owns retries.
 */
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
	"github.com/MarkM-Portfolio/atmail-webhooks/internal/plan"
)

// amountOwedThreshold is the amount (in minor currency units) under which an
// owing customer is still allowed an active mailbox account.
const amountOwedThreshold = 50

// maxChainDepth bounds fallthrough re-dispatch. The longest chain in the graph
// is invoice_updated -> subscription_resumed -> subscription_reactivated ->
// payment_succeeded (three hops).
const maxChainDepth = 4

// Recognised event types. Anything outside this set yields a 400 outcome
// without touching either gateway.
var recognisedEvents = map[string]bool{
	"customer_created":                      true,
	"customer_changed":                      true,
	"subscription_created":                  true,
	"subscription_created_with_backdating":  true,
	"subscription_changed":                  true,
	"subscription_started":                  true,
	"subscription_cancelled":                true,
	"subscription_reactivated":              true,
	"subscription_paused":                   true,
	"subscription_resumed":                  true,
	"payment_source_added":                  true,
	"payment_succeeded":                     true,
	"payment_initiated":                     true,
	"payment_failed":                        true,
	"invoice_updated":                       true,
}

// Engine evaluates billing events for one tenant against the two gateways.
type Engine struct {
	tenant   plan.Tenant
	billing  BillingGateway
	accounts AccountGateway
}

// New builds an engine for the given tenant.
func New(tenant plan.Tenant, billing BillingGateway, accounts AccountGateway) *Engine {
	return &Engine{tenant: tenant, billing: billing, accounts: accounts}
}

// action is the tagged result of one dispatch step: either a terminal outcome
// or a re-dispatch under another event type. For re-dispatch, origin records
// the event type the chain started from so downstream customer resolution can
// derive the right identity.
type action struct {
	outcome *domain.Outcome
	next    string
	origin  string
}

func terminal(o *domain.Outcome) action {
	return action{outcome: o}
}

func chainTo(next, origin string) action {
	return action{next: next, origin: origin}
}

// Handle processes one webhook payload to a terminal outcome, following
// fallthrough re-dispatch in-process. Chained re-entry inherits the same error
// handling: an error inside a chained step terminates the whole request with
// that step's outcome.
func (e *Engine) Handle(ctx context.Context, payload *domain.WebhookPayload) *domain.Outcome {
	eventType := payload.EventType
	origin := ""
	for hop := 0; hop <= maxChainDepth; hop++ {
		act := e.dispatch(ctx, eventType, origin, payload.Content)
		if act.next == "" {
			return act.outcome
		}
		zerolog.Ctx(ctx).Debug().
			Str("from", eventType).
			Str("to", act.next).
			Str("origin", act.origin).
			Msg("event fallthrough")
		eventType, origin = act.next, act.origin
	}
	// Unreachable while the chain graph stays acyclic.
	return &domain.Outcome{
		StatusCode: 500,
		Message:    fmt.Sprintf("Event chain exceeded %d hops", maxChainDepth),
		APISrc:     domain.SourceBilling,
	}
}

// dispatch validates the payload for the event's class and evaluates one
// transition rule. For chained steps, validation runs against the originating
// event type, because that is the shape the inbound payload actually has.
func (e *Engine) dispatch(ctx context.Context, eventType, origin string, content map[string]json.RawMessage) action {
	zerolog.Ctx(ctx).Debug().Str("event", eventType).Str("tenant", e.tenant.String()).Msg("dispatching event")

	if !recognisedEvents[eventType] {
		return terminal(&domain.Outcome{
			StatusCode: 400,
			Message:    "Unhandled Event Type",
			Data:       eventType,
			APISrc:     domain.SourceBilling,
		})
	}

	validateAs := eventType
	if origin != "" {
		validateAs = origin
	}
	if err := domain.ValidateEvent(validateAs, content); err != nil {
		return terminal(&domain.Outcome{
			StatusCode: 422,
			Message:    err.Error(),
			APISrc:     domain.SourceBilling,
		})
	}

	switch eventType {
	case "customer_created":
		return e.customerCreated(ctx, content)
	case "customer_changed":
		return e.customerChanged(ctx, content)
	case "subscription_created":
		return e.subscriptionCreated(ctx, content)
	case "subscription_created_with_backdating":
		return e.subscriptionCreatedWithBackdating(ctx, content)
	case "subscription_changed":
		return e.subscriptionChanged(ctx, content)
	case "subscription_started":
		return e.subscriptionStarted(ctx, content)
	case "subscription_cancelled":
		return e.subscriptionCancelled(ctx, content)
	case "subscription_reactivated":
		return e.subscriptionReactivated(ctx, content, origin)
	case "subscription_paused":
		return e.subscriptionPaused(ctx, content)
	case "subscription_resumed":
		return e.subscriptionResumed(ctx, content, origin)
	case "payment_source_added":
		return e.paymentSourceAdded(ctx, content)
	case "payment_succeeded":
		return e.paymentSucceeded(ctx, content, origin)
	case "payment_initiated":
		return e.paymentInitiated(ctx, content)
	case "payment_failed":
		return e.paymentFailed(ctx, content)
	case "invoice_updated":
		return e.invoiceUpdated(ctx, content)
	}

	// recognisedEvents and the switch are maintained together.
	return terminal(&domain.Outcome{
		StatusCode: 400,
		Message:    "Unhandled Event Type",
		Data:       eventType,
		APISrc:     domain.SourceBilling,
	})
}

// noAction is the explicit default outcome for branches that decide nothing
// needs to change.
func noAction(content map[string]json.RawMessage) *domain.Outcome {
	return &domain.Outcome{
		StatusCode: 200,
		Message:    "No action required",
		Data:       content,
		APISrc:     domain.SourceBilling,
	}
}

// ignored is the outcome for events a tenant deliberately does not act on.
func ignored(msg string, content map[string]json.RawMessage) *domain.Outcome {
	return &domain.Outcome{
		StatusCode: 200,
		Message:    msg,
		Data:       content,
		APISrc:     domain.SourceBilling,
	}
}

// validationErrOutcome resolves a classifier/decoder validation error locally.
func validationErrOutcome(err error, email string) *domain.Outcome {
	return &domain.Outcome{
		StatusCode: 422,
		Message:    fmt.Sprintf("%s | User: %s", err.Error(), email),
		APISrc:     domain.SourceBilling,
	}
}

// billingErrOutcome maps a failed billing gateway call to a terminal outcome.
func billingErrOutcome(err error) *domain.Outcome {
	return &domain.Outcome{
		StatusCode: 500,
		Message:    err.Error(),
		APISrc:     domain.SourceBilling,
	}
}

// accountErrOutcome maps a failed account gateway call to a terminal outcome,
// distinguishing the not-found condition.
func accountErrOutcome(err error, who string) *domain.Outcome {
	if errors.Is(err, domain.ErrAccountNotFound) {
		return &domain.Outcome{
			StatusCode: 501,
			Message:    fmt.Sprintf("Customer `%s` does not exist", who),
			APISrc:     domain.SourceMailbox,
		}
	}
	return &domain.Outcome{
		StatusCode: 500,
		Message:    err.Error(),
		APISrc:     domain.SourceMailbox,
	}
}
