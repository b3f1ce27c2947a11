/**
 * @description
 * The duplicate-cancellation sub-protocol used by the billing-flag tenant when
 * a subscription is created with backdating or started: any other active
 * subscription of the same customer that still carries the zero-priced
 * placeholder item is cancelled immediately, with a reason code distinguishing
 * plain duplicates from upgrades to a paid plan.
 */
package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
	"github.com/MarkM-Portfolio/atmail-webhooks/internal/plan"
)

// placeholderItemPriceID is the zero-priced sponsored item that marks a
// subscription as a cancellable duplicate.
const placeholderItemPriceID = "email-account-AUD-Monthly"

// Cancellation reason codes recorded with the billing provider.
const (
	reasonDuplicate = "Duplicate Subscription"
	reasonMovedPaid = "Moved to a Paid Plan"
)

// cancelDuplicates cancels the customer's other active placeholder
// subscriptions. It returns nil when processing should continue, or a terminal
// outcome when validation or a provider call failed. Cancellation failures are
// fatal for the whole event; nothing is retried.
func (e *Engine) cancelDuplicates(ctx context.Context, customer *domain.Customer, sub *domain.Subscription) *domain.Outcome {
	log := zerolog.Ctx(ctx)

	if sub.SubscriptionItems == nil {
		return validationErrOutcome(domain.NewValidationError("No subscription items"), customer.Email)
	}

	allowedTypes := map[string]bool{"plan": true, "addon": true, "charge": true}
	if e.tenant == plan.TenantProvisioning {
		allowedTypes = map[string]bool{"plan": true}
	}

	var newPlanPrice int64
	for _, item := range sub.Items() {
		if allowedTypes[item.ItemType] {
			newPlanPrice = item.UnitPrice
		}
	}

	activeSubs, err := e.billing.ListSubscriptions(ctx, customer.ID, map[string]string{"status[is]": domain.SubscriptionStatusActive})
	if err != nil {
		return billingErrOutcome(err)
	}

	for i := range activeSubs {
		other := &activeSubs[i]
		if other.ID == sub.ID {
			continue
		}
		for _, item := range other.Items() {
			if !allowedTypes[item.ItemType] {
				continue
			}
			if item.ItemPriceID != placeholderItemPriceID || item.UnitPrice != 0 {
				log.Debug().Str("subscription", other.ID).Msg("subscription does not qualify for cancellation")
				continue
			}
			reason := reasonDuplicate
			if newPlanPrice > 0 {
				reason = reasonMovedPaid
			}
			if err := e.billing.CancelSubscription(ctx, other.ID, domain.ImmediateCancel(reason)); err != nil {
				return billingErrOutcome(err)
			}
			log.Info().Str("subscription", other.ID).Str("reason", reason).Msg("cancelled duplicate subscription")
		}
	}

	return nil
}
