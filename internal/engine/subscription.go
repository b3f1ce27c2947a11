/**
 * @description
 * Transition rules for subscription lifecycle events. The provisioning tenant
 * reconciles the mailbox account's status and storage profile against the
 * subscription's plan; the billing-flag tenant maintains the paid-plan custom
 * flag, enforces the amount-owed threshold, and resolves several event types by
 * falling through to an equivalent one.
 */
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
	"github.com/MarkM-Portfolio/atmail-webhooks/internal/plan"
)

// inactiveStatuses is the allowed status set for an account whose subscription
// is no longer active-class. The first entry is the correction target.
var inactiveStatuses = []string{
	domain.AccountStatusRestricted,
	domain.AccountStatusFrozen,
	domain.AccountStatusDisabled,
	domain.AccountStatusDeleted,
}

func decodeSubscriptionEvent(content map[string]json.RawMessage) (*domain.Customer, *domain.Subscription, error) {
	customer, err := domain.DecodeCustomer(content)
	if err != nil {
		return nil, nil, err
	}
	sub, err := domain.DecodeSubscription(content)
	if err != nil {
		return nil, nil, err
	}
	return customer, sub, nil
}

// provisionOnCreate is the provisioning tenant's shared rule for
// subscription_created and subscription_created_with_backdating.
func (e *Engine) provisionOnCreate(ctx context.Context, customer *domain.Customer, sub *domain.Subscription, content map[string]json.RawMessage) action {
	emailPlan, err := plan.IsEmailPlan(e.tenant, sub)
	if err != nil {
		return terminal(validationErrOutcome(err, customer.Email))
	}
	if !emailPlan {
		zerolog.Ctx(ctx).Debug().Str("status", sub.Status).Msg("non-email subscription ignored")
		return terminal(ignored("Ignored Event - has non-email subscription", content))
	}
	if isActiveSubscription(sub) {
		ref := customerRef{id: customer.ID, email: customer.Email}
		return terminal(e.profileReconcile(ctx, ref, sub, content))
	}
	return terminal(ignored(
		fmt.Sprintf("Ignored Event - myAccount `%s` responsible for setting up", customer.Email), content))
}

func (e *Engine) subscriptionCreated(ctx context.Context, content map[string]json.RawMessage) action {
	customer, sub, err := decodeSubscriptionEvent(content)
	if err != nil {
		return terminal(validationErrOutcome(err, ""))
	}
	ref := customerRef{id: customer.ID, email: customer.Email}

	switch e.tenant {
	case plan.TenantProvisioning:
		return e.provisionOnCreate(ctx, customer, sub, content)

	case plan.TenantBilling:
		paid, err := plan.IsPaidPlan(e.tenant, sub)
		if err != nil {
			return terminal(validationErrOutcome(err, customer.Email))
		}
		if paid && !flagPresent(customer.HasSelectedPaidPlan) {
			if _, err := e.billing.UpdateCustomer(ctx, customer.ID, map[string]string{
				"locale":                      "en-AU",
				"cf_has_selected_a_paid_plan": "True",
			}); err != nil {
				return terminal(billingErrOutcome(err))
			}
			zerolog.Ctx(ctx).Info().Str("customer", customer.ID).Msg("marked cf_has_selected_a_paid_plan")
		}

		fullyPaid, owed, err := e.amountOwed(ctx, customer.ID)
		if err != nil {
			return terminal(billingErrOutcome(err))
		}
		if !okToActivate(fullyPaid, owed) {
			return terminal(&domain.Outcome{
				StatusCode: 403,
				Message:    fmt.Sprintf("Customer %s still owing %d. Don't activate", customer.Email, owed),
				APISrc:     domain.SourceBilling,
			})
		}
		return terminal(e.ensureStatus(ctx, ref, domain.AccountStatusActive,
			[]string{domain.AccountStatusActive}, content))
	}

	return terminal(noAction(content))
}

func (e *Engine) subscriptionCreatedWithBackdating(ctx context.Context, content map[string]json.RawMessage) action {
	customer, sub, err := decodeSubscriptionEvent(content)
	if err != nil {
		return terminal(validationErrOutcome(err, ""))
	}
	ref := customerRef{id: customer.ID, email: customer.Email}

	switch e.tenant {
	case plan.TenantProvisioning:
		return e.provisionOnCreate(ctx, customer, sub, content)

	case plan.TenantBilling:
		if out := e.cancelDuplicates(ctx, customer, sub); out != nil {
			return terminal(out)
		}
		paid, err := plan.IsPaidPlan(e.tenant, sub)
		if err != nil {
			return terminal(validationErrOutcome(err, customer.Email))
		}
		if !paid {
			return terminal(&domain.Outcome{
				StatusCode: 201,
				Message:    fmt.Sprintf("Not a paid plan. Subscription created successfully. | User: %s", customer.Email),
				Data:       fmt.Sprintf("Subscription: %s", sub.ID),
				APISrc:     domain.SourceBilling,
			})
		}
		return terminal(e.profileReconcile(ctx, ref, sub, content))
	}

	return terminal(noAction(content))
}

func (e *Engine) subscriptionChanged(ctx context.Context, content map[string]json.RawMessage) action {
	customer, sub, err := decodeSubscriptionEvent(content)
	if err != nil {
		return terminal(validationErrOutcome(err, ""))
	}
	ref := customerRef{id: customer.ID, email: customer.Email}

	switch e.tenant {
	case plan.TenantProvisioning:
		emailPlan, err := plan.IsEmailPlan(e.tenant, sub)
		if err != nil {
			return terminal(validationErrOutcome(err, customer.Email))
		}
		if !emailPlan {
			return terminal(ignored("Ignored Event", content))
		}

		var result *domain.Outcome
		var allowed []string
		if isActiveSubscription(sub) {
			result = e.profileReconcile(ctx, ref, sub, content)
			if !result.OK() {
				return terminal(result)
			}
			allowed = []string{domain.AccountStatusActive}
		} else {
			result = ignored("Ignored Event - no change to an active subscription", content)
			allowed = inactiveStatuses
		}

		acct, err := e.accounts.ViewAccount(ctx, ref.accountKey())
		if err != nil {
			return terminal(accountErrOutcome(err, ref.String()))
		}
		for _, s := range allowed {
			if acct.AccountStatus == s {
				return terminal(result)
			}
		}
		updated, err := e.accounts.UpdateAccount(ctx, ref.accountKey(), map[string]string{"account_status": allowed[0]})
		if err != nil {
			return terminal(accountErrOutcome(err, ref.String()))
		}
		return terminal(statusUpdated(acct.AccountStatus, updated, content))

	case plan.TenantBilling:
		paid, err := plan.IsPaidPlan(e.tenant, sub)
		if err != nil {
			return terminal(validationErrOutcome(err, customer.Email))
		}
		if !paid || sub.Status == domain.SubscriptionStatusFuture {
			return terminal(&domain.Outcome{
				StatusCode: 200,
				Message:    "No action required - not a paid plan",
				Data:       content,
				APISrc:     domain.SourceBilling,
			})
		}
		rec := e.profileReconcile(ctx, ref, sub, content)
		if !rec.OK() {
			return terminal(rec)
		}
		return terminal(e.reconcileStanding(ctx, ref, content))
	}

	return terminal(noAction(content))
}

func (e *Engine) subscriptionStarted(ctx context.Context, content map[string]json.RawMessage) action {
	customer, sub, err := decodeSubscriptionEvent(content)
	if err != nil {
		return terminal(validationErrOutcome(err, ""))
	}
	ref := customerRef{id: customer.ID, email: customer.Email}

	switch e.tenant {
	case plan.TenantProvisioning:
		emailPlan, err := plan.IsEmailPlan(e.tenant, sub)
		if err != nil {
			return terminal(validationErrOutcome(err, customer.Email))
		}
		if !emailPlan || !isActiveSubscription(sub) {
			return terminal(ignored("Ignored Event", content))
		}
		rec := e.profileReconcile(ctx, ref, sub, content)
		if !rec.OK() {
			return terminal(rec)
		}
		acct, err := e.accounts.ViewAccount(ctx, ref.accountKey())
		if err != nil {
			return terminal(accountErrOutcome(err, ref.String()))
		}
		if acct.AccountStatus != domain.AccountStatusActive {
			updated, err := e.accounts.UpdateAccount(ctx, ref.accountKey(), map[string]string{"account_status": domain.AccountStatusActive})
			if err != nil {
				return terminal(accountErrOutcome(err, ref.String()))
			}
			return terminal(statusUpdated(acct.AccountStatus, updated, content))
		}
		return terminal(rec)

	case plan.TenantBilling:
		if out := e.cancelDuplicates(ctx, customer, sub); out != nil {
			return terminal(out)
		}
		return chainTo("subscription_changed", "")
	}

	return terminal(noAction(content))
}

func (e *Engine) subscriptionCancelled(ctx context.Context, content map[string]json.RawMessage) action {
	customer, sub, err := decodeSubscriptionEvent(content)
	if err != nil {
		return terminal(validationErrOutcome(err, ""))
	}
	ref := customerRef{id: customer.ID, email: customer.Email}

	switch e.tenant {
	case plan.TenantProvisioning:
		emailPlan, err := plan.IsEmailPlan(e.tenant, sub)
		if err != nil {
			return terminal(validationErrOutcome(err, customer.Email))
		}
		if !emailPlan {
			return terminal(ignored("Ignored Event", content))
		}

		activeSubs, err := e.billing.ListSubscriptions(ctx, customer.ID, map[string]string{"status[is]": domain.SubscriptionStatusActive})
		if err != nil {
			return terminal(billingErrOutcome(err))
		}
		if len(activeSubs) > 0 {
			return terminal(ignored("Ignored Event - has active subscription", content))
		}

		family, err := plan.PlanFamily(e.tenant, sub)
		if err != nil {
			return terminal(validationErrOutcome(err, customer.Email))
		}
		// Legacy-family accounts may end up frozen; standard-family accounts
		// only ever go to billing restriction.
		allowed := []string{domain.AccountStatusRestricted}
		if family == plan.FamilyLegacy {
			allowed = []string{domain.AccountStatusRestricted, domain.AccountStatusFrozen}
		}

		rec := e.profileReconcile(ctx, ref, sub, content)
		if !rec.OK() {
			return terminal(rec)
		}
		acct, err := e.accounts.ViewAccount(ctx, ref.accountKey())
		if err != nil {
			return terminal(accountErrOutcome(err, ref.String()))
		}
		for _, s := range allowed {
			if acct.AccountStatus == s {
				return terminal(rec)
			}
		}
		updated, err := e.accounts.UpdateAccount(ctx, ref.accountKey(), map[string]string{"account_status": allowed[0]})
		if err != nil {
			return terminal(accountErrOutcome(err, ref.String()))
		}
		return terminal(statusUpdated(acct.AccountStatus, updated, content))

	case plan.TenantBilling:
		subs, err := e.billing.ListSubscriptions(ctx, customer.ID, nil)
		if err != nil {
			return terminal(billingErrOutcome(err))
		}

		// Pick the remaining paid subscription with the highest storage
		// entitlement and re-apply profile reconciliation against it.
		var best *domain.Subscription
		var bestEnt plan.Entitlement
		for i := range subs {
			other := &subs[i]
			if other.ID == sub.ID || !isCurrentSubscription(other) {
				continue
			}
			paid, err := plan.IsPaidPlan(e.tenant, other)
			if err != nil || !paid {
				continue
			}
			ent, err := plan.PlanEntitlement(e.tenant, other)
			if err != nil {
				continue
			}
			if best == nil || ent.StorageBytes > bestEnt.StorageBytes {
				best, bestEnt = other, ent
			}
		}
		if best == nil {
			return terminal(noAction(content))
		}
		zerolog.Ctx(ctx).Debug().
			Str("subscription", best.ID).
			Int64("storage_bytes", bestEnt.StorageBytes).
			Msg("highest remaining paid subscription selected")
		return terminal(e.profileReconcile(ctx, ref, best, content))
	}

	return terminal(noAction(content))
}

func (e *Engine) subscriptionReactivated(ctx context.Context, content map[string]json.RawMessage, origin string) action {
	switch e.tenant {
	case plan.TenantProvisioning:
		customer, sub, err := decodeSubscriptionEvent(content)
		if err != nil {
			return terminal(validationErrOutcome(err, ""))
		}
		ref := customerRef{id: customer.ID, email: customer.Email}

		emailPlan, err := plan.IsEmailPlan(e.tenant, sub)
		if err != nil {
			return terminal(validationErrOutcome(err, customer.Email))
		}
		if !emailPlan {
			return terminal(ignored("Ignored Event", content))
		}
		rec := e.profileReconcile(ctx, ref, sub, content)
		if !rec.OK() {
			return terminal(rec)
		}
		acct, err := e.accounts.ViewAccount(ctx, ref.accountKey())
		if err != nil {
			return terminal(accountErrOutcome(err, ref.String()))
		}
		if acct.AccountStatus != domain.AccountStatusActive {
			updated, err := e.accounts.UpdateAccount(ctx, ref.accountKey(), map[string]string{"account_status": domain.AccountStatusActive})
			if err != nil {
				return terminal(accountErrOutcome(err, ref.String()))
			}
			return terminal(statusUpdated(acct.AccountStatus, updated, content))
		}
		return terminal(rec)

	case plan.TenantBilling:
		// A reactivation is equivalent to a successful payment. Preserve an
		// existing fallthrough origin so customer resolution stays correct.
		if origin == "" {
			origin = "subscription_reactivated"
		}
		return chainTo("payment_succeeded", origin)
	}

	return terminal(noAction(content))
}

func (e *Engine) subscriptionPaused(ctx context.Context, content map[string]json.RawMessage) action {
	customer, sub, err := decodeSubscriptionEvent(content)
	if err != nil {
		return terminal(validationErrOutcome(err, ""))
	}
	ref := customerRef{id: customer.ID, email: customer.Email}

	switch e.tenant {
	case plan.TenantProvisioning:
		emailPlan, err := plan.IsEmailPlan(e.tenant, sub)
		if err != nil {
			return terminal(validationErrOutcome(err, customer.Email))
		}
		if !emailPlan {
			return terminal(ignored("Ignored Event", content))
		}
		return terminal(e.ensureStatus(ctx, ref, domain.AccountStatusRestricted,
			[]string{domain.AccountStatusRestricted, domain.AccountStatusFrozen}, content))

	case plan.TenantBilling:
		return chainTo("subscription_cancelled", "")
	}

	return terminal(noAction(content))
}

func (e *Engine) subscriptionResumed(ctx context.Context, content map[string]json.RawMessage, origin string) action {
	switch e.tenant {
	case plan.TenantProvisioning:
		customer, sub, err := decodeSubscriptionEvent(content)
		if err != nil {
			return terminal(validationErrOutcome(err, ""))
		}
		ref := customerRef{id: customer.ID, email: customer.Email}

		emailPlan, err := plan.IsEmailPlan(e.tenant, sub)
		if err != nil {
			return terminal(validationErrOutcome(err, customer.Email))
		}
		if !emailPlan {
			return terminal(ignored("Ignored Event", content))
		}
		return terminal(e.ensureStatus(ctx, ref, domain.AccountStatusActive,
			[]string{domain.AccountStatusActive}, content))

	case plan.TenantBilling:
		// A resume is equivalent to a reactivation; the origin marker survives
		// further hops down the chain.
		if origin == "" {
			origin = "subscription_resumed"
		}
		return chainTo("subscription_reactivated", origin)
	}

	return terminal(noAction(content))
}
