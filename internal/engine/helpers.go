package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
)

// customerRef identifies a customer for gateway lookups. Events chained from an
// invoice only carry the customer id, so the mailbox account key falls back to
// it when no email is known.
type customerRef struct {
	id    string
	email string
}

func (c customerRef) accountKey() string {
	if c.email != "" {
		return c.email
	}
	return c.id
}

func (c customerRef) String() string {
	if c.email != "" {
		return c.email
	}
	return c.id
}

// isActiveSubscription reports whether the subscription is in an active-class
// status (active or non-renewing).
func isActiveSubscription(sub *domain.Subscription) bool {
	return sub.Status == domain.SubscriptionStatusActive ||
		sub.Status == domain.SubscriptionStatusNonRenewing
}

// isCurrentSubscription reports whether the subscription still counts towards
// the customer's standing (active, future or non-renewing).
func isCurrentSubscription(sub *domain.Subscription) bool {
	switch sub.Status {
	case domain.SubscriptionStatusActive,
		domain.SubscriptionStatusFuture,
		domain.SubscriptionStatusNonRenewing:
		return true
	}
	return false
}

// flagPresent reports whether a tenant custom flag has ever been initialised.
// The billing provider stores these as the strings "True"/"False"; an empty
// value means no webhook has set the flag yet.
func flagPresent(v string) bool {
	return v != ""
}

// amountOwed aggregates the amount due across the customer's current
// subscriptions and reports whether the customer is fully paid.
func (e *Engine) amountOwed(ctx context.Context, customerID string) (fullyPaid bool, owed int64, err error) {
	subs, err := e.billing.ListSubscriptions(ctx, customerID, nil)
	if err != nil {
		return false, 0, fmt.Errorf("listing subscriptions for %s: %w", customerID, err)
	}
	for i := range subs {
		if isCurrentSubscription(&subs[i]) {
			owed += subs[i].DueInvoicesCount
		}
	}
	return owed == 0, owed, nil
}

// okToActivate applies the fixed threshold rule: an account may be active iff
// nothing is owed or the owed amount is under the minor-unit threshold.
func okToActivate(fullyPaid bool, owed int64) bool {
	return fullyPaid || owed < amountOwedThreshold
}

// statusUpdated builds the outcome for a completed account-status correction.
func statusUpdated(before string, updated *domain.Account, content map[string]json.RawMessage) *domain.Outcome {
	return &domain.Outcome{
		StatusCode: 201,
		Message: fmt.Sprintf("Updated <account_status> %s => %s | User: %s",
			before, updated.AccountStatus, updated.Username),
		Data:   content,
		Object: updated,
		APISrc: domain.SourceMailbox,
	}
}

// statusUnchanged builds the idempotent no-op outcome for an account already in
// an acceptable status.
func statusUnchanged(acct *domain.Account) *domain.Outcome {
	return &domain.Outcome{
		StatusCode: 200,
		Message: fmt.Sprintf("Account: %s is already '%s'. Skipping update",
			acct.Username, acct.AccountStatus),
		Object: acct,
		APISrc: domain.SourceMailbox,
	}
}

// ensureStatus fetches the live account and, when its status is outside the
// allowed set, issues a single corrective update to target. Already-acceptable
// accounts produce a no-op outcome, never a duplicate external update.
func (e *Engine) ensureStatus(ctx context.Context, ref customerRef, target string, allowed []string, content map[string]json.RawMessage) *domain.Outcome {
	acct, err := e.accounts.ViewAccount(ctx, ref.accountKey())
	if err != nil {
		return accountErrOutcome(err, ref.String())
	}
	for _, s := range allowed {
		if acct.AccountStatus == s {
			return statusUnchanged(acct)
		}
	}
	updated, err := e.accounts.UpdateAccount(ctx, ref.accountKey(), map[string]string{"account_status": target})
	if err != nil {
		return accountErrOutcome(err, ref.String())
	}
	zerolog.Ctx(ctx).Info().
		Str("user", updated.Username).
		Str("from", acct.AccountStatus).
		Str("to", target).
		Msg("account status corrected")
	return statusUpdated(acct.AccountStatus, updated, content)
}

// reconcileStanding applies the payment-standing rule used by
// subscription_changed and payment_succeeded: activate when the customer is
// clear or under the threshold, restrict a currently-active account otherwise,
// and no-op in every other case.
func (e *Engine) reconcileStanding(ctx context.Context, ref customerRef, content map[string]json.RawMessage) *domain.Outcome {
	fullyPaid, owed, err := e.amountOwed(ctx, ref.id)
	if err != nil {
		return billingErrOutcome(err)
	}
	zerolog.Ctx(ctx).Debug().
		Bool("fully_paid", fullyPaid).
		Int64("amount_owed", owed).
		Msg("payment standing computed")

	acct, err := e.accounts.ViewAccount(ctx, ref.accountKey())
	if err != nil {
		return accountErrOutcome(err, ref.String())
	}

	if okToActivate(fullyPaid, owed) {
		if acct.AccountStatus == domain.AccountStatusActive {
			return statusUnchanged(acct)
		}
		updated, err := e.accounts.UpdateAccount(ctx, ref.accountKey(), map[string]string{"account_status": domain.AccountStatusActive})
		if err != nil {
			return accountErrOutcome(err, ref.String())
		}
		return statusUpdated(acct.AccountStatus, updated, content)
	}

	if acct.AccountStatus == domain.AccountStatusActive {
		updated, err := e.accounts.UpdateAccount(ctx, ref.accountKey(), map[string]string{"account_status": domain.AccountStatusRestricted})
		if err != nil {
			return accountErrOutcome(err, ref.String())
		}
		return statusUpdated(acct.AccountStatus, updated, content)
	}
	return statusUnchanged(acct)
}
