/**
 * @description
 * Transition rules for customer lifecycle events. The provisioning tenant keeps
 * the mailbox account linked to the billing customer (billing code and email
 * linkage); the billing-flag tenant initialises the customer's tenant custom
 * flags and links the mailbox account for non-staff addresses.
 */
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
	"github.com/MarkM-Portfolio/atmail-webhooks/internal/plan"
)

// staffDomains are internal addresses that never get a customer-managed
// mailbox link.
var staffDomains = []string{"@themessaging.co", "@team.atmail.com"}

func isStaffAddress(email string) bool {
	lower := strings.ToLower(email)
	for _, d := range staffDomains {
		if strings.HasSuffix(lower, d) {
			return true
		}
	}
	return false
}

func (e *Engine) customerCreated(ctx context.Context, content map[string]json.RawMessage) action {
	customer, err := domain.DecodeCustomer(content)
	if err != nil {
		return terminal(validationErrOutcome(err, ""))
	}

	switch e.tenant {
	case plan.TenantProvisioning:
		// Ensure the mailbox account carries the billing customer id.
		updated, err := e.accounts.UpdateAccount(ctx, customer.Email, map[string]string{"billingCode": customer.ID})
		if err != nil {
			return terminal(accountErrOutcome(err, customer.Email))
		}
		return terminal(&domain.Outcome{
			StatusCode: 201,
			Message:    fmt.Sprintf("Update Success! <billingCode> %s | User: %s", customer.ID, updated.Username),
			Data:       content,
			Object:     updated,
			APISrc:     domain.SourceMailbox,
		})

	case plan.TenantBilling:
		if !flagPresent(customer.HasSelectedPaidPlan) {
			if _, err := e.billing.UpdateCustomer(ctx, customer.ID, map[string]string{
				"locale":                      "en-AU",
				"cf_has_selected_a_paid_plan": "False",
			}); err != nil {
				return terminal(billingErrOutcome(err))
			}
			zerolog.Ctx(ctx).Info().Str("customer", customer.ID).Msg("cleared cf_has_selected_a_paid_plan")
		}
		if !flagPresent(customer.AlreadyPayingWithProvider) {
			if _, err := e.billing.UpdateCustomer(ctx, customer.ID, map[string]string{
				"locale":                          "en-AU",
				"cf_already_paying_with_provider": "False",
			}); err != nil {
				return terminal(billingErrOutcome(err))
			}
			zerolog.Ctx(ctx).Info().Str("customer", customer.ID).Msg("cleared cf_already_paying_with_provider")
			return chainTo("customer_changed", "")
		}
	}

	return terminal(noAction(content))
}

func (e *Engine) customerChanged(ctx context.Context, content map[string]json.RawMessage) action {
	customer, err := domain.DecodeCustomer(content)
	if err != nil {
		return terminal(validationErrOutcome(err, ""))
	}

	switch e.tenant {
	case plan.TenantProvisioning:
		acct, err := e.accounts.ViewAccount(ctx, customer.Email)
		if err != nil {
			return terminal(accountErrOutcome(err, customer.Email))
		}

		var result *domain.Outcome
		if acct.BillingCode != customer.ID {
			updated, err := e.accounts.UpdateAccount(ctx, customer.Email, map[string]string{"billingCode": customer.ID})
			if err != nil {
				return terminal(accountErrOutcome(err, customer.Email))
			}
			result = &domain.Outcome{
				StatusCode: 201,
				Message:    fmt.Sprintf("Update Success! <billingCode> %s => %s | User: %s", acct.BillingCode, customer.ID, updated.Username),
				Data:       content,
				Object:     updated,
				APISrc:     domain.SourceMailbox,
			}
		}
		if acct.Username != customer.Email {
			// The account's address no longer matches the customer: clear the
			// stale linkage rather than re-pointing it.
			updated, err := e.accounts.UpdateAccount(ctx, acct.BillingCode, map[string]string{"billingCode": ""})
			if err != nil {
				return terminal(accountErrOutcome(err, acct.BillingCode))
			}
			result = &domain.Outcome{
				StatusCode: 201,
				Message:    fmt.Sprintf("Update Success! cleared stale <billingCode> | User: %s", updated.Username),
				Data:       content,
				Object:     updated,
				APISrc:     domain.SourceMailbox,
			}
		}
		if result == nil {
			return terminal(noAction(content))
		}
		return terminal(result)

	case plan.TenantBilling:
		if isStaffAddress(customer.Email) {
			return terminal(&domain.Outcome{
				StatusCode: 201,
				Message:    "Customer Create Success! | Internal user",
				Data:       customer.Email,
				APISrc:     domain.SourceBilling,
			})
		}
		updated, err := e.accounts.UpdateAccount(ctx, customer.Email, map[string]string{"billingCode": customer.ID})
		if err != nil {
			return terminal(accountErrOutcome(err, customer.Email))
		}
		return terminal(&domain.Outcome{
			StatusCode: 201,
			Message:    fmt.Sprintf("Customer Create Success! | User: %s, <billingCode> %s", customer.Email, updated.BillingCode),
			Data:       content,
			Object:     updated,
			APISrc:     domain.SourceMailbox,
		})
	}

	return terminal(noAction(content))
}
