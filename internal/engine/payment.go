/**
 * @description
 * Transition rules for payment and invoice events. The provisioning tenant is
 * deliberately not interested in any of these. For the billing-flag tenant a
 * successful or initiated payment reactivates the mailbox account, a new card
 * payment source may back-fill the customer's billing address, and an invoice
 * update resolves into the resume chain once no transactions are in flight.
 * payment_failed is intentionally not escalated to a status change.
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

const notInterestedMsg = "Ignored Event - Not interested in payment events for tasman"

func (e *Engine) paymentSourceAdded(ctx context.Context, content map[string]json.RawMessage) action {
	switch e.tenant {
	case plan.TenantProvisioning:
		return terminal(ignored(notInterestedMsg, content))

	case plan.TenantBilling:
		ps, err := domain.DecodePaymentSource(content)
		if err != nil {
			return terminal(validationErrOutcome(err, ""))
		}
		hasCard := ps.PaymentMethod != nil && ps.PaymentMethod.Type == "card"
		if ps.BillingAddress != nil || !hasCard {
			return terminal(noAction(content))
		}
		if ps.CardStatus != "valid" {
			return terminal(&domain.Outcome{
				StatusCode: 400,
				Message:    "Invalid card content",
				APISrc:     domain.SourceBilling,
			})
		}

		card, err := domain.DecodeCard(content)
		if err != nil {
			return terminal(validationErrOutcome(err, ps.Email))
		}
		// The customer has a valid card but no billing address: synthesise one
		// from the card's billing fields and push it back to the provider.
		update := domain.BillingInfoUpdate{
			FirstName: card.FirstName,
			LastName:  card.LastName,
			BillingAddress: domain.BillingAddress{
				FirstName: card.FirstName,
				LastName:  card.LastName,
				Line1:     card.BillingAddr1,
				City:      card.BillingCity,
				State:     card.BillingState,
				Country:   card.BillingCountry,
				Zip:       card.BillingZip,
			},
		}
		if err := e.billing.UpdateCustomerBillingInfo(ctx, ps.ID, update); err != nil {
			return terminal(billingErrOutcome(err))
		}
		zerolog.Ctx(ctx).Info().Str("customer", ps.ID).Msg("billing address synthesised from card")
		return terminal(&domain.Outcome{
			StatusCode: 201,
			Message:    fmt.Sprintf("Billing address updated from card | User: %s", ps.Email),
			Data:       ps.Email,
			APISrc:     domain.SourceBilling,
		})
	}

	return terminal(noAction(content))
}

// resolvePaymentCustomer derives the customer a payment_succeeded step applies
// to. With no fallthrough the payment bundle names the customer directly; a
// subscription-class origin carries the customer object in the chained payload;
// an invoice-class origin only knows the invoice's customer reference.
func resolvePaymentCustomer(content map[string]json.RawMessage, origin string) (customerRef, error) {
	if origin == "" {
		payment, err := domain.DecodePayment(content)
		if err != nil {
			return customerRef{}, err
		}
		return customerRef{id: payment.Customer.ID, email: payment.Customer.Email}, nil
	}
	switch domain.EventClass(origin) {
	case "subscription":
		customer, err := domain.DecodeCustomer(content)
		if err != nil {
			return customerRef{}, err
		}
		return customerRef{id: customer.ID, email: customer.Email}, nil
	case "invoice":
		invoice, err := domain.DecodeInvoice(content)
		if err != nil {
			return customerRef{}, err
		}
		return customerRef{id: invoice.CustomerID}, nil
	}
	return customerRef{}, domain.NewValidationError(fmt.Sprintf("Cannot resolve customer from %s fallthrough", origin))
}

func (e *Engine) paymentSucceeded(ctx context.Context, content map[string]json.RawMessage, origin string) action {
	switch e.tenant {
	case plan.TenantProvisioning:
		return terminal(ignored(notInterestedMsg, content))

	case plan.TenantBilling:
		ref, err := resolvePaymentCustomer(content, origin)
		if err != nil {
			return terminal(validationErrOutcome(err, ""))
		}
		zerolog.Ctx(ctx).Debug().Str("customer", ref.String()).Str("origin", origin).Msg("payment standing check")
		return terminal(e.reconcileStanding(ctx, ref, content))
	}

	return terminal(noAction(content))
}

func (e *Engine) paymentInitiated(ctx context.Context, content map[string]json.RawMessage) action {
	switch e.tenant {
	case plan.TenantProvisioning:
		return terminal(ignored(notInterestedMsg, content))

	case plan.TenantBilling:
		payment, err := domain.DecodePayment(content)
		if err != nil {
			return terminal(validationErrOutcome(err, ""))
		}
		ref := customerRef{id: payment.Customer.ID, email: payment.Customer.Email}
		// No amount-owed check here: an initiated payment is taken on trust.
		return terminal(e.ensureStatus(ctx, ref, domain.AccountStatusActive,
			[]string{domain.AccountStatusActive}, content))
	}

	return terminal(noAction(content))
}

func (e *Engine) paymentFailed(ctx context.Context, content map[string]json.RawMessage) action {
	switch e.tenant {
	case plan.TenantProvisioning:
		return terminal(ignored(notInterestedMsg, content))

	case plan.TenantBilling:
		// Failures are left to the provider's dunning; the account status only
		// moves on success or initiation.
		return terminal(&domain.Outcome{
			StatusCode: 400,
			Message:    "Unhandled Event Type",
			Data:       "payment_failed",
			APISrc:     domain.SourceBilling,
		})
	}

	return terminal(noAction(content))
}

func (e *Engine) invoiceUpdated(ctx context.Context, content map[string]json.RawMessage) action {
	switch e.tenant {
	case plan.TenantProvisioning:
		return terminal(ignored(notInterestedMsg, content))

	case plan.TenantBilling:
		invoice, err := domain.DecodeInvoice(content)
		if err != nil {
			return terminal(validationErrOutcome(err, ""))
		}
		inProgress, err := e.billing.ListTransactions(ctx, invoice.CustomerID, map[string]string{
			"status[is]": "in_progress",
			"limit":      "2",
		})
		if err != nil {
			return terminal(billingErrOutcome(err))
		}
		if len(inProgress) > 0 {
			return terminal(&domain.Outcome{
				StatusCode: 200,
				Message:    fmt.Sprintf("Transactions in progress: %d, not changing account status", len(inProgress)),
				APISrc:     domain.SourceBilling,
			})
		}
		zerolog.Ctx(ctx).Info().Str("customer", invoice.CustomerID).Msg("no transactions in progress, resuming")
		return chainTo("subscription_resumed", "invoice_updated")
	}

	return terminal(noAction(content))
}
