/**
 * @description
 * Request types shared between the reconciliation engine and the two gateway
 * clients. They keep the gateway interfaces narrow without leaking either remote
 * system's wire format into the engine.
 */
package domain

// CancelOptions are the terms a subscription is cancelled under. The engine
// cancels duplicates immediately: no grace period, no proration, no refund
// handling.
type CancelOptions struct {
	EndOfTerm                  bool
	CreditOption               string
	UnbilledChargesOption      string
	AccountReceivablesHandling string
	RefundableCreditsHandling  string
	ReasonCode                 string
}

// ImmediateCancel builds the fixed no-credit, no-refund cancellation terms with
// the given reason code.
func ImmediateCancel(reason string) CancelOptions {
	return CancelOptions{
		EndOfTerm:                  false,
		CreditOption:               "none",
		UnbilledChargesOption:      "delete",
		AccountReceivablesHandling: "no_action",
		RefundableCreditsHandling:  "no_action",
		ReasonCode:                 reason,
	}
}

// BillingInfoUpdate carries a synthesised billing address to push back to the
// billing provider.
type BillingInfoUpdate struct {
	FirstName      string
	LastName       string
	BillingAddress BillingAddress
}
