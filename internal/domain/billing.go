/**
 * @description
 * This file defines the Go structs that model the entities embedded in a Chargebee
 * webhook payload. Every event carries a nested `content` object from which only
 * the sub-objects relevant to that event class are decoded: customer for
 * customer/subscription events, the full payment bundle for payment events, the
 * customer object (which doubles as the payment source snapshot) for
 * payment_source events, and the invoice for invoice events.
 *
 * @notes
 * - All entities are immutable snapshots of the billing provider's state at the
 *   time the event fired. Nothing here is persisted; the engine rebuilds its view
 *   of the world on every invocation.
 * - Unknown JSON fields are ignored on purpose: Chargebee adds attributes over
 *   time and the engine only depends on the fields modeled below.
 */
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// WebhookPayload is the inbound event envelope produced by the transport layer.
// The engine only ever reads EventType and Content.
type WebhookPayload struct {
	EventType     string                     `json:"event_type"`
	WebhookStatus string                     `json:"webhook_status"`
	Content       map[string]json.RawMessage `json:"content"`
}

// BillingAddress is the customer's billing address as Chargebee reports it.
type BillingAddress struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Company   string `json:"company,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Line1     string `json:"line1,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Country   string `json:"country,omitempty"`
	Zip       string `json:"zip,omitempty"`
}

// Customer is the billing provider's customer record. The cf_* fields are
// tenant-specific custom fields; they hold the strings "True"/"False" once a
// webhook has initialised them and are empty until then.
type Customer struct {
	ID                          string          `json:"id"`
	Email                       string          `json:"email"`
	FirstName                   string          `json:"first_name,omitempty"`
	LastName                    string          `json:"last_name,omitempty"`
	Locale                      string          `json:"locale,omitempty"`
	BillingAddress              *BillingAddress `json:"billing_address,omitempty"`
	HasSelectedPaidPlan         string          `json:"cf_has_selected_a_paid_plan,omitempty"`
	AlreadyPayingWithProvider   string          `json:"cf_already_paying_with_provider,omitempty"`
	ReactivationServiceExempted string          `json:"cf_reactivation_service_exempted,omitempty"`
}

// SubscriptionItem is a single line item of a subscription. The item price id
// encodes the plan family and tier by prefix.
type SubscriptionItem struct {
	ItemPriceID  string `json:"item_price_id"`
	ItemType     string `json:"item_type"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unit_price"`
	Amount       int64  `json:"amount"`
	FreeQuantity int    `json:"free_quantity"`
}

// Subscription statuses as Chargebee enumerates them.
const (
	SubscriptionStatusActive      = "active"
	SubscriptionStatusNonRenewing = "non_renewing"
	SubscriptionStatusFuture      = "future"
	SubscriptionStatusCancelled   = "cancelled"
	SubscriptionStatusPaused      = "paused"
)

// Subscription is the billing provider's subscription record. SubscriptionItems
// is a pointer so that absence (a validation error for subscription events) can
// be told apart from an empty list.
type Subscription struct {
	ID                string              `json:"id"`
	CustomerID        string              `json:"customer_id"`
	Status            string              `json:"status"`
	SubscriptionItems *[]SubscriptionItem `json:"subscription_items,omitempty"`
	BillingPeriod     int                 `json:"billing_period,omitempty"`
	BillingPeriodUnit string              `json:"billing_period_unit,omitempty"`
	CurrencyCode      string              `json:"currency_code,omitempty"`
	DueInvoicesCount  int64               `json:"due_invoices_count,omitempty"`
	MRR               int64               `json:"mrr,omitempty"`
	Deleted           bool                `json:"deleted,omitempty"`
}

// Items returns the subscription's line items, or nil when the payload carried
// none at all.
func (s Subscription) Items() []SubscriptionItem {
	if s.SubscriptionItems == nil {
		return nil
	}
	return *s.SubscriptionItems
}

// InvoiceID is the invoice identifier. Chargebee sites configured with numeric
// invoice sequences emit a JSON number here; sites with prefixed ids emit a
// string, so both forms decode.
type InvoiceID string

func (id *InvoiceID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = InvoiceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invoice id must be a string or number, got %s", data)
	}
	*id = InvoiceID(n.String())
	return nil
}

func (id InvoiceID) String() string { return string(id) }

// Invoice is the billing provider's invoice record, referenced by payment and
// invoice events.
type Invoice struct {
	ID             InvoiceID `json:"id"`
	CustomerID     string    `json:"customer_id"`
	SubscriptionID string    `json:"subscription_id"`
	Status         string    `json:"status,omitempty"`
	Total          int64     `json:"total,omitempty"`
	AmountPaid     int64     `json:"amount_paid,omitempty"`
	AmountDue      int64     `json:"amount_due,omitempty"`
	CurrencyCode   string    `json:"currency_code,omitempty"`
	Recurring      bool      `json:"recurring,omitempty"`
	FirstInvoice   bool      `json:"first_invoice,omitempty"`
}

// Transaction is a single payment transaction at the billing provider.
type Transaction struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer_id"`
	SubscriptionID string `json:"subscription_id"`
	Type           string `json:"type,omitempty"`
	Amount         int64  `json:"amount,omitempty"`
	Status         string `json:"status,omitempty"`
	Gateway        string `json:"gateway,omitempty"`
	CurrencyCode   string `json:"currency_code,omitempty"`
}

// PaymentMethod describes how a payment source collects money.
type PaymentMethod struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
}

// Card is the card snapshot attached to a payment source. Chargebee inlines the
// card's billing fields on the customer object of payment_source events, so the
// decoder reads this from the same sub-object as PaymentSource.
type Card struct {
	Status         string `json:"status,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	IIN            string `json:"iin,omitempty"`
	Last4          string `json:"last4,omitempty"`
	CardType       string `json:"card_type,omitempty"`
	BillingAddr1   string `json:"billing_addr1,omitempty"`
	BillingCity    string `json:"billing_city,omitempty"`
	BillingState   string `json:"billing_state,omitempty"`
	BillingCountry string `json:"billing_country,omitempty"`
	BillingZip     string `json:"billing_zip,omitempty"`
}

// PaymentSource is the customer-side snapshot carried by payment_source events.
type PaymentSource struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	FirstName      string          `json:"first_name,omitempty"`
	LastName       string          `json:"last_name,omitempty"`
	BillingAddress *BillingAddress `json:"billing_address,omitempty"`
	CardStatus     string          `json:"card_status,omitempty"`
	PaymentMethod  *PaymentMethod  `json:"payment_method,omitempty"`
}

// Payment bundles the four records a payment event carries at the top level of
// its content object.
type Payment struct {
	Transaction  Transaction  `json:"transaction"`
	Invoice      Invoice      `json:"invoice"`
	Customer     Customer     `json:"customer"`
	Subscription Subscription `json:"subscription"`
}

// decode unmarshals one named sub-object of the event content into dst. A
// missing sub-object is reported as a validation error naming the object.
func decode(content map[string]json.RawMessage, key string, dst any) error {
	raw, ok := content[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return NewValidationError(fmt.Sprintf("No %s object in event content", key))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewValidationError(fmt.Sprintf("Malformed %s object: %v", key, err))
	}
	return nil
}

// DecodeCustomer extracts the customer record from the event content.
func DecodeCustomer(content map[string]json.RawMessage) (*Customer, error) {
	var c Customer
	if err := decode(content, "customer", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DecodeSubscription extracts the subscription record from the event content.
func DecodeSubscription(content map[string]json.RawMessage) (*Subscription, error) {
	var s Subscription
	if err := decode(content, "subscription", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeInvoice extracts the invoice record from the event content.
func DecodeInvoice(content map[string]json.RawMessage) (*Invoice, error) {
	var inv Invoice
	if err := decode(content, "invoice", &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// DecodePayment extracts the full payment bundle from the event content. Payment
// events carry transaction, invoice, customer and subscription side by side.
func DecodePayment(content map[string]json.RawMessage) (*Payment, error) {
	var p Payment
	for key, dst := range map[string]any{
		"transaction":  &p.Transaction,
		"invoice":      &p.Invoice,
		"customer":     &p.Customer,
		"subscription": &p.Subscription,
	} {
		if err := decode(content, key, dst); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// DecodePaymentSource extracts the payment source snapshot. Chargebee reports it
// through the customer sub-object of payment_source events.
func DecodePaymentSource(content map[string]json.RawMessage) (*PaymentSource, error) {
	var ps PaymentSource
	if err := decode(content, "customer", &ps); err != nil {
		return nil, err
	}
	return &ps, nil
}

// DecodeCard extracts the card snapshot from the same customer sub-object a
// payment source is read from.
func DecodeCard(content map[string]json.RawMessage) (*Card, error) {
	var card Card
	if err := decode(content, "customer", &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// EventClass returns the leading segment of an event type ("customer",
// "subscription", "payment", "invoice"). payment_source events form their own
// class because they validate against the payment source, not the payment
// bundle.
func EventClass(eventType string) string {
	if strings.HasPrefix(eventType, "payment_source") {
		return "payment_source"
	}
	if i := strings.IndexByte(eventType, '_'); i > 0 {
		return eventType[:i]
	}
	return eventType
}

// ValidateEvent checks that the identifiers required by the event's class are
// present in the content. It runs before any branch-specific logic, for every
// event type, and is the only place validation failures originate from. For
// chained re-dispatch the caller passes the originating event type so the
// required objects match the payload that actually arrived.
func ValidateEvent(eventType string, content map[string]json.RawMessage) error {
	switch EventClass(eventType) {
	case "customer":
		customer, err := DecodeCustomer(content)
		if err != nil {
			return err
		}
		if customer.ID == "" {
			return NewValidationError("Customer ID is empty")
		}
		if customer.Email == "" {
			return NewValidationError("Customer email is empty")
		}

	case "subscription":
		customer, err := DecodeCustomer(content)
		if err != nil {
			return err
		}
		subscription, err := DecodeSubscription(content)
		if err != nil {
			return err
		}
		switch {
		case subscription.ID == "":
			return NewValidationError("Subscription ID is empty")
		case customer.ID == "" || subscription.CustomerID == "":
			return NewValidationError("Customer ID is empty")
		case customer.Email == "":
			return NewValidationError("Customer email is empty")
		case subscription.SubscriptionItems == nil:
			return NewValidationError("No subscription items")
		}

	case "payment_source":
		ps, err := DecodePaymentSource(content)
		if err != nil {
			return err
		}
		if ps.ID == "" {
			return NewValidationError("Payment source ID is empty")
		}

	case "payment":
		payment, err := DecodePayment(content)
		if err != nil {
			return err
		}
		if payment.Customer.ID == "" || payment.Subscription.ID == "" ||
			payment.Invoice.ID.String() == "" || payment.Transaction.ID == "" {
			return NewValidationError("Payment customer ID is empty")
		}

	case "invoice":
		invoice, err := DecodeInvoice(content)
		if err != nil {
			return err
		}
		if invoice.ID.String() == "" {
			return NewValidationError("Invoice ID is empty")
		}
		if invoice.CustomerID == "" {
			return NewValidationError("Customer ID is empty")
		}
	}

	return nil
}
