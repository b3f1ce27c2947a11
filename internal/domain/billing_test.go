package domain

import (
	"encoding/json"
	"testing"
)

func content(pairs map[string]string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(pairs))
	for k, v := range pairs {
		out[k] = json.RawMessage(v)
	}
	return out
}

func TestEventClass(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{eventType: "customer_created", want: "customer"},
		{eventType: "subscription_created_with_backdating", want: "subscription"},
		{eventType: "payment_succeeded", want: "payment"},
		{eventType: "payment_source_added", want: "payment_source"},
		{eventType: "invoice_updated", want: "invoice"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			if got := EventClass(tt.eventType); got != tt.want {
				t.Fatalf("expected class %q, got %q", tt.want, got)
			}
		})
	}
}

func TestValidateEventCustomer(t *testing.T) {
	tests := []struct {
		name       string
		content    map[string]json.RawMessage
		wantReason string
	}{
		{
			name:    "valid customer",
			content: content(map[string]string{"customer": `{"id":"cust_1","email":"a@b.co"}`}),
		},
		{
			name:       "missing customer object",
			content:    content(map[string]string{}),
			wantReason: "No customer object in event content",
		},
		{
			name:       "empty customer id",
			content:    content(map[string]string{"customer": `{"email":"a@b.co"}`}),
			wantReason: "Customer ID is empty",
		},
		{
			name:       "empty customer email",
			content:    content(map[string]string{"customer": `{"id":"cust_1"}`}),
			wantReason: "Customer email is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvent("customer_created", tt.content)
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !IsValidation(err) {
				t.Fatalf("expected a validation error, got %T", err)
			}
			if err.Error() != tt.wantReason {
				t.Fatalf("expected reason %q, got %q", tt.wantReason, err.Error())
			}
		})
	}
}

func TestValidateEventSubscription(t *testing.T) {
	base := map[string]string{
		"customer":     `{"id":"cust_1","email":"a@b.co"}`,
		"subscription": `{"id":"sub_1","customer_id":"cust_1","status":"active","subscription_items":[]}`,
	}

	if err := ValidateEvent("subscription_created", content(base)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missingItems := map[string]string{
		"customer":     base["customer"],
		"subscription": `{"id":"sub_1","customer_id":"cust_1","status":"active"}`,
	}
	err := ValidateEvent("subscription_created", content(missingItems))
	if err == nil || err.Error() != "No subscription items" {
		t.Fatalf("expected missing items error, got %v", err)
	}

	missingSub := map[string]string{"customer": base["customer"]}
	err = ValidateEvent("subscription_changed", content(missingSub))
	if err == nil || err.Error() != "No subscription object in event content" {
		t.Fatalf("expected missing subscription error, got %v", err)
	}
}

func TestValidateEventPayment(t *testing.T) {
	full := map[string]string{
		"transaction":  `{"id":"txn_1","customer_id":"cust_1"}`,
		"invoice":      `{"id":42,"customer_id":"cust_1"}`,
		"customer":     `{"id":"cust_1","email":"a@b.co"}`,
		"subscription": `{"id":"sub_1","customer_id":"cust_1","status":"active"}`,
	}

	if err := ValidateEvent("payment_succeeded", content(full)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	partial := map[string]string{
		"customer": full["customer"],
		"invoice":  full["invoice"],
	}
	if err := ValidateEvent("payment_succeeded", content(partial)); err == nil {
		t.Fatal("expected a validation error for incomplete payment bundle")
	}
}

func TestValidateEventInvoice(t *testing.T) {
	ok := content(map[string]string{"invoice": `{"id":42,"customer_id":"cust_1"}`})
	if err := ValidateEvent("invoice_updated", ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noCustomer := content(map[string]string{"invoice": `{"id":42}`})
	err := ValidateEvent("invoice_updated", noCustomer)
	if err == nil || err.Error() != "Customer ID is empty" {
		t.Fatalf("expected customer id error, got %v", err)
	}
}

func TestValidateEventPaymentSource(t *testing.T) {
	// payment_source events carry their snapshot inside the customer sub-object.
	ok := content(map[string]string{"customer": `{"id":"cust_1","email":"a@b.co","card_status":"valid"}`})
	if err := ValidateEvent("payment_source_added", ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	empty := content(map[string]string{"customer": `{"email":"a@b.co"}`})
	err := ValidateEvent("payment_source_added", empty)
	if err == nil || err.Error() != "Payment source ID is empty" {
		t.Fatalf("expected payment source id error, got %v", err)
	}
}

func TestInvoiceIDAcceptsNumberOrString(t *testing.T) {
	numeric := content(map[string]string{"invoice": `{"id":42,"customer_id":"cust_1"}`})
	inv, err := DecodeInvoice(numeric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.ID.String() != "42" {
		t.Fatalf("expected invoice id 42, got %q", inv.ID.String())
	}

	textual := content(map[string]string{"invoice": `{"id":"inv_42","customer_id":"cust_1"}`})
	inv, err = DecodeInvoice(textual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.ID.String() != "inv_42" {
		t.Fatalf("expected invoice id inv_42, got %q", inv.ID.String())
	}

	malformed := content(map[string]string{"invoice": `{"id":true,"customer_id":"cust_1"}`})
	if _, err := DecodeInvoice(malformed); !IsValidation(err) {
		t.Fatalf("expected validation error for non-scalar invoice id, got %v", err)
	}
}

func TestDecodeCardReadsCustomerObject(t *testing.T) {
	payload := content(map[string]string{
		"customer": `{"id":"cust_1","first_name":"Ada","last_name":"Lovelace","billing_addr1":"1 Example St","billing_city":"Sydney","billing_zip":"2000"}`,
	})

	card, err := DecodeCard(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card.FirstName != "Ada" || card.BillingAddr1 != "1 Example St" || card.BillingZip != "2000" {
		t.Fatalf("unexpected card decode: %+v", card)
	}
}

func TestSubscriptionItemsAbsenceVsEmpty(t *testing.T) {
	absent := content(map[string]string{"subscription": `{"id":"sub_1","customer_id":"cust_1"}`})
	sub, err := DecodeSubscription(absent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.SubscriptionItems != nil {
		t.Fatal("expected absent subscription_items to decode as nil")
	}

	empty := content(map[string]string{"subscription": `{"id":"sub_1","customer_id":"cust_1","subscription_items":[]}`})
	sub, err = DecodeSubscription(empty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.SubscriptionItems == nil || len(sub.Items()) != 0 {
		t.Fatal("expected empty subscription_items to decode as an empty list")
	}
}
