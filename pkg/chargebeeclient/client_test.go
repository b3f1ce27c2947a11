package chargebeeclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
)

func TestListSubscriptionsParsesListEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/subscriptions", r.URL.Path)
		require.Equal(t, "cust_1", r.URL.Query().Get("customer_id[is]"))
		require.Equal(t, "active", r.URL.Query().Get("status[is]"))

		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "test_api_key", user)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"list":[
			{"subscription":{"id":"sub_1","customer_id":"cust_1","status":"active","subscription_items":[{"item_price_id":"plan-bv1-AUD-Monthly","item_type":"plan"}]}},
			{"subscription":{"id":"sub_2","customer_id":"cust_1","status":"active"}}
		]}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, "test_api_key")
	subs, err := client.ListSubscriptions(context.Background(), "cust_1", map[string]string{"status[is]": "active"})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, "sub_1", subs[0].ID)
	require.Len(t, subs[0].Items(), 1)
	require.Nil(t, subs[1].SubscriptionItems)
}

func TestListTransactionsParsesListEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions", r.URL.Path)
		require.Equal(t, "in_progress", r.URL.Query().Get("status[is]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"list":[{"transaction":{"id":"txn_1","customer_id":"cust_1","status":"in_progress"}}]}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, "test_api_key")
	txns, err := client.ListTransactions(context.Background(), "cust_1", map[string]string{"status[is]": "in_progress"})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, "txn_1", txns[0].ID)
}

func TestUpdateCustomerSendsFormEncodedFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/customers/cust_1", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		require.Equal(t, "True", r.PostForm.Get("cf_has_selected_a_paid_plan"))
		require.Equal(t, "en-AU", r.PostForm.Get("locale"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"customer":{"id":"cust_1","email":"a@b.co","cf_has_selected_a_paid_plan":"True"}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, "test_api_key")
	customer, err := client.UpdateCustomer(context.Background(), "cust_1", map[string]string{
		"locale":                      "en-AU",
		"cf_has_selected_a_paid_plan": "True",
	})
	require.NoError(t, err)
	require.Equal(t, "True", customer.HasSelectedPaidPlan)
}

func TestCancelSubscriptionSendsCancellationTerms(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/subscriptions/sub_1/cancel_for_items", r.URL.Path)

		require.NoError(t, r.ParseForm())
		require.Equal(t, "false", r.PostForm.Get("end_of_term"))
		require.Equal(t, "none", r.PostForm.Get("credit_option_for_current_term_charges"))
		require.Equal(t, "delete", r.PostForm.Get("unbilled_charges_option"))
		require.Equal(t, "Duplicate Subscription", r.PostForm.Get("cancel_reason_code"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subscription":{"id":"sub_1","status":"cancelled"}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, "test_api_key")
	err := client.CancelSubscription(context.Background(), "sub_1", domain.ImmediateCancel("Duplicate Subscription"))
	require.NoError(t, err)
}

func TestAPIErrorsSurfaceMessageAndCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"customer cust_x not found","error_code":"resource_not_found","http_status_code":404}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, "test_api_key")
	_, err := client.ListSubscriptions(context.Background(), "cust_x", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "resource_not_found")
	require.Contains(t, err.Error(), "customer cust_x not found")
}
