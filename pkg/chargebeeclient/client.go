/**
 * @description
 * This package provides a client for the Chargebee v2 REST API. It encapsulates
 * authenticated request construction, form-encoded writes, and response parsing
 * for the handful of endpoints the reconciliation engine consults: listing
 * subscriptions and transactions, updating customers and their billing info,
 * and cancelling item-based subscriptions.
 *
 * @dependencies
 * - net/http, net/url, encoding/json: Standard Go libraries.
 * - internal/domain: entity snapshots and gateway request types.
 */
package chargebeeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
)

// Client is a client for one Chargebee site.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the given Chargebee site (e.g. "msgco"),
// authenticated with its API key.
func NewClient(site, apiKey string) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("https://%s.chargebee.com/api/v2", site),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBaseURL creates a client against an explicit base URL. Used by
// tests to point the client at a local server.
func NewClientWithBaseURL(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is Chargebee's error envelope.
type apiError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
	HTTPCode  int    `json:"http_status_code"`
}

// listEnvelope is the shape of Chargebee list endpoints: a list of wrapper
// objects each naming its entity.
type listEnvelope struct {
	List       []map[string]json.RawMessage `json:"list"`
	NextOffset string                       `json:"next_offset,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(params.Encode())
	} else if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to chargebee: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("chargebee api error (%s): %s", apiErr.ErrorCode, apiErr.Message)
		}
		return fmt.Errorf("chargebee returned error status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode chargebee response: %w", err)
		}
	}
	return nil
}

// ListSubscriptions lists the customer's subscriptions, optionally narrowed by
// Chargebee filter operators (e.g. "status[is]": "active").
func (c *Client) ListSubscriptions(ctx context.Context, customerID string, filter map[string]string) ([]domain.Subscription, error) {
	params := url.Values{}
	params.Set("customer_id[is]", customerID)
	params.Set("limit", "100")
	for k, v := range filter {
		params.Set(k, v)
	}

	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, "/subscriptions", params, &env); err != nil {
		return nil, err
	}

	subs := make([]domain.Subscription, 0, len(env.List))
	for _, entry := range env.List {
		raw, ok := entry["subscription"]
		if !ok {
			continue
		}
		var sub domain.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription entry: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// ListTransactions lists the customer's transactions, optionally narrowed by
// filter operators (e.g. "status[is]": "in_progress").
func (c *Client) ListTransactions(ctx context.Context, customerID string, filter map[string]string) ([]domain.Transaction, error) {
	params := url.Values{}
	params.Set("customer_id[is]", customerID)
	for k, v := range filter {
		params.Set(k, v)
	}

	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, "/transactions", params, &env); err != nil {
		return nil, err
	}

	txns := make([]domain.Transaction, 0, len(env.List))
	for _, entry := range env.List {
		raw, ok := entry["transaction"]
		if !ok {
			continue
		}
		var txn domain.Transaction
		if err := json.Unmarshal(raw, &txn); err != nil {
			return nil, fmt.Errorf("failed to decode transaction entry: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// UpdateCustomer updates the named fields on a customer record and returns the
// updated snapshot.
func (c *Client) UpdateCustomer(ctx context.Context, customerID string, fields map[string]string) (*domain.Customer, error) {
	params := url.Values{}
	for k, v := range fields {
		params.Set(k, v)
	}

	var result struct {
		Customer domain.Customer `json:"customer"`
	}
	path := fmt.Sprintf("/customers/%s", url.PathEscape(customerID))
	if err := c.do(ctx, http.MethodPost, path, params, &result); err != nil {
		return nil, err
	}
	return &result.Customer, nil
}

// UpdateCustomerBillingInfo replaces the customer's billing address.
func (c *Client) UpdateCustomerBillingInfo(ctx context.Context, customerID string, info domain.BillingInfoUpdate) error {
	params := url.Values{}
	params.Set("first_name", info.FirstName)
	params.Set("last_name", info.LastName)
	params.Set("billing_address[first_name]", info.BillingAddress.FirstName)
	params.Set("billing_address[last_name]", info.BillingAddress.LastName)
	params.Set("billing_address[line1]", info.BillingAddress.Line1)
	params.Set("billing_address[city]", info.BillingAddress.City)
	params.Set("billing_address[state]", info.BillingAddress.State)
	params.Set("billing_address[country]", info.BillingAddress.Country)
	params.Set("billing_address[zip]", info.BillingAddress.Zip)

	path := fmt.Sprintf("/customers/%s/update_billing_info", url.PathEscape(customerID))
	return c.do(ctx, http.MethodPost, path, params, nil)
}

// CancelSubscription cancels an item-based subscription under the given terms.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, opts domain.CancelOptions) error {
	params := url.Values{}
	params.Set("end_of_term", fmt.Sprintf("%t", opts.EndOfTerm))
	params.Set("credit_option_for_current_term_charges", opts.CreditOption)
	params.Set("unbilled_charges_option", opts.UnbilledChargesOption)
	params.Set("account_receivables_handling", opts.AccountReceivablesHandling)
	params.Set("refundable_credits_handling", opts.RefundableCreditsHandling)
	params.Set("cancel_reason_code", opts.ReasonCode)

	path := fmt.Sprintf("/subscriptions/%s/cancel_for_items", url.PathEscape(subscriptionID))
	return c.do(ctx, http.MethodPost, path, params, nil)
}
