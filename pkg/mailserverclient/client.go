/**
 * @description
 * This package provides a client for the atmail mail server admin API. It views
 * and updates mailbox accounts on behalf of the reconciliation engine, handling
 * the server's success-envelope format and translating its "account does not
 * exist" responses into domain.ErrAccountNotFound.
 *
 * Quirk of the upstream API: updates are sent as POST requests whose parameters
 * travel in the query string, not the body.
 *
 * @dependencies
 * - net/http, net/url, encoding/json: Standard Go libraries.
 * - internal/domain: account snapshot and sentinel errors.
 */
package mailserverclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
)

// Client is a client for one mail server admin API endpoint.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a mail server client authenticated with the given admin
// credentials.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// envelope is the mail server's response format. The results payload is only
// decoded further on success.
type envelope struct {
	Status   string `json:"status"`
	Response struct {
		Message string          `json:"message,omitempty"`
		Results json.RawMessage `json:"results,omitempty"`
	} `json:"response"`
}

// notFoundMarkers are the message fragments the server uses for a missing
// account, which differ between the view and update endpoints.
var notFoundMarkers = []string{
	"Specify accountId/username argument",
	"does not exist",
}

func (c *Client) do(ctx context.Context, method, action string, params url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s?%s", c.baseURL, action, params.Encode())

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to mailserver: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode mailserver response: %w", err)
	}

	if env.Status != "success" {
		msg := env.Response.Message
		for _, marker := range notFoundMarkers {
			if strings.Contains(msg, marker) {
				return nil, fmt.Errorf("mailserver account lookup (%s): %s: %w", action, msg, domain.ErrAccountNotFound)
			}
		}
		return nil, fmt.Errorf("mailserver api error (%s): %s", action, msg)
	}
	return env.Response.Results, nil
}

// ViewAccount fetches the account snapshot for a username or account id.
func (c *Client) ViewAccount(ctx context.Context, usernameOrID string) (*domain.Account, error) {
	params := url.Values{}
	params.Set("username", usernameOrID)

	results, err := c.do(ctx, http.MethodGet, "view", params)
	if err != nil {
		return nil, err
	}

	var account domain.Account
	if err := json.Unmarshal(results, &account); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &account, nil
}

// UpdateAccount applies the given field updates to an account and returns the
// server's post-update snapshot.
func (c *Client) UpdateAccount(ctx context.Context, usernameOrID string, fields map[string]string) (*domain.Account, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("mailserver update for %s has no fields", usernameOrID)
	}

	params := url.Values{}
	params.Set("username", usernameOrID)
	for k, v := range fields {
		params.Set(k, v)
	}

	results, err := c.do(ctx, http.MethodPost, "update", params)
	if err != nil {
		return nil, err
	}

	var account domain.Account
	if err := json.Unmarshal(results, &account); err != nil {
		// Some update responses return a bare acknowledgement rather than a
		// full snapshot.
		return &domain.Account{Username: usernameOrID}, nil
	}
	return &account, nil
}
