/**
 * @description
 * The two external collaborators the engine consults and corrects. Both are
 * consumed through narrow interfaces so tests can substitute stubs and so the
 * engine never depends on either remote system's wire format.
 */
package engine

import (
	"context"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
)

// BillingGateway lists, queries and updates subscriptions and customers in the
// billing provider. Filters use the provider's query operators verbatim
// (e.g. "status[is]": "active").
type BillingGateway interface {
	ListSubscriptions(ctx context.Context, customerID string, filter map[string]string) ([]domain.Subscription, error)
	UpdateCustomer(ctx context.Context, customerID string, fields map[string]string) (*domain.Customer, error)
	UpdateCustomerBillingInfo(ctx context.Context, customerID string, info domain.BillingInfoUpdate) error
	ListTransactions(ctx context.Context, customerID string, filter map[string]string) ([]domain.Transaction, error)
	CancelSubscription(ctx context.Context, subscriptionID string, opts domain.CancelOptions) error
}

// AccountGateway views and updates mailbox accounts in the hosting system.
// ViewAccount returns domain.ErrAccountNotFound (possibly wrapped) when the
// account does not exist.
type AccountGateway interface {
	ViewAccount(ctx context.Context, usernameOrID string) (*domain.Account, error)
	UpdateAccount(ctx context.Context, usernameOrID string, fields map[string]string) (*domain.Account, error)
}
