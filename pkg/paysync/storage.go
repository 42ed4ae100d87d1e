package paysync

import "context"

// Storage is the persistence interface for reconciled billing entities.
// All writes are idempotent upserts keyed by the provider-assigned ID; the
// storage layer's upsert atomicity is the sole concurrency-safety mechanism
// (duplicate webhook delivery is absorbed by upsert idempotence, not by
// deduplication logic). Deletion is never performed.
type Storage interface {
	// GetCustomer returns the customer row or ErrCustomerNotFound.
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)

	// UpsertCustomer inserts or updates a customer row keyed by ID.
	UpsertCustomer(ctx context.Context, c *Customer) error

	// GetSubscription returns the subscription row or ErrSubscriptionNotFound.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// UpsertSubscription inserts or updates a subscription row keyed by ID.
	UpsertSubscription(ctx context.Context, s *Subscription) error

	// GetTransaction returns the transaction row or ErrTransactionNotFound.
	GetTransaction(ctx context.Context, transactionID string) (*Transaction, error)

	// UpsertTransaction inserts or updates a transaction row keyed by ID.
	UpsertTransaction(ctx context.Context, t *Transaction) error
}
