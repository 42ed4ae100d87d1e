// Package firestore provides a Firestore implementation of the
// paysync.Storage interface. Each entity type lives in its own collection,
// with the provider-assigned ID as the document ID; Doc.Set is the upsert.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/paysync/pkg/paysync"
)

// Storage implements paysync.Storage using Google Cloud Firestore
type Storage struct {
	client                  *firestore.Client
	customersCollection     string
	subscriptionsCollection string
	transactionsCollection  string
}

// Config holds Firestore storage configuration
type Config struct {
	// CustomersCollection is the Firestore collection for customers
	// Default: "billing_customers"
	CustomersCollection string

	// SubscriptionsCollection is the Firestore collection for subscriptions
	// Default: "billing_subscriptions"
	SubscriptionsCollection string

	// TransactionsCollection is the Firestore collection for transactions
	// Default: "billing_transactions"
	TransactionsCollection string
}

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.CustomersCollection == "" {
		config.CustomersCollection = "billing_customers"
	}
	if config.SubscriptionsCollection == "" {
		config.SubscriptionsCollection = "billing_subscriptions"
	}
	if config.TransactionsCollection == "" {
		config.TransactionsCollection = "billing_transactions"
	}

	return &Storage{
		client:                  client,
		customersCollection:     config.CustomersCollection,
		subscriptionsCollection: config.SubscriptionsCollection,
		transactionsCollection:  config.TransactionsCollection,
	}, nil
}

// GetCustomer implements paysync.Storage
func (s *Storage) GetCustomer(ctx context.Context, customerID string) (*paysync.Customer, error) {
	snap, err := s.client.Collection(s.customersCollection).Doc(customerID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, paysync.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	data := snap.Data()
	return &paysync.Customer{
		ID:        customerID,
		Email:     getString(data, "email"),
		CreatedAt: getTime(data, "createdAt"),
		UpdatedAt: getTime(data, "updatedAt"),
	}, nil
}

// UpsertCustomer implements paysync.Storage
func (s *Storage) UpsertCustomer(ctx context.Context, c *paysync.Customer) error {
	if c == nil || c.ID == "" {
		return paysync.ErrInvalidEntity
	}

	_, err := s.client.Collection(s.customersCollection).Doc(c.ID).Set(ctx, map[string]interface{}{
		"email":     c.Email,
		"createdAt": c.CreatedAt,
		"updatedAt": c.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}

// GetSubscription implements paysync.Storage
func (s *Storage) GetSubscription(ctx context.Context, subscriptionID string) (*paysync.Subscription, error) {
	snap, err := s.client.Collection(s.subscriptionsCollection).Doc(subscriptionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, paysync.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	data := snap.Data()
	return &paysync.Subscription{
		ID:              subscriptionID,
		CustomerID:      getString(data, "customerId"),
		Status:          paysync.SubscriptionStatus(getString(data, "status")),
		PriceID:         getString(data, "priceId"),
		ProductID:       getString(data, "productId"),
		ScheduledChange: getString(data, "scheduledChange"),
		StartedAt:       getTimePtr(data, "startedAt"),
		PausedAt:        getTimePtr(data, "pausedAt"),
		CanceledAt:      getTimePtr(data, "canceledAt"),
		CreatedAt:       getTime(data, "createdAt"),
		UpdatedAt:       getTime(data, "updatedAt"),
	}, nil
}

// UpsertSubscription implements paysync.Storage
func (s *Storage) UpsertSubscription(ctx context.Context, sub *paysync.Subscription) error {
	if sub == nil || sub.ID == "" {
		return paysync.ErrInvalidEntity
	}

	data := map[string]interface{}{
		"customerId":      sub.CustomerID,
		"status":          string(sub.Status),
		"priceId":         sub.PriceID,
		"productId":       sub.ProductID,
		"scheduledChange": sub.ScheduledChange,
		"startedAt":       nil,
		"pausedAt":        nil,
		"canceledAt":      nil,
		"createdAt":       sub.CreatedAt,
		"updatedAt":       sub.UpdatedAt,
	}
	if sub.StartedAt != nil {
		data["startedAt"] = *sub.StartedAt
	}
	if sub.PausedAt != nil {
		data["pausedAt"] = *sub.PausedAt
	}
	if sub.CanceledAt != nil {
		data["canceledAt"] = *sub.CanceledAt
	}

	_, err := s.client.Collection(s.subscriptionsCollection).Doc(sub.ID).Set(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// GetTransaction implements paysync.Storage
func (s *Storage) GetTransaction(ctx context.Context, transactionID string) (*paysync.Transaction, error) {
	snap, err := s.client.Collection(s.transactionsCollection).Doc(transactionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, paysync.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	data := snap.Data()
	t := &paysync.Transaction{
		ID:             transactionID,
		SubscriptionID: getString(data, "subscriptionId"),
		CustomerID:     getString(data, "customerId"),
		Status:         getString(data, "status"),
		CurrencyCode:   getString(data, "currencyCode"),
		BilledAt:       getTimePtr(data, "billedAt"),
		CreatedAt:      getTime(data, "createdAt"),
		UpdatedAt:      getTime(data, "updatedAt"),
	}
	if amount, ok := data["amount"].(int64); ok {
		t.Amount = &amount
	}
	return t, nil
}

// UpsertTransaction implements paysync.Storage
func (s *Storage) UpsertTransaction(ctx context.Context, t *paysync.Transaction) error {
	if t == nil || t.ID == "" {
		return paysync.ErrInvalidEntity
	}

	data := map[string]interface{}{
		"subscriptionId": t.SubscriptionID,
		"customerId":     t.CustomerID,
		"status":         t.Status,
		"amount":         nil,
		"currencyCode":   t.CurrencyCode,
		"billedAt":       nil,
		"createdAt":      t.CreatedAt,
		"updatedAt":      t.UpdatedAt,
	}
	if t.Amount != nil {
		data["amount"] = *t.Amount
	}
	if t.BilledAt != nil {
		data["billedAt"] = *t.BilledAt
	}

	_, err := s.client.Collection(s.transactionsCollection).Doc(t.ID).Set(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return nil
}

// Close closes the underlying Firestore client
func (s *Storage) Close() error {
	return s.client.Close()
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func getTimePtr(data map[string]interface{}, key string) *time.Time {
	if v, ok := data[key].(time.Time); ok && !v.IsZero() {
		return &v
	}
	return nil
}
