// Package memory provides an in-memory implementation of the paysync.Storage
// interface. This implementation is primarily intended for testing and
// development.
package memory

import (
	"context"
	"sync"

	"github.com/mihaimyh/paysync/pkg/paysync"
)

// Storage implements paysync.Storage using in-memory maps
type Storage struct {
	mu            sync.RWMutex
	customers     map[string]*paysync.Customer
	subscriptions map[string]*paysync.Subscription
	transactions  map[string]*paysync.Transaction
}

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		customers:     make(map[string]*paysync.Customer),
		subscriptions: make(map[string]*paysync.Subscription),
		transactions:  make(map[string]*paysync.Transaction),
	}
}

// GetCustomer implements paysync.Storage
func (s *Storage) GetCustomer(ctx context.Context, customerID string) (*paysync.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[customerID]
	if !ok {
		return nil, paysync.ErrCustomerNotFound
	}

	// Return a copy to prevent external mutations
	cCopy := *c
	return &cCopy, nil
}

// UpsertCustomer implements paysync.Storage
func (s *Storage) UpsertCustomer(ctx context.Context, c *paysync.Customer) error {
	if c == nil || c.ID == "" {
		return paysync.ErrInvalidEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cCopy := *c
	s.customers[c.ID] = &cCopy
	return nil
}

// GetSubscription implements paysync.Storage
func (s *Storage) GetSubscription(ctx context.Context, subscriptionID string) (*paysync.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[subscriptionID]
	if !ok {
		return nil, paysync.ErrSubscriptionNotFound
	}

	subCopy := *sub
	return &subCopy, nil
}

// UpsertSubscription implements paysync.Storage
func (s *Storage) UpsertSubscription(ctx context.Context, sub *paysync.Subscription) error {
	if sub == nil || sub.ID == "" {
		return paysync.ErrInvalidEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subCopy := *sub
	s.subscriptions[sub.ID] = &subCopy
	return nil
}

// GetTransaction implements paysync.Storage
func (s *Storage) GetTransaction(ctx context.Context, transactionID string) (*paysync.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[transactionID]
	if !ok {
		return nil, paysync.ErrTransactionNotFound
	}

	tCopy := *t
	return &tCopy, nil
}

// UpsertTransaction implements paysync.Storage
func (s *Storage) UpsertTransaction(ctx context.Context, t *paysync.Transaction) error {
	if t == nil || t.ID == "" {
		return paysync.ErrInvalidEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tCopy := *t
	s.transactions[t.ID] = &tCopy
	return nil
}

// Counts returns the number of stored rows per entity. Useful in tests to
// assert upsert idempotence.
func (s *Storage) Counts() (customers, subscriptions, transactions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers), len(s.subscriptions), len(s.transactions)
}
