// Package redis provides a Redis implementation of the paysync.Storage
// interface. Entities are stored as JSON values under prefixed keys; SET is
// already atomic per key, which is all the upsert contract requires.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/paysync/pkg/paysync"
)

// Storage implements paysync.Storage using Redis
type Storage struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "paysync:")
	KeyPrefix string

	// EntityTTL is the TTL for entity keys (0 = no expiration). Billing
	// state is usually kept forever; a TTL makes sense only when Redis is a
	// cache in front of a durable store.
	EntityTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "paysync:",
		EntityTTL: 0,
	}
}

// New creates a new Redis storage adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "paysync:"
	}
	return &Storage{client: client, config: config}, nil
}

// GetCustomer implements paysync.Storage
func (s *Storage) GetCustomer(ctx context.Context, customerID string) (*paysync.Customer, error) {
	var c paysync.Customer
	if err := s.get(ctx, s.customerKey(customerID), &c, paysync.ErrCustomerNotFound); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCustomer implements paysync.Storage
func (s *Storage) UpsertCustomer(ctx context.Context, c *paysync.Customer) error {
	if c == nil || c.ID == "" {
		return paysync.ErrInvalidEntity
	}
	return s.set(ctx, s.customerKey(c.ID), c)
}

// GetSubscription implements paysync.Storage
func (s *Storage) GetSubscription(ctx context.Context, subscriptionID string) (*paysync.Subscription, error) {
	var sub paysync.Subscription
	if err := s.get(ctx, s.subscriptionKey(subscriptionID), &sub, paysync.ErrSubscriptionNotFound); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription implements paysync.Storage
func (s *Storage) UpsertSubscription(ctx context.Context, sub *paysync.Subscription) error {
	if sub == nil || sub.ID == "" {
		return paysync.ErrInvalidEntity
	}
	return s.set(ctx, s.subscriptionKey(sub.ID), sub)
}

// GetTransaction implements paysync.Storage
func (s *Storage) GetTransaction(ctx context.Context, transactionID string) (*paysync.Transaction, error) {
	var t paysync.Transaction
	if err := s.get(ctx, s.transactionKey(transactionID), &t, paysync.ErrTransactionNotFound); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertTransaction implements paysync.Storage
func (s *Storage) UpsertTransaction(ctx context.Context, t *paysync.Transaction) error {
	if t == nil || t.ID == "" {
		return paysync.ErrInvalidEntity
	}
	return s.set(ctx, s.transactionKey(t.ID), t)
}

func (s *Storage) get(ctx context.Context, key string, out interface{}, notFound error) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func (s *Storage) set(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, s.config.EntityTTL).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *Storage) customerKey(id string) string {
	return s.config.KeyPrefix + "customer:" + id
}

func (s *Storage) subscriptionKey(id string) string {
	return s.config.KeyPrefix + "subscription:" + id
}

func (s *Storage) transactionKey(id string) string {
	return s.config.KeyPrefix + "transaction:" + id
}
