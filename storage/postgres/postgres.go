// Package postgres provides a PostgreSQL implementation of the
// paysync.Storage interface. All writes are single-statement upserts
// (INSERT ... ON CONFLICT DO UPDATE) keyed by the provider-assigned ID, which
// is the only concurrency-safety mechanism webhook reconciliation needs.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mihaimyh/paysync/pkg/paysync"
)

// Storage implements paysync.Storage using PostgreSQL
type Storage struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL storage adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{pool: pool, config: config}, nil
}

// Close closes the PostgreSQL connection pool
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the tables if they do not exist. Intended for examples
// and tests; production deployments usually manage schema migrations
// separately.
func (s *Storage) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS customers (
			id          TEXT PRIMARY KEY,
			email       TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS subscriptions (
			id               TEXT PRIMARY KEY,
			customer_id      TEXT NOT NULL REFERENCES customers(id),
			status           TEXT NOT NULL,
			price_id         TEXT NOT NULL DEFAULT '',
			product_id       TEXT NOT NULL DEFAULT '',
			scheduled_change TEXT NOT NULL DEFAULT '',
			started_at       TIMESTAMPTZ,
			paused_at        TIMESTAMPTZ,
			canceled_at      TIMESTAMPTZ,
			created_at       TIMESTAMPTZ NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS transactions (
			id               TEXT PRIMARY KEY,
			subscription_id  TEXT NOT NULL DEFAULT '',
			customer_id      TEXT NOT NULL REFERENCES customers(id),
			status           TEXT NOT NULL,
			amount           BIGINT,
			currency_code    TEXT NOT NULL DEFAULT '',
			billed_at        TIMESTAMPTZ,
			created_at       TIMESTAMPTZ NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_customer ON subscriptions(customer_id);
		CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id)`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetCustomer implements paysync.Storage
func (s *Storage) GetCustomer(ctx context.Context, customerID string) (*paysync.Customer, error) {
	var c paysync.Customer
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, created_at, updated_at FROM customers WHERE id = $1`,
		customerID).Scan(&c.ID, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, paysync.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}

// UpsertCustomer implements paysync.Storage
func (s *Storage) UpsertCustomer(ctx context.Context, c *paysync.Customer) error {
	if c == nil || c.ID == "" {
		return paysync.ErrInvalidEntity
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO customers (id, email, created_at, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				email = EXCLUDED.email,
				updated_at = EXCLUDED.updated_at`,
		c.ID, c.Email, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}

// GetSubscription implements paysync.Storage
func (s *Storage) GetSubscription(ctx context.Context, subscriptionID string) (*paysync.Subscription, error) {
	var sub paysync.Subscription
	err := s.pool.QueryRow(ctx,
		`SELECT id, customer_id, status, price_id, product_id, scheduled_change,
				started_at, paused_at, canceled_at, created_at, updated_at
			FROM subscriptions WHERE id = $1`,
		subscriptionID).Scan(
		&sub.ID, &sub.CustomerID, &sub.Status, &sub.PriceID, &sub.ProductID,
		&sub.ScheduledChange, &sub.StartedAt, &sub.PausedAt, &sub.CanceledAt,
		&sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, paysync.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// UpsertSubscription implements paysync.Storage
func (s *Storage) UpsertSubscription(ctx context.Context, sub *paysync.Subscription) error {
	if sub == nil || sub.ID == "" {
		return paysync.ErrInvalidEntity
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions (id, customer_id, status, price_id, product_id,
				scheduled_change, started_at, paused_at, canceled_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				customer_id = EXCLUDED.customer_id,
				status = EXCLUDED.status,
				price_id = EXCLUDED.price_id,
				product_id = EXCLUDED.product_id,
				scheduled_change = EXCLUDED.scheduled_change,
				started_at = EXCLUDED.started_at,
				paused_at = EXCLUDED.paused_at,
				canceled_at = EXCLUDED.canceled_at,
				updated_at = EXCLUDED.updated_at`,
		sub.ID, sub.CustomerID, sub.Status, sub.PriceID, sub.ProductID,
		sub.ScheduledChange, sub.StartedAt, sub.PausedAt, sub.CanceledAt,
		sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// GetTransaction implements paysync.Storage
func (s *Storage) GetTransaction(ctx context.Context, transactionID string) (*paysync.Transaction, error) {
	var t paysync.Transaction
	err := s.pool.QueryRow(ctx,
		`SELECT id, subscription_id, customer_id, status, amount, currency_code,
				billed_at, created_at, updated_at
			FROM transactions WHERE id = $1`,
		transactionID).Scan(
		&t.ID, &t.SubscriptionID, &t.CustomerID, &t.Status, &t.Amount,
		&t.CurrencyCode, &t.BilledAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, paysync.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

// UpsertTransaction implements paysync.Storage
func (s *Storage) UpsertTransaction(ctx context.Context, t *paysync.Transaction) error {
	if t == nil || t.ID == "" {
		return paysync.ErrInvalidEntity
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, subscription_id, customer_id, status,
				amount, currency_code, billed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				subscription_id = EXCLUDED.subscription_id,
				customer_id = EXCLUDED.customer_id,
				status = EXCLUDED.status,
				amount = EXCLUDED.amount,
				currency_code = EXCLUDED.currency_code,
				billed_at = EXCLUDED.billed_at,
				updated_at = EXCLUDED.updated_at`,
		t.ID, t.SubscriptionID, t.CustomerID, t.Status, t.Amount,
		t.CurrencyCode, t.BilledAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return nil
}

// Ping verifies database connectivity
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
