// Package paysync reconciles payment-provider webhook events into a
// customer/subscription/transaction store. Providers verify and decode
// inbound events and hand the resulting entities to a Reconciler, which
// guarantees referential integrity (a Customer row always exists before any
// Subscription or Transaction referencing it) without requiring any delivery
// ordering from the provider.
package paysync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config holds Reconciler configuration.
type Config struct {
	// Logger is used for structured logging. If nil, logging is disabled.
	Logger Logger

	// RejectStaleEvents enables a monotonic occurred_at guard: incoming
	// events older than the stored row's updated_at are skipped instead of
	// overwriting newer state. Disabled by default, preserving plain
	// last-write-wins semantics.
	RejectStaleEvents bool
}

// Reconciler applies decoded webhook events to a Storage as idempotent
// upserts. It is stateless and safe for concurrent use; the storage layer's
// upsert atomicity is the only synchronization relied upon.
type Reconciler struct {
	storage     Storage
	logger      Logger
	rejectStale bool
}

// NewReconciler creates a Reconciler over the given storage.
func NewReconciler(storage Storage, config Config) (*Reconciler, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	return &Reconciler{
		storage:     storage,
		logger:      logger,
		rejectStale: config.RejectStaleEvents,
	}, nil
}

// EnsureCustomer guarantees a customer row exists for customerID, creating a
// placeholder row (sentinel email, occurredAt as both timestamps) when the
// dependent event arrived before the customer event. Called before every
// subscription or transaction upsert.
func (r *Reconciler) EnsureCustomer(ctx context.Context, customerID string, occurredAt time.Time) error {
	if customerID == "" {
		return ErrInvalidEntity
	}

	_, err := r.storage.GetCustomer(ctx, customerID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return fmt.Errorf("failed to check customer %s: %w", customerID, err)
	}

	placeholder := &Customer{
		ID:        customerID,
		Email:     PlaceholderEmail,
		CreatedAt: occurredAt,
		UpdatedAt: occurredAt,
	}
	if err := r.storage.UpsertCustomer(ctx, placeholder); err != nil {
		return fmt.Errorf("failed to create placeholder customer %s: %w", customerID, err)
	}

	r.logger.Info("created placeholder customer",
		Field{Key: "customer_id", Value: customerID})
	return nil
}

// ApplyCustomer upserts authoritative customer data. An existing placeholder
// email is overwritten; an incoming empty email keeps whatever is stored,
// since the real address may arrive via a later event.
func (r *Reconciler) ApplyCustomer(ctx context.Context, c *Customer) error {
	if c == nil || c.ID == "" {
		return ErrInvalidEntity
	}

	existing, err := r.storage.GetCustomer(ctx, c.ID)
	if err != nil && !errors.Is(err, ErrCustomerNotFound) {
		return fmt.Errorf("failed to check customer %s: %w", c.ID, err)
	}

	row := *c
	if existing != nil {
		if r.stale(row.UpdatedAt, existing.UpdatedAt) {
			r.logger.Debug("skipping stale customer event",
				Field{Key: "customer_id", Value: c.ID})
			return nil
		}
		row.CreatedAt = existing.CreatedAt
		if row.Email == "" {
			row.Email = existing.Email
		}
	} else {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = row.UpdatedAt
		}
		if row.Email == "" {
			row.Email = PlaceholderEmail
		}
	}

	if err := r.storage.UpsertCustomer(ctx, &row); err != nil {
		return fmt.Errorf("failed to upsert customer %s: %w", c.ID, err)
	}
	return nil
}

// ApplySubscription upserts a subscription with an already-normalized status.
// The customer row is ensured first. StartedAt/PausedAt/CanceledAt are set
// from the resulting status, not the triggering event name: entering active
// or trialing stamps StartedAt once and clears the pause/cancel marks,
// entering paused or canceled stamps the corresponding mark.
func (r *Reconciler) ApplySubscription(ctx context.Context, s *Subscription) error {
	if s == nil || s.ID == "" || s.CustomerID == "" {
		return ErrInvalidEntity
	}

	if err := r.EnsureCustomer(ctx, s.CustomerID, s.UpdatedAt); err != nil {
		return err
	}

	existing, err := r.storage.GetSubscription(ctx, s.ID)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return fmt.Errorf("failed to check subscription %s: %w", s.ID, err)
	}

	row := *s
	if existing != nil {
		if r.stale(row.UpdatedAt, existing.UpdatedAt) {
			r.logger.Debug("skipping stale subscription event",
				Field{Key: "subscription_id", Value: s.ID})
			return nil
		}
		row.CreatedAt = existing.CreatedAt
		if row.StartedAt == nil {
			row.StartedAt = existing.StartedAt
		}
	} else if row.CreatedAt.IsZero() {
		row.CreatedAt = row.UpdatedAt
	}

	occurred := row.UpdatedAt
	switch row.Status {
	case StatusActive, StatusTrialing:
		if row.StartedAt == nil {
			row.StartedAt = &occurred
		}
		row.PausedAt = nil
		row.CanceledAt = nil
	case StatusPastDue:
		row.PausedAt = nil
		row.CanceledAt = nil
	case StatusPaused:
		if row.PausedAt == nil {
			row.PausedAt = &occurred
		}
		row.CanceledAt = nil
	case StatusCanceled:
		if row.CanceledAt == nil {
			row.CanceledAt = &occurred
		}
	}

	if err := r.storage.UpsertSubscription(ctx, &row); err != nil {
		return fmt.Errorf("failed to upsert subscription %s: %w", s.ID, err)
	}
	return nil
}

// ApplyTransaction upserts a transaction, ensuring the customer row first.
func (r *Reconciler) ApplyTransaction(ctx context.Context, t *Transaction) error {
	if t == nil || t.ID == "" || t.CustomerID == "" {
		return ErrInvalidEntity
	}

	if err := r.EnsureCustomer(ctx, t.CustomerID, t.UpdatedAt); err != nil {
		return err
	}

	existing, err := r.storage.GetTransaction(ctx, t.ID)
	if err != nil && !errors.Is(err, ErrTransactionNotFound) {
		return fmt.Errorf("failed to check transaction %s: %w", t.ID, err)
	}

	row := *t
	if existing != nil {
		if r.stale(row.UpdatedAt, existing.UpdatedAt) {
			r.logger.Debug("skipping stale transaction event",
				Field{Key: "transaction_id", Value: t.ID})
			return nil
		}
		row.CreatedAt = existing.CreatedAt
		if row.Amount == nil {
			row.Amount = existing.Amount
		}
	} else if row.CreatedAt.IsZero() {
		row.CreatedAt = row.UpdatedAt
	}

	if err := r.storage.UpsertTransaction(ctx, &row); err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", t.ID, err)
	}
	return nil
}

// stale reports whether an incoming event timestamp should be skipped. Always
// false unless RejectStaleEvents is enabled; equal timestamps are written so
// provider redelivery remains an idempotent overwrite.
func (r *Reconciler) stale(incoming, stored time.Time) bool {
	if !r.rejectStale {
		return false
	}
	return incoming.Before(stored)
}
