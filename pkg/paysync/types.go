package paysync

import (
	"encoding/json"
	"time"
)

// PlaceholderEmail is the sentinel address written when a customer row has to
// be created before the customer.created/updated event carrying the real
// address has arrived. A later customer event overwrites it.
const PlaceholderEmail = "pending@placeholder.invalid"

// SubscriptionStatus is the normalized lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusPaused   SubscriptionStatus = "paused"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Valid reports whether s is one of the known lifecycle states.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusPaused, StatusCanceled:
		return true
	}
	return false
}

// Customer is a payment-provider customer record. Rows are created and
// mutated exclusively by webhook events, never by direct user action.
type Customer struct {
	// ID is the provider-assigned customer identifier (primary key)
	ID string

	// Email may be PlaceholderEmail until the authoritative customer event
	// arrives
	Email string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Placeholder reports whether the row was created ahead of its authoritative
// data to satisfy referential integrity.
func (c *Customer) Placeholder() bool {
	return c.Email == PlaceholderEmail
}

// Subscription is a provider subscription. Status transitions are driven
// entirely by the most recently processed event for the subscription.
type Subscription struct {
	// ID is the provider-assigned subscription identifier (primary key)
	ID string

	// CustomerID references a Customer row, which is guaranteed to exist
	// (possibly as a placeholder) before this row is written
	CustomerID string

	Status    SubscriptionStatus
	PriceID   string
	ProductID string

	// ScheduledChange is a free-text description of a pending plan change
	ScheduledChange string

	StartedAt  *time.Time
	PausedAt   *time.Time
	CanceledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is a provider payment transaction.
type Transaction struct {
	// ID is the provider-assigned transaction identifier (primary key)
	ID string

	// SubscriptionID is empty for one-off transactions
	SubscriptionID string

	CustomerID string

	// Status mirrors the provider status string verbatim
	Status string

	// Amount is in minor currency units; nil when the provider omits totals
	Amount *int64

	CurrencyCode string
	BilledAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event is the provider-agnostic webhook event envelope. Data is the opaque
// payload whose shape depends on EventType.
type Event struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}
