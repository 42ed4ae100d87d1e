package billing

import (
	"context"
	"net/http"
)

// Provider is the generic interface any payment-provider backend must
// implement. This allows the application to mount Paddle next to Dodo (or a
// future provider) with zero logic changes.
type Provider interface {
	// Name returns the provider name (e.g., "paddle", "dodo")
	Name() string

	// WebhookHandler returns the HTTP handler that processes real-time events.
	// The implementation handles signature verification, parsing, and
	// reconciliation internally.
	WebhookHandler() http.Handler

	// SyncCustomer forces a synchronization of the customer's state from the
	// provider's REST API into storage. Used for manual repair or nightly
	// reconciliation jobs.
	SyncCustomer(ctx context.Context, customerID string) error
}
