package billing

import "time"

// Metrics defines the interface for tracking billing provider operations.
// All methods are optional - providers should gracefully handle nil metrics.
type Metrics interface {
	// RecordWebhookEvent records a webhook event received from the billing provider.
	// eventType: The type of event (e.g., "transaction.paid", "subscription.canceled")
	// status: "success", "error", or "ignored"
	RecordWebhookEvent(provider, eventType, status string)

	// RecordWebhookProcessingDuration records how long it took to process a webhook.
	RecordWebhookProcessingDuration(provider, eventType string, duration time.Duration)

	// RecordWebhookError records a webhook processing error.
	// errorType: The type of error (e.g., "auth_failed", "invalid_payload", "write_failed")
	RecordWebhookError(provider, errorType string)

	// RecordEntityUpsert records a reconciled entity write.
	// entity: "customer", "subscription", or "transaction"
	// status: "success" or "error"
	RecordEntityUpsert(provider, entity, status string)

	// RecordCustomerSync records a customer synchronization operation.
	// status: "success" or "error"
	RecordCustomerSync(provider, status string)

	// RecordCustomerSyncDuration records how long a customer sync took.
	RecordCustomerSyncDuration(provider string, duration time.Duration)

	// RecordAPICall records an API call to the billing provider.
	// endpoint: The API endpoint called (e.g., "/customers/{id}")
	// status: HTTP status code as string (e.g., "200", "404", "500")
	RecordAPICall(provider, endpoint, status string)

	// RecordAPICallDuration records how long an API call took.
	RecordAPICallDuration(provider, endpoint string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(_, _, _ string)                            {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(_, _ string, _ time.Duration) {}
func (n *NoopMetrics) RecordWebhookError(_, _ string)                               {}
func (n *NoopMetrics) RecordEntityUpsert(_, _, _ string)                            {}
func (n *NoopMetrics) RecordCustomerSync(_, _ string)                               {}
func (n *NoopMetrics) RecordCustomerSyncDuration(_ string, _ time.Duration)         {}
func (n *NoopMetrics) RecordAPICall(_, _, _ string)                                 {}
func (n *NoopMetrics) RecordAPICallDuration(_, _ string, _ time.Duration)           {}
