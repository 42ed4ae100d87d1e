package billing

import (
	"net/http"

	"github.com/mihaimyh/paysync/pkg/paysync"
)

// Config defines the standard configuration all providers should accept
type Config struct {
	// Reconciler applies decoded events to storage (required)
	Reconciler *paysync.Reconciler

	// WebhookSecret is the shared signing key used to verify inbound webhook
	// requests. A provider with an empty secret fails closed: verification is
	// never skipped.
	WebhookSecret string

	// APIKey is used for outbound API calls to the billing provider
	// (e.g. SyncCustomer).
	APIKey string

	// HTTPClient is an optional HTTP client for API calls.
	// If nil, a default client with 10s timeout will be used.
	// Allows custom timeouts, proxies, or instrumentation.
	HTTPClient *http.Client

	// MaxBodyBytes caps the inbound webhook body size.
	// Defaults to 256KB when zero.
	MaxBodyBytes int64

	// Logger is an optional structured logger.
	// If nil, logging is silently dropped.
	Logger paysync.Logger

	// Metrics is an optional metrics collector for tracking provider
	// operations. If nil, metrics will be silently ignored (no-op).
	// Use billing/metrics/prometheus.NewMetrics for Prometheus metrics.
	Metrics Metrics
}
