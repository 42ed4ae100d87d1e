package dodo

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mihaimyh/paysync/pkg/billing"
	"github.com/mihaimyh/paysync/pkg/billing/internal"
	"github.com/mihaimyh/paysync/pkg/paysync"
)

const (
	providerName             = "dodo"
	defaultMaxBodyBytes      = 256 * 1024
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
)

// Config holds the Dodo provider configuration
type Config struct {
	billing.Config
}

// Provider implements the billing.Provider interface for Dodo Payments.
// Dodo only pushes webhooks; it exposes no query API, so SyncCustomer is
// not supported.
type Provider struct {
	reconciler    *paysync.Reconciler
	rateLimiter   *internal.RateLimiter
	webhookSecret []byte
	maxBodyBytes  int64
	logger        paysync.Logger
	metrics       billing.Metrics
}

// NewProvider creates a new Dodo billing provider
func NewProvider(config Config) (*Provider, error) {
	if config.Reconciler == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	maxBodyBytes := config.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	logger := config.Logger
	if logger == nil {
		logger = &paysync.NoopLogger{}
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}

	return &Provider{
		reconciler:    config.Reconciler,
		rateLimiter:   internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow),
		webhookSecret: []byte(strings.TrimSpace(config.WebhookSecret)),
		maxBodyBytes:  maxBodyBytes,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Dodo webhooks
func (p *Provider) WebhookHandler() http.Handler {
	handler := http.HandlerFunc(p.handleWebhook)
	return p.rateLimiter.Middleware(handler)
}

// SyncCustomer is not available for Dodo
func (p *Provider) SyncCustomer(ctx context.Context, customerID string) error {
	return billing.ErrNotSupported
}
