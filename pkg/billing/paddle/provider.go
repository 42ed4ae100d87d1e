package paddle

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
	providerName             = "paddle"
	paddleAPIBaseURL         = "https://api.paddle.com"
	defaultHTTPTimeout       = 10 * time.Second
	defaultMaxBodyBytes      = 256 * 1024
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
)

// Config extends billing.Config with Paddle-specific options
type Config struct {
	billing.Config // Base config (Reconciler, WebhookSecret, etc.)

	// SignatureTolerance rejects timestamped signatures whose ts field is
	// further than this from the current time. Zero disables the replay
	// check, matching Paddle's documented default of accepting any age.
	SignatureTolerance time.Duration

	// BaseURL overrides the Paddle API base URL (used by SyncCustomer).
	// Defaults to the production API.
	BaseURL string
}

// Provider implements the billing.Provider interface for Paddle
type Provider struct {
	reconciler    *paysync.Reconciler
	httpClient    *http.Client
	rateLimiter   *internal.RateLimiter
	webhookSecret []byte
	apiKey        string
	baseURL       string
	tolerance     time.Duration
	maxBodyBytes  int64
	logger        paysync.Logger
	metrics       billing.Metrics
}

// NewProvider creates a new Paddle billing provider
func NewProvider(config Config) (*Provider, error) {
	if config.Reconciler == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}

	maxBodyBytes := config.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = paddleAPIBaseURL
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
		httpClient:    httpClient,
		rateLimiter:   internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow),
		webhookSecret: []byte(strings.TrimSpace(config.WebhookSecret)),
		apiKey:        strings.TrimSpace(config.APIKey),
		baseURL:       baseURL,
		tolerance:     config.SignatureTolerance,
		maxBodyBytes:  maxBodyBytes,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Paddle webhooks
func (p *Provider) WebhookHandler() http.Handler {
	handler := http.HandlerFunc(p.handleWebhook)
	// Wrap with rate limiting
	return p.rateLimiter.Middleware(handler)
}

// SyncCustomer synchronizes a customer and its subscriptions from the Paddle API
func (p *Provider) SyncCustomer(ctx context.Context, customerID string) error {
	return p.syncCustomerFromAPI(ctx, customerID)
}
