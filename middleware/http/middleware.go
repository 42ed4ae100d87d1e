// Package http mounts billing provider webhook handlers onto a standard
// net/http mux, with request logging and panic recovery. Webhook signature
// verification needs the exact raw request bytes, so the wrappers here never
// touch the body.
package http

import (
	"net/http"
	"time"

	"github.com/mihaimyh/paysync/pkg/billing"
	"github.com/mihaimyh/paysync/pkg/paysync"
)

// Config holds webhook mounting configuration
type Config struct {
	// Providers are the billing providers to mount. Each provider is served
	// at PathPrefix + "/" + provider.Name().
	Providers []billing.Provider

	// PathPrefix is the URL prefix for webhook routes (default: "/webhooks")
	PathPrefix string

	// Logger is used for request logging. If nil, logging is disabled.
	Logger paysync.Logger

	// OnPanic is called after a recovered panic, before the 500 response.
	// Optional.
	OnPanic func(r *http.Request, v interface{})
}

// Handler builds an http.Handler serving every configured provider's webhook
// endpoint.
func Handler(config Config) http.Handler {
	prefix := config.PathPrefix
	if prefix == "" {
		prefix = "/webhooks"
	}
	logger := config.Logger
	if logger == nil {
		logger = &paysync.NoopLogger{}
	}

	mux := http.NewServeMux()
	for _, provider := range config.Providers {
		path := prefix + "/" + provider.Name()
		mux.Handle(path, wrap(provider.WebhookHandler(), provider.Name(), logger, config.OnPanic))
	}
	return mux
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func wrap(next http.Handler, provider string, logger paysync.Logger, onPanic func(*http.Request, interface{})) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if v := recover(); v != nil {
				if onPanic != nil {
					onPanic(r, v)
				}
				logger.Error("webhook handler panicked",
					paysync.Field{Key: "provider", Value: provider},
					paysync.Field{Key: "panic", Value: v})
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(rec, r)

		logger.Info("webhook request",
			paysync.Field{Key: "provider", Value: provider},
			paysync.Field{Key: "method", Value: r.Method},
			paysync.Field{Key: "status", Value: rec.status},
			paysync.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})
	})
}
