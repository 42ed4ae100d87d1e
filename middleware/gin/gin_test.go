package gin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gongin "github.com/gin-gonic/gin"

	"github.com/mihaimyh/paysync/pkg/billing"
)

type stubProvider struct {
	name string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

func (p *stubProvider) SyncCustomer(ctx context.Context, customerID string) error { return nil }

var _ billing.Provider = (*stubProvider)(nil)

func TestRegister(t *testing.T) {
	gongin.SetMode(gongin.TestMode)
	router := gongin.New()
	Register(router, "", &stubProvider{name: "paddle"}, &stubProvider{name: "dodo"})

	for _, name := range []string{"paddle", "dodo"} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/"+name, strings.NewReader(`{"raw":true}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", name, w.Code)
		}
		if w.Body.String() != `{"raw":true}` {
			t.Errorf("%s: body was altered: %q", name, w.Body.String())
		}
	}

	// GET is not registered
	req := httptest.NewRequest(http.MethodGet, "/webhooks/paddle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusOK {
		t.Error("GET should not be routed to the webhook handler")
	}
}
