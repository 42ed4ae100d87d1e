package dodo

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mihaimyh/paysync/pkg/billing"
	"github.com/mihaimyh/paysync/pkg/billing/internal"
	"github.com/mihaimyh/paysync/pkg/paysync"
)

const hexDigestLen = 64

// webhookAck is the success response body acknowledged back to Dodo.
type webhookAck struct {
	Received  bool      `json:"received"`
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

type webhookReject struct {
	Received bool   `json:"received"`
	Message  string `json:"message"`
}

// handleWebhook processes incoming Dodo webhook events
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	internal.SetSecurityHeaders(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(p.webhookSecret) == 0 {
		_ = internal.WriteJSON(w, http.StatusInternalServerError,
			webhookReject{Message: "Webhook secret not configured"})
		p.metrics.RecordWebhookError(providerName, "not_configured")
		return
	}

	body, err := internal.ReadBodyStrict(w, r, p.maxBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			_ = internal.WriteJSON(w, http.StatusRequestEntityTooLarge,
				webhookReject{Message: "Payload too large"})
			p.metrics.RecordWebhookError(providerName, "payload_too_large")
		} else {
			_ = internal.WriteJSON(w, http.StatusBadRequest,
				webhookReject{Message: "Missing request body"})
			p.metrics.RecordWebhookError(providerName, "invalid_payload")
		}
		return
	}

	sig := strings.TrimSpace(r.Header.Get("Dodo-Signature"))
	if sig == "" {
		_ = internal.WriteJSON(w, http.StatusBadRequest,
			webhookReject{Message: "Missing signature"})
		p.metrics.RecordWebhookError(providerName, "missing_signature")
		return
	}

	if !p.verifySignature(sig, body) {
		_ = internal.WriteJSON(w, http.StatusUnauthorized,
			webhookReject{Message: "Invalid signature"})
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		return
	}

	var event paysync.Event
	if err := json.Unmarshal(body, &event); err != nil || event.EventType == "" {
		_ = internal.WriteJSON(w, http.StatusBadRequest,
			webhookReject{Message: "Invalid payload"})
		p.metrics.RecordWebhookError(providerName, "invalid_payload")
		return
	}

	status := p.processEvent(r.Context(), &event)

	_ = internal.WriteJSON(w, http.StatusOK, webhookAck{
		Received:  true,
		EventType: event.EventType,
		EventID:   event.EventID,
		Timestamp: time.Now().UTC(),
	})

	p.metrics.RecordWebhookEvent(providerName, event.EventType, status)
	p.metrics.RecordWebhookProcessingDuration(providerName, event.EventType, time.Since(startTime))
}

// verifySignature checks the bare-hex digest Dodo sends. Unlike Paddle there
// is exactly one format: 64 hex chars, HMAC-SHA256 over the raw body.
func (p *Provider) verifySignature(digest string, body []byte) bool {
	if len(p.webhookSecret) == 0 || len(digest) != hexDigestLen {
		return false
	}
	expected, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, p.webhookSecret)
	mac.Write(body)
	return hmac.Equal(expected, mac.Sum(nil))
}

func (p *Provider) processEvent(ctx context.Context, event *paysync.Event) string {
	switch event.EventType {
	case "subscription.created", "subscription.renewed":
		return p.applySubscriptionEvent(ctx, event, paysync.StatusActive)
	case "subscription.canceled":
		return p.applySubscriptionEvent(ctx, event, paysync.StatusCanceled)
	case "payment.succeeded":
		return p.applyPaymentEvent(ctx, event, "succeeded")
	case "payment.failed":
		return p.applyPaymentEvent(ctx, event, "failed")
	default:
		p.logger.Warn("unknown event type",
			paysync.Field{Key: "event_type", Value: event.EventType},
			paysync.Field{Key: "event_id", Value: event.EventID})
		return "ignored"
	}
}

// subscriptionData is the payload shape of subscription.* events.
type subscriptionData struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	ProductID  string     `json:"product_id"`
	StartedAt  *time.Time `json:"started_at"`
	CanceledAt *time.Time `json:"canceled_at"`
}

func (p *Provider) applySubscriptionEvent(ctx context.Context, event *paysync.Event, status paysync.SubscriptionStatus) string {
	var data subscriptionData
	if err := json.Unmarshal(event.Data, &data); err != nil || data.ID == "" || data.CustomerID == "" {
		p.logWriteFailure(event, "subscription", data.ID, billing.ErrInvalidWebhookPayload)
		return "error"
	}

	sub := &paysync.Subscription{
		ID:         data.ID,
		CustomerID: data.CustomerID,
		Status:     status,
		ProductID:  data.ProductID,
		StartedAt:  data.StartedAt,
		CanceledAt: data.CanceledAt,
		UpdatedAt:  event.OccurredAt,
	}
	if err := p.reconciler.ApplySubscription(ctx, sub); err != nil {
		p.logWriteFailure(event, "subscription", data.ID, err)
		p.metrics.RecordEntityUpsert(providerName, "subscription", "error")
		return "error"
	}
	p.metrics.RecordEntityUpsert(providerName, "subscription", "success")
	return "success"
}

// paymentData is the payload shape of payment.* events. Dodo amounts are
// already integer minor units.
type paymentData struct {
	ID             string     `json:"id"`
	SubscriptionID string     `json:"subscription_id"`
	CustomerID     string     `json:"customer_id"`
	Amount         *int64     `json:"amount"`
	Currency       string     `json:"currency"`
	CreatedAt      *time.Time `json:"created_at"`
}

func (p *Provider) applyPaymentEvent(ctx context.Context, event *paysync.Event, status string) string {
	var data paymentData
	if err := json.Unmarshal(event.Data, &data); err != nil || data.ID == "" || data.CustomerID == "" {
		p.logWriteFailure(event, "transaction", data.ID, billing.ErrInvalidWebhookPayload)
		return "error"
	}

	txn := &paysync.Transaction{
		ID:             data.ID,
		SubscriptionID: data.SubscriptionID,
		CustomerID:     data.CustomerID,
		Status:         status,
		Amount:         data.Amount,
		CurrencyCode:   data.Currency,
		BilledAt:       data.CreatedAt,
		UpdatedAt:      event.OccurredAt,
	}
	if err := p.reconciler.ApplyTransaction(ctx, txn); err != nil {
		p.logWriteFailure(event, "transaction", data.ID, err)
		p.metrics.RecordEntityUpsert(providerName, "transaction", "error")
		return "error"
	}
	p.metrics.RecordEntityUpsert(providerName, "transaction", "success")
	return "success"
}

func (p *Provider) logWriteFailure(event *paysync.Event, entity, entityID string, err error) {
	p.logger.Error("webhook write failed",
		paysync.Field{Key: "event_type", Value: event.EventType},
		paysync.Field{Key: "event_id", Value: event.EventID},
		paysync.Field{Key: "entity", Value: entity},
		paysync.Field{Key: "entity_id", Value: entityID},
		paysync.Field{Key: "error", Value: err.Error()})
	p.metrics.RecordWebhookError(providerName, "write_failed")
}
