package paddle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mihaimyh/paysync/pkg/billing"
	"github.com/mihaimyh/paysync/pkg/billing/internal"
	"github.com/mihaimyh/paysync/pkg/paysync"
)

// webhookAck is the success response body acknowledged back to Paddle.
type webhookAck struct {
	Success   bool      `json:"success"`
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

type webhookReject struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleWebhook processes incoming Paddle webhook events
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	internal.SetSecurityHeaders(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Missing secret is a deployment fault: fail closed, never treat it as
	// "verification not required"
	if len(p.webhookSecret) == 0 {
		_ = internal.WriteJSON(w, http.StatusInternalServerError,
			webhookReject{Message: "Webhook secret not configured"})
		p.metrics.RecordWebhookError(providerName, "not_configured")
		return
	}

	select {
	case <-r.Context().Done():
		http.Error(w, "request timeout", http.StatusRequestTimeout)
		return
	default:
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

	sig := r.Header.Get("Paddle-Signature")
	if strings.TrimSpace(sig) == "" {
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

	// Decode only after the signature checked out, so malformed-but-authentic
	// payloads are distinguishable from forged ones in logs
	var event paysync.Event
	if err := json.Unmarshal(body, &event); err != nil || event.EventType == "" {
		_ = internal.WriteJSON(w, http.StatusBadRequest,
			webhookReject{Message: "Invalid payload"})
		p.metrics.RecordWebhookError(providerName, "invalid_payload")
		return
	}

	// Per-entity write failures are logged inside processEvent and do not
	// fail the request; Paddle's redelivery is reserved for transport-level
	// failures only
	status := p.processEvent(r.Context(), &event)

	_ = internal.WriteJSON(w, http.StatusOK, webhookAck{
		Success:   true,
		EventType: event.EventType,
		EventID:   event.EventID,
		Timestamp: time.Now().UTC(),
	})

	p.metrics.RecordWebhookEvent(providerName, event.EventType, status)
	p.metrics.RecordWebhookProcessingDuration(providerName, event.EventType, time.Since(startTime))
}

// processEvent dispatches on the event type. Returns the metric status label:
// "success", "error" (a write failed), or "ignored" (logged-only category).
func (p *Provider) processEvent(ctx context.Context, event *paysync.Event) string {
	switch {
	case event.EventType == "customer.created" || event.EventType == "customer.updated":
		return p.applyCustomerEvent(ctx, event)

	case strings.HasPrefix(event.EventType, "subscription."):
		return p.applySubscriptionEvent(ctx, event)

	case strings.HasPrefix(event.EventType, "transaction."):
		return p.applyTransactionEvent(ctx, event)

	case strings.HasPrefix(event.EventType, "address.") ||
		strings.HasPrefix(event.EventType, "business."):
		return p.touchCustomerEvent(ctx, event)

	case strings.HasPrefix(event.EventType, "discount.") ||
		strings.HasPrefix(event.EventType, "payout.") ||
		strings.HasPrefix(event.EventType, "price.") ||
		strings.HasPrefix(event.EventType, "product.") ||
		strings.HasPrefix(event.EventType, "report."):
		// Catalog and reporting categories are acknowledged but not persisted
		p.logger.Debug("ignoring catalog event",
			paysync.Field{Key: "event_type", Value: event.EventType},
			paysync.Field{Key: "event_id", Value: event.EventID})
		return "ignored"

	default:
		p.logger.Warn("unknown event type",
			paysync.Field{Key: "event_type", Value: event.EventType},
			paysync.Field{Key: "event_id", Value: event.EventID})
		return "ignored"
	}
}

// customerData is the payload shape of customer.* events.
type customerData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (p *Provider) applyCustomerEvent(ctx context.Context, event *paysync.Event) string {
	var data customerData
	if err := json.Unmarshal(event.Data, &data); err != nil || data.ID == "" {
		p.logWriteFailure(event, "customer", data.ID, billing.ErrInvalidWebhookPayload)
		return "error"
	}

	err := p.reconciler.ApplyCustomer(ctx, &paysync.Customer{
		ID:        data.ID,
		Email:     data.Email,
		UpdatedAt: event.OccurredAt,
	})
	if err != nil {
		p.logWriteFailure(event, "customer", data.ID, err)
		p.metrics.RecordEntityUpsert(providerName, "customer", "error")
		return "error"
	}
	p.metrics.RecordEntityUpsert(providerName, "customer", "success")
	return "success"
}

// scheduledChange is Paddle's pending-plan-change object, stored as free text.
type scheduledChange struct {
	Action      string `json:"action"`
	EffectiveAt string `json:"effective_at"`
}

func (sc *scheduledChange) describe() string {
	if sc == nil || sc.Action == "" {
		return ""
	}
	if sc.EffectiveAt == "" {
		return sc.Action
	}
	return sc.Action + " at " + sc.EffectiveAt
}

// subscriptionData is the payload shape of subscription.* events.
type subscriptionData struct {
	ID              string           `json:"id"`
	CustomerID      string           `json:"customer_id"`
	Status          string           `json:"status"`
	StartedAt       *time.Time       `json:"started_at"`
	PausedAt        *time.Time       `json:"paused_at"`
	CanceledAt      *time.Time       `json:"canceled_at"`
	ScheduledChange *scheduledChange `json:"scheduled_change"`
	Items           []struct {
		Price struct {
			ID        string `json:"id"`
			ProductID string `json:"product_id"`
		} `json:"price"`
	} `json:"items"`
}

func (p *Provider) applySubscriptionEvent(ctx context.Context, event *paysync.Event) string {
	var data subscriptionData
	if err := json.Unmarshal(event.Data, &data); err != nil || data.ID == "" || data.CustomerID == "" {
		p.logWriteFailure(event, "subscription", data.ID, billing.ErrInvalidWebhookPayload)
		return "error"
	}

	sub := &paysync.Subscription{
		ID:              data.ID,
		CustomerID:      data.CustomerID,
		Status:          normalizeStatus(event.EventType, data.Status),
		ScheduledChange: data.ScheduledChange.describe(),
		StartedAt:       data.StartedAt,
		PausedAt:        data.PausedAt,
		CanceledAt:      data.CanceledAt,
		UpdatedAt:       event.OccurredAt,
	}
	if len(data.Items) > 0 {
		sub.PriceID = data.Items[0].Price.ID
		sub.ProductID = data.Items[0].Price.ProductID
	}

	if err := p.reconciler.ApplySubscription(ctx, sub); err != nil {
		p.logWriteFailure(event, "subscription", data.ID, err)
		p.metrics.RecordEntityUpsert(providerName, "subscription", "error")
		return "error"
	}
	p.metrics.RecordEntityUpsert(providerName, "subscription", "success")
	return "success"
}

// normalizeStatus maps explicit lifecycle events to a fixed status literal;
// subscription.created and .updated trust whatever status string the payload
// carries. The side-effect timestamps downstream key off the result, not the
// event name.
func normalizeStatus(eventType, payloadStatus string) paysync.SubscriptionStatus {
	switch eventType {
	case "subscription.activated", "subscription.resumed":
		return paysync.StatusActive
	case "subscription.trialing":
		return paysync.StatusTrialing
	case "subscription.past_due":
		return paysync.StatusPastDue
	case "subscription.paused":
		return paysync.StatusPaused
	case "subscription.canceled":
		return paysync.StatusCanceled
	}

	if payloadStatus != "" {
		return paysync.SubscriptionStatus(payloadStatus)
	}
	return paysync.StatusActive
}

// moneyTotals is Paddle's totals object; amount is a string of minor
// currency units.
type moneyTotals struct {
	GrandTotal struct {
		Amount string `json:"amount"`
	} `json:"grand_total"`
}

// transactionData is the payload shape of transaction.* events.
type transactionData struct {
	ID             string       `json:"id"`
	SubscriptionID string       `json:"subscription_id"`
	CustomerID     string       `json:"customer_id"`
	Status         string       `json:"status"`
	CurrencyCode   string       `json:"currency_code"`
	BilledAt       *time.Time   `json:"billed_at"`
	Totals         *moneyTotals `json:"totals"`
	Details        *struct {
		Totals *moneyTotals `json:"totals"`
	} `json:"details"`
}

// extractAmount tries the two payload shapes Paddle has shipped over API
// versions, falling back to nil when totals are absent or unparseable.
func (d *transactionData) extractAmount() *int64 {
	candidates := []*moneyTotals{d.Totals}
	if d.Details != nil {
		candidates = append(candidates, d.Details.Totals)
	}
	for _, totals := range candidates {
		if totals == nil || totals.GrandTotal.Amount == "" {
			continue
		}
		amount, err := strconv.ParseInt(totals.GrandTotal.Amount, 10, 64)
		if err != nil {
			continue
		}
		return &amount
	}
	return nil
}

func (p *Provider) applyTransactionEvent(ctx context.Context, event *paysync.Event) string {
	var data transactionData
	if err := json.Unmarshal(event.Data, &data); err != nil || data.ID == "" || data.CustomerID == "" {
		p.logWriteFailure(event, "transaction", data.ID, billing.ErrInvalidWebhookPayload)
		return "error"
	}

	status := data.Status
	if status == "" {
		// transaction.billed/paid/completed/canceled/ready carry the state in
		// the event name itself
		status = strings.TrimPrefix(event.EventType, "transaction.")
	}

	txn := &paysync.Transaction{
		ID:             data.ID,
		SubscriptionID: data.SubscriptionID,
		CustomerID:     data.CustomerID,
		Status:         status,
		Amount:         data.extractAmount(),
		CurrencyCode:   data.CurrencyCode,
		BilledAt:       data.BilledAt,
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

// touchCustomerEvent handles address.* and business.* events, which carry no
// fields we persist beyond proof that the customer exists.
func (p *Provider) touchCustomerEvent(ctx context.Context, event *paysync.Event) string {
	var data struct {
		CustomerID string `json:"customer_id"`
	}
	if err := json.Unmarshal(event.Data, &data); err != nil || data.CustomerID == "" {
		p.logWriteFailure(event, "customer", data.CustomerID, billing.ErrInvalidWebhookPayload)
		return "error"
	}

	if err := p.reconciler.EnsureCustomer(ctx, data.CustomerID, event.OccurredAt); err != nil {
		p.logWriteFailure(event, "customer", data.CustomerID, err)
		return "error"
	}
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
