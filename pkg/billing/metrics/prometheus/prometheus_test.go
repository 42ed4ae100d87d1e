package prommetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPrometheusMetrics_NewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestPrometheusMetrics_RecordWebhookEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordWebhookEvent("paddle", "transaction.paid", "success")
	metrics.RecordWebhookEvent("paddle", "subscription.updated", "success")
	metrics.RecordWebhookEvent("dodo", "payment.succeeded", "error")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var events *dto.MetricFamily
	for _, m := range families {
		if m.GetName() == "test_billing_webhook_events_total" {
			events = m
			break
		}
	}
	if events == nil {
		t.Fatal("Expected to find webhook events metric")
	}

	// One time series per label combination
	if len(events.Metric) != 3 {
		t.Errorf("Expected 3 time series, got %d", len(events.Metric))
	}
}

func TestPrometheusMetrics_RecordDurations(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordWebhookProcessingDuration("paddle", "transaction.paid", 30*time.Millisecond)
	metrics.RecordCustomerSyncDuration("paddle", 250*time.Millisecond)
	metrics.RecordAPICallDuration("paddle", "/customers/{id}", 120*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("Expected duration metrics to be recorded")
	}
}

func TestPrometheusMetrics_RecordErrorsAndUpserts(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordWebhookError("dodo", "auth_failed")
	metrics.RecordEntityUpsert("paddle", "customer", "success")
	metrics.RecordEntityUpsert("paddle", "transaction", "error")
	metrics.RecordCustomerSync("paddle", "success")
	metrics.RecordAPICall("paddle", "/customers/{id}", "200")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) < 4 {
		t.Errorf("Expected at least 4 metric families, got %d", len(families))
	}
}
