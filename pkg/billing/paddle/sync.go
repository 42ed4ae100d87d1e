package paddle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mihaimyh/paysync/pkg/billing"
	"github.com/mihaimyh/paysync/pkg/paysync"
)

// syncCustomerFromAPI fetches the customer and its subscriptions from the
// Paddle REST API and reconciles them into storage. Used to backfill state
// for customers created before the webhook endpoint was wired up.
func (p *Provider) syncCustomerFromAPI(ctx context.Context, customerID string) error {
	startTime := time.Now()

	if p.apiKey == "" {
		p.metrics.RecordCustomerSync(providerName, "error")
		return billing.ErrProviderNotConfigured
	}
	if customerID == "" {
		p.metrics.RecordCustomerSync(providerName, "error")
		return billing.ErrCustomerNotFound
	}

	syncErr := p.doSyncCustomer(ctx, customerID)

	status := "success"
	if syncErr != nil {
		status = "error"
	}
	p.metrics.RecordCustomerSync(providerName, status)
	p.metrics.RecordCustomerSyncDuration(providerName, time.Since(startTime))

	return syncErr
}

func (p *Provider) doSyncCustomer(ctx context.Context, customerID string) error {
	now := time.Now().UTC()

	var customerResp struct {
		Data customerData `json:"data"`
	}
	path := "/customers/" + url.PathEscape(customerID)
	if err := p.apiGet(ctx, path, "/customers/{id}", &customerResp); err != nil {
		return err
	}

	err := p.reconciler.ApplyCustomer(ctx, &paysync.Customer{
		ID:        customerResp.Data.ID,
		Email:     customerResp.Data.Email,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("reconciling customer %s: %w", customerID, err)
	}

	var subsResp struct {
		Data []subscriptionData `json:"data"`
	}
	path = "/subscriptions?customer_id=" + url.QueryEscape(customerID)
	if err := p.apiGet(ctx, path, "/subscriptions", &subsResp); err != nil {
		return err
	}

	for _, data := range subsResp.Data {
		sub := &paysync.Subscription{
			ID:              data.ID,
			CustomerID:      customerID,
			Status:          normalizeStatus("", data.Status),
			ScheduledChange: data.ScheduledChange.describe(),
			StartedAt:       data.StartedAt,
			PausedAt:        data.PausedAt,
			CanceledAt:      data.CanceledAt,
			UpdatedAt:       now,
		}
		if len(data.Items) > 0 {
			sub.PriceID = data.Items[0].Price.ID
			sub.ProductID = data.Items[0].Price.ProductID
		}
		if err := p.reconciler.ApplySubscription(ctx, sub); err != nil {
			return fmt.Errorf("reconciling subscription %s: %w", data.ID, err)
		}
	}

	p.logger.Info("customer synced from API",
		paysync.Field{Key: "customer_id", Value: customerID},
		paysync.Field{Key: "subscriptions", Value: len(subsResp.Data)})

	return nil
}

// apiGet performs an authenticated GET against the Paddle API and decodes
// the JSON response into out. endpoint is the metric label for the route,
// with IDs elided so the cardinality stays bounded.
func (p *Provider) apiGet(ctx context.Context, path, endpoint string, out any) error {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.metrics.RecordAPICall(providerName, endpoint, "error")
		return fmt.Errorf("calling paddle API: %w", err)
	}
	defer resp.Body.Close()

	p.metrics.RecordAPICall(providerName, endpoint, strconv.Itoa(resp.StatusCode))
	p.metrics.RecordAPICallDuration(providerName, endpoint, time.Since(startTime))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return billing.ErrCustomerNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: paddle API returned %d", billing.ErrProviderAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding paddle API response: %w", err)
	}
	return nil
}
