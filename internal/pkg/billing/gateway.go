package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nikhilsawlani/SnapLink/internal/pkg/env"
)

// Gateway is the outbound contract against the payment provider. The engine
// consumes it; it never implements billing itself.
type Gateway interface {
	// CreatePlan registers a billing plan and returns the remote plan id.
	CreatePlan(ctx context.Context, in CreatePlanInput) (string, error)
	// CreateSubscription creates a remote subscription and returns its id
	// plus the customer-facing checkout short URL.
	CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*RemoteSubscription, error)
	// CancelSubscription cancels a remote subscription. Failure is non-fatal
	// to local state transitions.
	CancelSubscription(ctx context.Context, remoteSubscriptionID string, cancelAtCycleEnd bool) error
}

type CreatePlanInput struct {
	Period   string            `json:"period"`
	Interval int               `json:"interval"`
	ItemName string            `json:"-"`
	AmountP  int64             `json:"-"` // smallest currency unit
	Currency string            `json:"-"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type CreateSubscriptionInput struct {
	RemotePlanID   string            `json:"plan_id"`
	TotalCount     int               `json:"total_count"`
	Quantity       int               `json:"quantity"`
	CustomerNotify bool              `json:"customer_notify"`
	Notes          map[string]string `json:"notes,omitempty"`
}

type RemoteSubscription struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

const (
	razorpayBaseURL        = "https://api.razorpay.com/v1"
	razorpayRequestTimeout = 20 * time.Second
)

// razorpayClient talks to the Razorpay REST API with basic auth.
type razorpayClient struct {
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
}

// NewRazorpayClient creates a gateway client with a bounded request timeout.
func NewRazorpayClient(keyID, keySecret string) Gateway {
	return &razorpayClient{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   razorpayBaseURL,
		http:      &http.Client{Timeout: razorpayRequestTimeout},
	}
}

// NewRazorpayClientFromEnv builds the client from RAZORPAY_KEY_ID/KEY_SECRET.
func NewRazorpayClientFromEnv() Gateway {
	return NewRazorpayClient(
		env.GetEnv("RAZORPAY_KEY_ID", ""),
		env.GetEnv("RAZORPAY_KEY_SECRET", ""),
	)
}

func (c *razorpayClient) CreatePlan(ctx context.Context, in CreatePlanInput) (string, error) {
	currency := in.Currency
	if currency == "" {
		currency = "INR"
	}
	body := map[string]any{
		"period":   in.Period,
		"interval": in.Interval,
		"item": map[string]any{
			"name":     in.ItemName,
			"amount":   in.AmountP,
			"currency": currency,
		},
	}
	if len(in.Notes) > 0 {
		body["notes"] = in.Notes
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/plans", body, &resp); err != nil {
		return "", fmt.Errorf("create razorpay plan: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create razorpay plan: empty plan id in response")
	}
	return resp.ID, nil
}

func (c *razorpayClient) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*RemoteSubscription, error) {
	body := map[string]any{
		"plan_id":         in.RemotePlanID,
		"total_count":     in.TotalCount,
		"quantity":        in.Quantity,
		"customer_notify": boolToInt(in.CustomerNotify),
	}
	if len(in.Notes) > 0 {
		body["notes"] = in.Notes
	}

	var resp RemoteSubscription
	if err := c.post(ctx, "/subscriptions", body, &resp); err != nil {
		return nil, fmt.Errorf("create razorpay subscription: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("create razorpay subscription: empty subscription id in response")
	}
	return &resp, nil
}

func (c *razorpayClient) CancelSubscription(ctx context.Context, remoteSubscriptionID string, cancelAtCycleEnd bool) error {
	body := map[string]any{
		"cancel_at_cycle_end": boolToInt(cancelAtCycleEnd),
	}
	path := fmt.Sprintf("/subscriptions/%s/cancel", remoteSubscriptionID)
	if err := c.post(ctx, path, body, nil); err != nil {
		return fmt.Errorf("cancel razorpay subscription %s: %w", remoteSubscriptionID, err)
	}
	return nil
}

func (c *razorpayClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("razorpay returned %d: %s", resp.StatusCode, truncate(string(respBody), 512))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Razorpay encodes booleans as 0/1 in these endpoints.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
