package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/fixlite/internal/intervention/domain"
)

// CheckoutClient implements Processor against a hosted-checkout HTTP API.
// The wire format matches the gateway the platform fronts: create returns
// a session id plus redirect url, status returns the payment status string.
type CheckoutClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewCheckoutClient constructs the client. A nil http.Client gets a
// 10-second-timeout default; callers needing tighter bounds pass their own.
func NewCheckoutClient(baseURL, apiKey string, client *http.Client) *CheckoutClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CheckoutClient{baseURL: baseURL, apiKey: apiKey, client: client}
}

type createSessionPayload struct {
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type createSessionReply struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateSession opens a hosted checkout session.
func (c *CheckoutClient) CreateSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	body, err := json.Marshal(createSessionPayload{
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return CheckoutSession{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("checkout create: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return CheckoutSession{}, fmt.Errorf("checkout create: unexpected status %d", resp.StatusCode)
	}

	var reply createSessionReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return CheckoutSession{}, fmt.Errorf("decode session reply: %w", err)
	}
	if reply.SessionID == "" {
		return CheckoutSession{}, fmt.Errorf("checkout create: empty session id")
	}
	return CheckoutSession{SessionID: reply.SessionID, RedirectURL: reply.URL}, nil
}

type sessionStatusReply struct {
	PaymentStatus string `json:"payment_status"`
}

// GetStatus fetches the authoritative payment status for a session.
func (c *CheckoutClient) GetStatus(ctx context.Context, sessionID string) (domain.PaymentStatus, error) {
	endpoint := c.baseURL + "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("checkout status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("checkout status: unexpected status %d", resp.StatusCode)
	}

	var reply sessionStatusReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decode status reply: %w", err)
	}

	switch status := domain.PaymentStatus(reply.PaymentStatus); status {
	case domain.PaymentPending, domain.PaymentPaid, domain.PaymentFailed, domain.PaymentCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("unknown payment status %q", reply.PaymentStatus)
	}
}
