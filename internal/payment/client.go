// Package payment talks to the checkout-session provider. A session is a
// time-boxed redirect correlated to a booking through its metadata.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type sessionRequest struct {
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	ExpiresAt   int64             `json:"expires_at"`
	Metadata    map[string]string `json:"metadata"`
}

type sessionResponse struct {
	URL string `json:"url"`
}

func (c *Client) CreateSession(ctx context.Context, req domain.PaymentRequest) (domain.PaymentSession, error) {
	body, err := json.Marshal(sessionRequest{
		AmountCents: int64(math.Floor(req.Amount)) * 100,
		Currency:    req.Currency,
		Description: req.Description,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
		ExpiresAt:   req.ExpiresAt.Unix(),
		Metadata:    map[string]string{"bookingId": req.BookingID},
	})
	if err != nil {
		return domain.PaymentSession{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return domain.PaymentSession{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// The sentinel is the cause so any errors.Is caller sees it; the
		// transport error rides along as detail.
		return domain.PaymentSession{}, errors.CombineErrors(domain.ErrPaymentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.PaymentSession{}, errors.Wrapf(domain.ErrPaymentUnavailable,
			"payment provider returned %d", resp.StatusCode)
	}

	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.PaymentSession{}, errors.CombineErrors(domain.ErrPaymentUnavailable, err)
	}
	return domain.PaymentSession{URL: out.URL, ExpiresAt: req.ExpiresAt}, nil
}
