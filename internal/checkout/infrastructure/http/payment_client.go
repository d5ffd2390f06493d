package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmehra2102/portal-cart/internal/checkout/domain"
)

const confirmPath = "/payment_intents/confirm"

type PaymentClient struct {
	log     *slog.Logger
	hc      *http.Client
	baseURL string
}

func NewPaymentClient(log *slog.Logger, baseURL string, timeout time.Duration) *PaymentClient {
	return &PaymentClient{
		log:     log,
		hc:      newHTTPClient(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type confirmReq struct {
	ClientSecret  string               `json:"clientSecret"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

// Confirm asks the provider to settle the payment intent. Any non-2xx answer is
// reported as a declined payment.
func (c *PaymentClient) Confirm(ctx context.Context, clientSecret string, method domain.PaymentMethod) error {
	body, err := json.Marshal(confirmReq{ClientSecret: clientSecret, PaymentMethod: method})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+confirmPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", domain.ErrPaymentDeclined, errorReason(resp))
	}
	return nil
}
