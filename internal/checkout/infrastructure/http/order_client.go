package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmehra2102/portal-cart/internal/checkout/domain"
)

const checkoutPath = "/orders/checkout"

// OrderClient submits carts to the order API over HTTP.
type OrderClient struct {
	log     *slog.Logger
	hc      *http.Client
	baseURL string
}

func NewOrderClient(log *slog.Logger, baseURL string, timeout time.Duration) *OrderClient {
	return &OrderClient{
		log:     log,
		hc:      newHTTPClient(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *OrderClient) Submit(ctx context.Context, sub domain.SubmissionRequest) (domain.Handshake, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return domain.Handshake{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkoutPath, bytes.NewReader(body))
	if err != nil {
		return domain.Handshake{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if sub.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", sub.IdempotencyKey)
	}
	authorize(ctx, req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.Handshake{}, fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return domain.Handshake{}, domain.ErrDebtor
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		reason := errorReason(resp)
		c.log.Warn("order api rejected checkout", "status", resp.StatusCode, "reason", reason)
		return domain.Handshake{}, &domain.SubmissionError{Status: resp.StatusCode, Reason: reason}
	}

	var hs domain.Handshake
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return domain.Handshake{}, fmt.Errorf("decode handshake: %w", err)
	}
	if hs.ClientSecret == "" {
		return domain.Handshake{}, errors.New("decode handshake: empty client secret")
	}
	return hs, nil
}
