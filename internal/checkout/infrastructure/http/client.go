package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type sessionKey struct{}

// WithSessionToken attaches the member's bearer token to ctx so outbound
// calls are made on their behalf.
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionKey{}, token)
}

func sessionToken(ctx context.Context) string {
	v, _ := ctx.Value(sessionKey{}).(string)
	return v
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func authorize(ctx context.Context, req *http.Request) {
	if tok := sessionToken(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}

// errorReason pulls a human readable reason out of an error body.
func errorReason(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(b, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if s := strings.TrimSpace(string(b)); s != "" {
		return s
	}
	return http.StatusText(resp.StatusCode)
}
