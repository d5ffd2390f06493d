package application

import (
	"context"

	cart "github.com/dmehra2102/portal-cart/internal/cart/domain"
	"github.com/dmehra2102/portal-cart/internal/checkout/domain"
)

// CartStore is the part of the cart store the orchestrator drives.
type CartStore interface {
	Key() string
	Get(ctx context.Context) cart.Cart
	SetLocked(ctx context.Context, locked bool) error
	ClearAndUnlock(ctx context.Context) error
}

// OrderAPI prices the submitted cart server-side and opens a payment intent.
// It returns domain.ErrDebtor when the member may not transact.
type OrderAPI interface {
	Submit(ctx context.Context, req domain.SubmissionRequest) (domain.Handshake, error)
}

type PaymentProvider interface {
	Confirm(ctx context.Context, clientSecret string, method domain.PaymentMethod) error
}

type Redirector interface {
	Redirect(ctx context.Context, target string)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Confirmer shows a blocking prompt and reports whether the user chose to leave.
type Confirmer func(prompt string) bool
