package application

import (
	"context"
	"sync"

	"github.com/dmehra2102/portal-cart/internal/checkout/domain"
)

type fakeOrders struct {
	mu       sync.Mutex
	requests []domain.SubmissionRequest
	respond  func(req domain.SubmissionRequest) (domain.Handshake, error)
}

func (f *fakeOrders) Submit(_ context.Context, req domain.SubmissionRequest) (domain.Handshake, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return domain.Handshake{ClientSecret: "pi_secret_1", TotalAmountInPence: 150}, nil
	}
	return respond(req)
}

func (f *fakeOrders) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakePayments struct {
	secrets []string
	err     error
}

func (f *fakePayments) Confirm(_ context.Context, clientSecret string, _ domain.PaymentMethod) error {
	f.secrets = append(f.secrets, clientSecret)
	return f.err
}

type fakeRedirector struct{ targets []string }

func (f *fakeRedirector) Redirect(_ context.Context, target string) {
	f.targets = append(f.targets, target)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeEvents) Publish(_ context.Context, ev domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) types() []domain.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.EventType, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}
