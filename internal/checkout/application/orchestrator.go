package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cart "github.com/dmehra2102/portal-cart/internal/cart/domain"
	"github.com/dmehra2102/portal-cart/internal/checkout/domain"
)

const (
	DefaultDebtPage = "/debt"
	LeavePrompt     = "Your payment will not complete if you leave this page."
)

var (
	ErrNotReady         = errors.New("checkout: cart is not ready")
	ErrInProgress       = errors.New("checkout: attempt in progress")
	ErrNoPendingPayment = errors.New("checkout: no payment awaiting confirmation")
	ErrAbandoned        = errors.New("checkout: attempt abandoned")
)

type attempt struct {
	key        string
	snapshot   cart.Cart
	handshake  domain.Handshake
	failure    string
	paymentErr string
	confirming bool
}

// Status is a read-only view of the orchestrator for UI surfaces.
type Status struct {
	State          domain.State      `json:"state"`
	GuardActive    bool              `json:"guardActive"`
	IdempotencyKey string            `json:"idempotencyKey,omitempty"`
	Handshake      *domain.Handshake `json:"handshake,omitempty"`
	Failure        string            `json:"failure,omitempty"`
	PaymentError   string            `json:"paymentError,omitempty"`
}

type Option func(*Orchestrator)

func WithEvents(p EventPublisher) Option { return func(o *Orchestrator) { o.events = p } }
func WithRedirector(r Redirector) Option { return func(o *Orchestrator) { o.redirect = r } }
func WithDebtPage(path string) Option { return func(o *Orchestrator) { o.debtPage = path } }
func WithKeyFunc(fn func() string) Option { return func(o *Orchestrator) { o.newKey = fn } }
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// Orchestrator drives one cart through checkout. The cart's lock flag is the
// only guard against a second submission; the orchestrator is the only caller
// that flips it.
type Orchestrator struct {
	log      *slog.Logger
	cart     CartStore
	orders   OrderAPI
	payments PaymentProvider
	redirect Redirector
	events   EventPublisher
	debtPage string
	newKey   func() string
	now      func() time.Time
	tracer   trace.Tracer

	mu      sync.Mutex
	state   domain.State
	attempt *attempt
}

func NewOrchestrator(log *slog.Logger, store CartStore, orders OrderAPI, payments PaymentProvider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:      log.With("cart_key", store.Key()),
		cart:     store,
		orders:   orders,
		payments: payments,
		debtPage: DefaultDebtPage,
		newKey:   uuid.NewString,
		now:      time.Now,
		tracer:   otel.Tracer("checkout-orchestrator"),
		state:    domain.StateReviewing,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) State() domain.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{State: o.state, GuardActive: o.state.GuardsNavigation()}
	if at := o.attempt; at != nil {
		st.IdempotencyKey = at.key
		st.Failure = at.failure
		st.PaymentError = at.paymentErr
		if at.handshake.ClientSecret != "" {
			hs := at.handshake
			st.Handshake = &hs
		}
	}
	return st
}

// Pay locks the cart, submits a snapshot of it and waits for the payment
// handshake. Only one attempt can be in flight per cart.
func (o *Orchestrator) Pay(ctx context.Context, tableNumber string) (domain.Handshake, error) {
	ctx, span := o.tracer.Start(ctx, "checkout.Pay")
	defer span.End()

	o.mu.Lock()
	switch o.state {
	case domain.StateReviewing:
	case domain.StateCompleted:
		o.attempt = nil
		o.transition(domain.StateReviewing)
	case domain.StateFailed, domain.StateDebtBlocked:
		o.mu.Unlock()
		return domain.Handshake{}, fmt.Errorf("%w: unlock the cart before retrying", ErrNotReady)
	default:
		o.mu.Unlock()
		return domain.Handshake{}, ErrInProgress
	}
	if blockers := cart.CheckoutBlockers(o.cart.Get(ctx)); len(blockers) > 0 {
		o.mu.Unlock()
		return domain.Handshake{}, fmt.Errorf("%w: %s", ErrNotReady, blockers[0])
	}
	if err := o.cart.SetLocked(ctx, true); err != nil {
		o.mu.Unlock()
		return domain.Handshake{}, fmt.Errorf("lock cart: %w", err)
	}

	snapshot := o.cart.Get(ctx)
	check := snapshot
	check.Locked = false
	if blockers := cart.CheckoutBlockers(check); len(blockers) > 0 {
		// the cart changed between the readiness check and the lock
		o.releaseLocked(ctx)
		o.mu.Unlock()
		return domain.Handshake{}, fmt.Errorf("%w: %s", ErrNotReady, blockers[0])
	}

	at := &attempt{key: o.newKey(), snapshot: snapshot}
	o.attempt = at
	o.transition(domain.StateSubmitting)
	o.mu.Unlock()

	span.SetAttributes(attribute.String("checkout.idempotency_key", at.key), attribute.Int("checkout.items", len(snapshot.Items)))
	o.publish(ctx, domain.EventSubmitted, at)

	hs, err := o.orders.Submit(ctx, domain.NewSubmissionRequest(snapshot, tableNumber, at.key))

	o.mu.Lock()
	if o.attempt != at || o.state != domain.StateSubmitting {
		o.mu.Unlock()
		o.log.Warn("discarding order response for abandoned attempt", "idempotency_key", at.key)
		return domain.Handshake{}, ErrAbandoned
	}

	switch {
	case err == nil:
		at.handshake = hs
		o.transition(domain.StateAwaitingPayment)
		o.mu.Unlock()
		o.log.Info("order accepted", "idempotency_key", at.key, "total_pence", hs.TotalAmountInPence)
		o.publish(ctx, domain.EventAwaitingPayment, at)
		return hs, nil

	case errors.Is(err, domain.ErrDebtor):
		o.transition(domain.StateDebtBlocked)
		o.mu.Unlock()
		o.log.Info("checkout blocked by outstanding debt", "idempotency_key", at.key)
		o.publish(ctx, domain.EventDebtBlocked, at)
		if o.redirect != nil {
			o.redirect.Redirect(ctx, o.debtPage)
		}
		return domain.Handshake{}, err

	default:
		at.failure = failureReason(err)
		o.transition(domain.StateFailed)
		o.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "order submission failed")
		o.log.Error("order submission failed", "idempotency_key", at.key, "err", err)
		o.publish(ctx, domain.EventFailed, at)
		return domain.Handshake{}, err
	}
}

// ConfirmPayment hands the handshake to the payment provider. A declined
// payment keeps the attempt open so the user can retry without resubmitting.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, method domain.PaymentMethod) error {
	ctx, span := o.tracer.Start(ctx, "checkout.ConfirmPayment")
	defer span.End()

	o.mu.Lock()
	if o.state != domain.StateAwaitingPayment {
		o.mu.Unlock()
		return ErrNoPendingPayment
	}
	at := o.attempt
	if at.confirming {
		o.mu.Unlock()
		return ErrInProgress
	}
	at.confirming = true
	secret := at.handshake.ClientSecret
	o.mu.Unlock()

	err := o.payments.Confirm(ctx, secret, method)

	o.mu.Lock()
	at.confirming = false
	if err != nil {
		at.paymentErr = err.Error()
		o.mu.Unlock()
		span.RecordError(err)
		o.log.Warn("payment not confirmed", "idempotency_key", at.key, "err", err)
		if errors.Is(err, domain.ErrPaymentDeclined) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrPaymentDeclined, err)
	}
	at.paymentErr = ""
	o.mu.Unlock()

	return o.complete(ctx, at)
}

// PaymentSucceeded is the provider's callback. Repeated callbacks for the
// completed attempt are accepted and ignored.
func (o *Orchestrator) PaymentSucceeded(ctx context.Context, clientSecret string) error {
	o.mu.Lock()
	at := o.attempt
	if at == nil || at.handshake.ClientSecret == "" || at.handshake.ClientSecret != clientSecret {
		o.mu.Unlock()
		return ErrNoPendingPayment
	}
	if o.state == domain.StateCompleted {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()
	return o.complete(ctx, at)
}

func (o *Orchestrator) complete(ctx context.Context, at *attempt) error {
	o.mu.Lock()
	if o.attempt != at {
		o.mu.Unlock()
		return ErrAbandoned
	}
	if o.state == domain.StateCompleted {
		o.mu.Unlock()
		return nil
	}
	if o.state != domain.StateAwaitingPayment {
		o.mu.Unlock()
		return ErrNoPendingPayment
	}

	// the attempt stays open until the paid cart is gone, so a failed write
	// can be retried by the next confirmation or callback
	if err := o.cart.ClearAndUnlock(ctx); err != nil {
		o.mu.Unlock()
		o.log.Error("paid cart not cleared", "idempotency_key", at.key, "err", err)
		return fmt.Errorf("clear paid cart: %w", err)
	}
	o.transition(domain.StateCompleted)
	o.mu.Unlock()

	o.log.Info("checkout completed", "idempotency_key", at.key, "total_pence", at.handshake.TotalAmountInPence)
	o.publish(ctx, domain.EventCompleted, at)
	return nil
}

// Unlock is the explicit recovery path after a failed or blocked attempt, and
// for a cart that was persisted while locked.
func (o *Orchestrator) Unlock(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.GuardsNavigation() {
		return ErrInProgress
	}
	if err := o.cart.SetLocked(ctx, false); err != nil {
		return fmt.Errorf("unlock cart: %w", err)
	}
	o.attempt = nil
	if o.state != domain.StateReviewing {
		o.transition(domain.StateReviewing)
	}
	return nil
}

// Navigate is called before the user leaves the checkout surface. While a
// payment is active the user is asked to confirm; leaving anyway abandons the
// attempt and releases the lock. After a failed or blocked attempt the lock is
// kept for Unlock or Close. It reports whether navigation may proceed.
func (o *Orchestrator) Navigate(ctx context.Context, confirm Confirmer) (bool, error) {
	o.mu.Lock()
	state := o.state
	o.mu.Unlock()

	switch {
	case state == domain.StateFailed || state == domain.StateDebtBlocked:
		return true, nil
	case !state.GuardsNavigation():
		return true, o.Close(ctx)
	}
	if confirm == nil || !confirm(LeavePrompt) {
		return false, nil
	}

	o.mu.Lock()
	at := o.attempt
	if !o.state.GuardsNavigation() {
		// the attempt settled while the prompt was open
		settled := o.state
		o.mu.Unlock()
		if settled == domain.StateFailed || settled == domain.StateDebtBlocked {
			return true, nil
		}
		return true, o.Close(ctx)
	}
	o.attempt = nil
	o.transition(domain.StateReviewing)
	err := o.cart.SetLocked(ctx, false)
	o.mu.Unlock()

	o.log.Warn("checkout abandoned", "idempotency_key", at.key)
	o.publish(ctx, domain.EventAbandoned, at)
	if err != nil {
		return true, fmt.Errorf("unlock cart: %w", err)
	}
	return true, nil
}

// Close is surface teardown. Outside an active payment it releases the lock so
// a closed page cannot leave the cart locked; during one it leaves everything
// alone, since the navigation guard owns that case.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.GuardsNavigation() {
		return nil
	}
	if !o.cart.Get(ctx).Locked {
		return nil
	}
	if err := o.cart.SetLocked(ctx, false); err != nil {
		return fmt.Errorf("unlock cart: %w", err)
	}
	o.attempt = nil
	if o.state != domain.StateReviewing {
		o.transition(domain.StateReviewing)
	}
	return nil
}

// releaseLocked undoes the lock taken by Pay. Callers hold o.mu.
func (o *Orchestrator) releaseLocked(ctx context.Context) {
	if err := o.cart.SetLocked(ctx, false); err != nil {
		o.log.Error("unlock cart failed", "err", err)
	}
}

// transition moves the state machine. Callers hold o.mu.
func (o *Orchestrator) transition(to domain.State) {
	if !domain.CanTransition(o.state, to) {
		o.log.Error("illegal checkout transition", "from", o.state, "to", to)
		return
	}
	o.log.Debug("checkout transition", "from", o.state, "to", to)
	o.state = to
}

func (o *Orchestrator) publish(ctx context.Context, typ domain.EventType, at *attempt) {
	if o.events == nil {
		return
	}
	o.mu.Lock()
	ev := domain.Event{
		Type:               typ,
		CartKey:            o.cart.Key(),
		IdempotencyKey:     at.key,
		State:              o.state,
		ItemCount:          at.snapshot.ItemCount(),
		TotalAmountInPence: at.handshake.TotalAmountInPence,
		Reason:             at.failure,
		OccurredAt:         o.now().UTC(),
	}
	o.mu.Unlock()

	if err := o.events.Publish(ctx, ev); err != nil {
		o.log.Error("checkout event publish failed", "type", typ, "err", err)
	}
}

func failureReason(err error) string {
	var se *domain.SubmissionError
	if errors.As(err, &se) && se.Reason != "" {
		return se.Reason
	}
	return err.Error()
}
