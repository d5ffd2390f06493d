package portal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cartapp "github.com/dmehra2102/portal-cart/internal/cart/application"
	cart "github.com/dmehra2102/portal-cart/internal/cart/domain"
	checkoutapp "github.com/dmehra2102/portal-cart/internal/checkout/application"
	checkoutdomain "github.com/dmehra2102/portal-cart/internal/checkout/domain"
)

// CartKey is the storage key of a session's cart.
func CartKey(sessionID string) string { return "cart:" + sessionID }

// Session bundles what one signed-in visitor works with: their cart and the
// orchestrator that checks it out.
type Session struct {
	ID       string
	Cart     *cartapp.Store
	Checkout *checkoutapp.Orchestrator

	redirects *redirects
	lastSeen  time.Time
}

// TakeRedirect returns and clears the last navigation target requested by
// the orchestrator.
func (s *Session) TakeRedirect() string { return s.redirects.take() }

type redirects struct {
	mu     sync.Mutex
	target string
}

func (r *redirects) Redirect(_ context.Context, target string) {
	r.mu.Lock()
	r.target = target
	r.mu.Unlock()
}

func (r *redirects) take() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.target
	r.target = ""
	return t
}

type Option func(*Sessions)

func WithEvents(p checkoutapp.EventPublisher) Option {
	return func(s *Sessions) { s.events = p }
}

func WithDebtPage(path string) Option {
	return func(s *Sessions) { s.debtPage = path }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sessions) { s.now = now }
}

type Sessions struct {
	log      *slog.Logger
	registry *cartapp.Registry
	orders   checkoutapp.OrderAPI
	payments checkoutapp.PaymentProvider
	events   checkoutapp.EventPublisher
	debtPage string
	now      func() time.Time

	mu   sync.Mutex
	byID map[string]*Session
}

func NewSessions(log *slog.Logger, registry *cartapp.Registry, orders checkoutapp.OrderAPI, payments checkoutapp.PaymentProvider, opts ...Option) *Sessions {
	s := &Sessions{
		log:      log,
		registry: registry,
		orders:   orders,
		payments: payments,
		debtPage: checkoutapp.DefaultDebtPage,
		now:      time.Now,
		byID:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the session for id, creating it on first use.
func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok {
		sess.lastSeen = s.now()
		return sess
	}

	store := s.registry.Store(CartKey(id))
	red := &redirects{}
	opts := []checkoutapp.Option{
		checkoutapp.WithRedirector(red),
		checkoutapp.WithDebtPage(s.debtPage),
	}
	if s.events != nil {
		opts = append(opts, checkoutapp.WithEvents(s.events))
	}
	sess := &Session{
		ID:        id,
		Cart:      store,
		Checkout:  checkoutapp.NewOrchestrator(s.log, store, s.orders, s.payments, opts...),
		redirects: red,
		lastSeen:  s.now(),
	}
	s.byID[id] = sess
	s.log.Debug("session opened", "session", id)
	return sess
}

// Lookup returns the session for id only if it is already open.
func (s *Sessions) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	return sess, ok
}

// Cart reads the session's cart without opening a session for it.
func (s *Sessions) Cart(ctx context.Context, id string) cart.Cart {
	if sess, ok := s.touch(id); ok {
		return sess.Cart.Get(ctx)
	}
	return s.registry.Peek(ctx, CartKey(id))
}

// Status reports the checkout of an open session; any other session is
// reviewing its cart.
func (s *Sessions) Status(id string) checkoutapp.Status {
	if sess, ok := s.touch(id); ok {
		return sess.Checkout.Status()
	}
	return checkoutapp.Status{State: checkoutdomain.StateReviewing}
}

func (s *Sessions) touch(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if ok {
		sess.lastSeen = s.now()
	}
	return sess, ok
}

// Evict forgets sessions unused for longer than idle. Sessions with a payment
// in flight or an open cart stream are kept. Their carts stay in storage.
func (s *Sessions) Evict(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-idle)
	n := 0
	for id, sess := range s.byID {
		if sess.lastSeen.After(cutoff) {
			continue
		}
		if sess.Checkout.State().GuardsNavigation() || sess.Cart.Subscribers() > 0 {
			continue
		}
		delete(s.byID, id)
		s.registry.Forget(CartKey(id))
		n++
	}
	return n
}

// RunEviction calls Evict every interval until ctx is done.
func (s *Sessions) RunEviction(ctx context.Context, interval, idle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Evict(idle); n > 0 {
				s.log.Info("idle sessions evicted", "count", n, "open", s.Len())
			}
		}
	}
}

// PaymentSucceeded completes the checkout of an open session. An unknown
// session has no attempt this process could complete.
func (s *Sessions) PaymentSucceeded(ctx context.Context, id, clientSecret string) error {
	sess, ok := s.Lookup(id)
	if !ok {
		return fmt.Errorf("session %q: %w", id, checkoutapp.ErrNoPendingPayment)
	}
	return sess.Checkout.PaymentSucceeded(ctx, clientSecret)
}

// Logout empties and unlocks the session's cart and forgets the session.
func (s *Sessions) Logout(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()

	key := CartKey(id)
	err := s.registry.Store(key).Reset(ctx)
	s.registry.Forget(key)
	if err != nil {
		s.log.Error("logout reset failed", "session", id, "err", err)
		return err
	}
	s.log.Info("session logged out", "session", id)
	return nil
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
