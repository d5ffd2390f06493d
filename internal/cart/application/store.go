package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmehra2102/portal-cart/internal/cart/domain"
)

var (
	ErrLocked       = errors.New("cart: locked for checkout")
	ErrItemNotFound = errors.New("cart: item not found")
)

const DefaultKey = "cart"

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithSchemas(schemas domain.Schemas) Option {
	return func(s *Store) { s.schemas = schemas }
}

// Store is the only mutator of one cart. Every successful mutation is written
// through to storage before it returns, then observers are notified.
type Store struct {
	log       *slog.Logger
	storage   Storage
	key       string
	schemas   domain.Schemas
	now       func() time.Time
	observers Observers

	mu     sync.Mutex
	loaded bool
	cart   domain.Cart
}

func NewStore(log *slog.Logger, storage Storage, key string, opts ...Option) *Store {
	s := &Store{
		log:     log.With("cart_key", key),
		storage: storage,
		key:     key,
		schemas: domain.DefaultSchemas(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Key() string { return s.key }

func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	return s.observers.Subscribe(fn)
}

// Subscribers reports how many observers are attached.
func (s *Store) Subscribers() int { return s.observers.Len() }

// Get returns a copy of the current cart, loading it on first access.
func (s *Store) Get(ctx context.Context) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		s.log.Error("cart load failed", "err", err)
		return domain.NewCart()
	}
	return s.cart.Clone()
}

func (s *Store) Add(ctx context.Context, item domain.CartItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	payload, err := s.schemas.Normalize(item.Shop, item.SubmissionInformation)
	if err != nil {
		return err
	}
	item.SubmissionInformation = payload

	comps := make([]domain.ComponentSelection, len(item.Components))
	for i, c := range item.Components {
		if c.SubmissionInformation, err = normalizeComponent(c.SubmissionInformation); err != nil {
			return fmt.Errorf("%w: component %q: %v", domain.ErrInvalidItem, c.Name, err)
		}
		comps[i] = c
	}
	item.Components = comps

	hash, err := domain.DuplicateHash(item)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidItem, err)
	}
	item.DuplicateHash = hash

	return s.mutate(ctx, "add", false, func(c *domain.Cart) (bool, error) {
		if i := c.IndexOf(hash); i >= 0 {
			c.Items[i].Quantity += item.Quantity
			return true, nil
		}
		c.Items = append(c.Items, item)
		return true, nil
	})
}

// AdjustQuantity adds delta to the line's quantity; a result below 1 removes the line.
func (s *Store) AdjustQuantity(ctx context.Context, hash string, delta int) error {
	return s.mutate(ctx, "adjust_quantity", false, func(c *domain.Cart) (bool, error) {
		i := c.IndexOf(hash)
		if i < 0 {
			return false, ErrItemNotFound
		}
		if delta == 0 {
			return false, nil
		}
		q := c.Items[i].Quantity + delta
		if q <= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true, nil
		}
		c.Items[i].Quantity = q
		return true, nil
	})
}

func (s *Store) Remove(ctx context.Context, hash string) error {
	return s.mutate(ctx, "remove", false, func(c *domain.Cart) (bool, error) {
		i := c.IndexOf(hash)
		if i < 0 {
			return false, ErrItemNotFound
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true, nil
	})
}

// RemoveAllWithFilter drops every item matching pred in a single write and
// reports how many lines went.
func (s *Store) RemoveAllWithFilter(ctx context.Context, pred func(domain.CartItem) bool) (int, error) {
	removed := 0
	err := s.mutate(ctx, "remove_filtered", false, func(c *domain.Cart) (bool, error) {
		kept := c.Items[:0]
		for _, it := range c.Items {
			if pred(it) {
				removed++
				continue
			}
			kept = append(kept, it)
		}
		c.Items = kept
		return removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Clear empties items and discount codes. The lock flag is left alone.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, "clear", false, func(c *domain.Cart) (bool, error) {
		c.Items = []domain.CartItem{}
		c.DiscountCodes = []string{}
		return true, nil
	})
}

// ClearAndUnlock empties a locked cart and releases it in one write, so no
// observer ever sees the paid items unlocked.
func (s *Store) ClearAndUnlock(ctx context.Context) error {
	return s.mutate(ctx, "clear_unlock", true, func(c *domain.Cart) (bool, error) {
		c.Items = []domain.CartItem{}
		c.DiscountCodes = []string{}
		c.Locked = false
		return true, nil
	})
}

// SetLocked is always permitted. Setting the current value is a no-op.
func (s *Store) SetLocked(ctx context.Context, locked bool) error {
	return s.mutate(ctx, "set_locked", true, func(c *domain.Cart) (bool, error) {
		if c.Locked == locked {
			return false, nil
		}
		c.Locked = locked
		return true, nil
	})
}

// SetDeliveryInformation records the delivery intent. Required is re-derived from the items.
func (s *Store) SetDeliveryInformation(ctx context.Context, d domain.Delivery) error {
	if !d.Option.Valid() {
		return fmt.Errorf("%w: unknown delivery option %q", domain.ErrInvalidItem, d.Option)
	}
	return s.mutate(ctx, "set_delivery", false, func(c *domain.Cart) (bool, error) {
		c.Delivery = &d
		return true, nil
	})
}

// Reset discards the cart entirely and unlocks it, as on logout.
func (s *Store) Reset(ctx context.Context) error {
	return s.mutate(ctx, "reset", true, func(c *domain.Cart) (bool, error) {
		*c = domain.NewCart()
		return true, nil
	})
}

// Reload re-reads the durable snapshot, e.g. after another instance wrote it.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	c, err := s.read(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.cart = c
	s.loaded = true
	s.mu.Unlock()

	s.observers.Notify()
	return nil
}

func (s *Store) mutate(ctx context.Context, op string, allowLocked bool, fn func(c *domain.Cart) (bool, error)) error {
	s.mu.Lock()
	if err := s.ensureLoaded(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.cart.Locked && !allowLocked {
		s.mu.Unlock()
		s.log.Debug("mutation rejected", "op", op, "err", ErrLocked)
		return ErrLocked
	}

	next := s.cart.Clone()
	changed, err := fn(&next)
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	next.Normalize()
	if err := s.persist(ctx, &next); err != nil {
		s.mu.Unlock()
		s.log.Error("cart persist failed", "op", op, "err", err)
		return err
	}
	s.cart = next
	s.mu.Unlock()

	s.log.Debug("cart mutated", "op", op, "items", len(next.Items), "locked", next.Locked)
	s.observers.Notify()
	return nil
}

func (s *Store) persist(ctx context.Context, c *domain.Cart) error {
	now := s.now().UTC()
	raw, err := domain.EncodeSnapshot(*c, now)
	if err != nil {
		return err
	}
	if err := s.storage.Save(ctx, s.key, raw); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	c.SavedAt = now
	return nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	c, err := s.read(ctx)
	if err != nil {
		return err
	}
	s.cart = c
	s.loaded = true
	return nil
}

// read only fails when storage is unreachable; a missing or unreadable
// snapshot yields an empty cart.
func (s *Store) read(ctx context.Context) (domain.Cart, error) {
	raw, err := s.storage.Load(ctx, s.key)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart snapshot: %w", err)
	}
	if raw == nil {
		return domain.NewCart(), nil
	}
	c, err := domain.DecodeSnapshot(raw)
	if err != nil {
		s.log.Warn("discarding unreadable cart snapshot", "err", err)
		return domain.NewCart(), nil
	}
	return c, nil
}

func normalizeComponent(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("submission information is not valid JSON")
	}
	return raw, nil
}
