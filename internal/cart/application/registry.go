package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmehra2102/portal-cart/internal/cart/domain"
)

// Registry hands out exactly one Store per storage key, so every surface of a
// session shares the same in-memory cart and observers.
type Registry struct {
	log     *slog.Logger
	storage Storage
	opts    []Option

	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry(log *slog.Logger, storage Storage, opts ...Option) *Registry {
	return &Registry{
		log:     log,
		storage: storage,
		opts:    opts,
		stores:  make(map[string]*Store),
	}
}

func (r *Registry) Store(key string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[key]; ok {
		return s
	}
	s := NewStore(r.log, r.storage, key, r.opts...)
	r.stores[key] = s
	return s
}

// Lookup returns the store for key only if one was already created.
func (r *Registry) Lookup(key string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[key]
	return s, ok
}

// Peek reads the cart for key. Without a live store the snapshot is loaded
// into a throwaway one, so reads never grow the registry.
func (r *Registry) Peek(ctx context.Context, key string) domain.Cart {
	if s, ok := r.Lookup(key); ok {
		return s.Get(ctx)
	}
	return NewStore(r.log, r.storage, key, r.opts...).Get(ctx)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Forget drops the in-memory store for key. Its snapshot stays in storage.
func (r *Registry) Forget(key string) {
	r.mu.Lock()
	delete(r.stores, key)
	r.mu.Unlock()
}

// Refresh reloads the store for key if this process holds one.
func (r *Registry) Refresh(ctx context.Context, key string) {
	s, ok := r.Lookup(key)
	if !ok {
		return
	}
	if err := s.Reload(ctx); err != nil {
		r.log.Error("cart reload failed", "cart_key", key, "err", err)
	}
}
