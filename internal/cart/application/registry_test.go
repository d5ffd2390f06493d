package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/portal-cart/internal/cart/infrastructure/memory"
)

func TestRegistrySharesStorePerKey(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(discard(), memory.NewStorage())

	header := r.Store("cart:alice")
	checkout := r.Store("cart:alice")
	other := r.Store("cart:bob")
	assert.Same(t, header, checkout)
	assert.NotSame(t, header, other)

	notified := 0
	header.Subscribe(func() { notified++ })
	require.NoError(t, checkout.Add(ctx, coke()))
	assert.Equal(t, 1, notified)
	assert.True(t, other.Get(ctx).IsEmpty())

	_, ok := r.Lookup("cart:carol")
	assert.False(t, ok)

	r.Forget("cart:alice")
	again := r.Store("cart:alice")
	assert.NotSame(t, header, again)
	assert.Len(t, again.Get(ctx).Items, 1)
}

func TestRegistryPeekDoesNotRegister(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(discard(), memory.NewStorage())

	assert.True(t, r.Peek(ctx, "cart:alice").IsEmpty())
	assert.Zero(t, r.Len())

	s := r.Store("cart:alice")
	require.NoError(t, s.Add(ctx, coke()))
	r.Forget("cart:alice")

	assert.Equal(t, 1, r.Peek(ctx, "cart:alice").ItemCount())
	assert.Zero(t, r.Len())
}
