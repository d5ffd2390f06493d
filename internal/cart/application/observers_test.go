package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserversNotifiedOncePerMutation(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var header, dropdown int
	unsubHeader := s.Subscribe(func() { header++ })
	s.Subscribe(func() { dropdown++ })

	require.NoError(t, s.Add(ctx, coke()))
	require.NoError(t, s.Add(ctx, coke()))
	hash := s.Get(ctx).Items[0].DuplicateHash
	require.NoError(t, s.AdjustQuantity(ctx, hash, -1))
	assert.Equal(t, 3, header)
	assert.Equal(t, 3, dropdown)

	unsubHeader()
	unsubHeader()
	require.NoError(t, s.Remove(ctx, hash))
	assert.Equal(t, 3, header)
	assert.Equal(t, 4, dropdown)
}

func TestObserversSkipRejectedMutations(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	calls := 0
	s.Subscribe(func() { calls++ })

	require.NoError(t, s.SetLocked(ctx, true))
	assert.Equal(t, 1, calls)

	_ = s.Add(ctx, coke())
	_ = s.Clear(ctx)
	require.NoError(t, s.SetLocked(ctx, true))
	assert.Equal(t, 1, calls)
}

func TestObserverSeesPersistedState(t *testing.T) {
	ctx := context.Background()
	s, st := newStore(t)

	var seen int
	s.Subscribe(func() {
		// Callbacks run after the store lock is released, so reading is safe.
		seen = len(s.Get(ctx).Items)
		assert.Len(t, persisted(t, st).Items, seen)
	})
	require.NoError(t, s.Add(ctx, coke()))
	assert.Equal(t, 1, seen)
}

func TestObserversOrder(t *testing.T) {
	var o Observers
	var got []string
	o.Subscribe(func() { got = append(got, "badge") })
	unsub := o.Subscribe(func() { got = append(got, "slide-over") })
	o.Subscribe(func() { got = append(got, "checkout") })
	unsub()
	assert.Equal(t, 2, o.Len())

	o.Notify()
	assert.Equal(t, []string{"badge", "checkout"}, got)
}
