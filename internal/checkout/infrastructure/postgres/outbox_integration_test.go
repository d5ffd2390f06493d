//go:build integration

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/portal-cart/internal/checkout/domain"
	"github.com/dmehra2102/portal-cart/test/intergration"
)

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, intergration.Postgres(t))
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, EnsureSchema(ctx, pool))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := NewPublisher(log, pool)
	store := NewOutboxStore(log, pool, 2)

	require.NoError(t, pub.Publish(ctx, domain.Event{Type: domain.EventSubmitted, CartKey: "cart:alice", State: domain.StateSubmitting}))
	require.NoError(t, pub.Publish(ctx, domain.Event{Type: domain.EventFailed, CartKey: "cart:alice", State: domain.StateFailed, Reason: "closed"}))

	batch, err := store.LockBatch(ctx, "relay-a", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "cart:alice", batch[0].AggregateID)
	assert.Equal(t, "checkout.submitted", batch[0].Type)
	assert.Equal(t, "portal-cart", batch[0].Headers["source"])

	again, err := store.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, store.ExtendLease(ctx, "relay-a", []int64{batch[1].ID}, time.Minute))
	require.NoError(t, store.MarkSent(ctx, []int64{batch[0].ID}))
	require.NoError(t, store.MarkFailed(ctx, batch[1].ID, "broker down"))

	retry, err := store.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, batch[1].ID, retry[0].ID)
	assert.Equal(t, 1, retry[0].RetryCount)

	require.NoError(t, store.MarkFailed(ctx, retry[0].ID, "broker down"))
	final, err := store.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, final)
}
