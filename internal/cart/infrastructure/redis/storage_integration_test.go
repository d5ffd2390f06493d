//go:build integration

package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/portal-cart/test/intergration"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	opts, err := redis.ParseURL(intergration.Redis(t))
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewStorage(log, newClient(t), time.Hour)

	raw, err := s.Load(ctx, "cart:missing")
	require.NoError(t, err)
	assert.Nil(t, raw)

	require.NoError(t, s.Save(ctx, "cart:alice", []byte(`{"cart":{}}`)))
	raw, err = s.Load(ctx, "cart:alice")
	require.NoError(t, err)
	assert.Equal(t, `{"cart":{}}`, string(raw))
}

func TestWatchSeesOtherInstances(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rdb := newClient(t)
	mine := NewStorage(log, rdb, time.Hour)
	theirs := NewStorage(log, rdb, time.Hour)

	keys := make(chan string, 4)
	go func() { _ = mine.Watch(ctx, func(key string) { keys <- key }) }()
	time.Sleep(500 * time.Millisecond)

	require.NoError(t, mine.Save(ctx, "cart:own", []byte(`{}`)))
	require.NoError(t, theirs.Save(ctx, "cart:alice", []byte(`{}`)))

	select {
	case k := <-keys:
		assert.Equal(t, "cart:alice", k)
	case <-ctx.Done():
		t.Fatal("no change notification")
	}
}
