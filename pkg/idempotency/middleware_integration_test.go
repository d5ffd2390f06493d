//go:build integration

package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/portal-cart/test/intergration"
)

func TestSeen(t *testing.T) {
	ctx := context.Background()
	opts, err := redis.ParseURL(intergration.Redis(t))
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	s := NewStore(rdb, time.Minute)
	key := s.Key("payment-succeeded", "pi_1_secret")
	assert.Equal(t, "idem:payment-succeeded:pi_1_secret", key)

	seen, err := s.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = s.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, s.Release(ctx, key))
	seen, err = s.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)
}
