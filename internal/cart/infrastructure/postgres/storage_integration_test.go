//go:build integration

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/portal-cart/test/intergration"
)

func TestStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, intergration.Postgres(t))
	require.NoError(t, err)
	defer pool.Close()

	s := NewStorage(slog.New(slog.NewTextHandler(io.Discard, nil)), pool)
	require.NoError(t, s.EnsureSchema(ctx))

	raw, err := s.Load(ctx, "cart:missing")
	require.NoError(t, err)
	assert.Nil(t, raw)

	require.NoError(t, s.Save(ctx, "cart:alice", []byte(`{"cart":{"locked":false}}`)))
	require.NoError(t, s.Save(ctx, "cart:alice", []byte(`{"cart":{"locked":true}}`)))

	raw, err = s.Load(ctx, "cart:alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cart":{"locked":true}}`, string(raw))
}
