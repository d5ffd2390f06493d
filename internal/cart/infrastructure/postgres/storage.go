package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const Schema = `
CREATE TABLE IF NOT EXISTS cart_snapshots (
	key        TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	saved_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type Storage struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStorage(log *slog.Logger, pool *pgxpool.Pool) *Storage {
	return &Storage{log: log, pool: pool}
}

func (s *Storage) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *Storage) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM cart_snapshots WHERE key=$1`, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Storage) Save(ctx context.Context, key string, payload []byte) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO cart_snapshots (key, payload, saved_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET payload=$2, saved_at=now()`,
		key, payload)
	return err
}
