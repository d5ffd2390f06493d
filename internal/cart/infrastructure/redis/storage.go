package redis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const changedPrefix = "cart:changed:"

// Storage keeps cart snapshots in Redis and announces every save on a
// per-key channel so other instances sharing the key can reload.
type Storage struct {
	log    *slog.Logger
	rdb    *redis.Client
	ttl    time.Duration
	origin string
}

func NewStorage(log *slog.Logger, rdb *redis.Client, ttl time.Duration) *Storage {
	return &Storage{
		log:    log,
		rdb:    rdb,
		ttl:    ttl,
		origin: uuid.NewString(),
	}
}

func (s *Storage) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Storage) Save(ctx context.Context, key string, payload []byte) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, payload, s.ttl)
		p.Publish(ctx, changedPrefix+key, s.origin)
		return nil
	})
	return err
}

// Watch calls onChange with the key of every snapshot saved by another
// instance. It blocks until ctx is done.
func (s *Storage) Watch(ctx context.Context, onChange func(key string)) error {
	sub := s.rdb.PSubscribe(ctx, changedPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Payload == s.origin {
				continue
			}
			key := strings.TrimPrefix(msg.Channel, changedPrefix)
			s.log.Debug("cart changed elsewhere", "cart_key", key)
			onChange(key)
		}
	}
}
