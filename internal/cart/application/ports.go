package application

import "context"

// Storage holds durable cart snapshots as opaque JSON blobs.
// Load returns (nil, nil) when no snapshot exists under key.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
}
