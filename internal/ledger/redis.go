package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/redis"
)

// Redis keeps the ledger in Redis so several hosts can share it. Each entry
// is stored as prefix+id with the version as its value.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) Seen(ctx context.Context, id, version string) (bool, error) {
	if version == "" {
		return false, nil
	}
	stored, err := r.client.Get(ctx, r.prefix+id)
	if redis.IsNilError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading ledger key for %s: %w", id, err)
	}
	return stored == version, nil
}

func (r *Redis) Mark(ctx context.Context, id, version string) error {
	if err := r.client.Set(ctx, r.prefix+id, version, r.ttl); err != nil {
		return fmt.Errorf("writing ledger key for %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Reset(ctx context.Context) error {
	if _, err := r.client.FlushByPattern(ctx, r.prefix+"*"); err != nil {
		return fmt.Errorf("clearing ledger: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

func (r *Redis) Close() error {
	return r.client.Close()
}
