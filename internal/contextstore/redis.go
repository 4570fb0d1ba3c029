// SPDX-License-Identifier: MIT

package contextstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/pagestream/internal/fragment"
)

// DefaultRedisPrefix namespaces context keys.
const DefaultRedisPrefix = "pagestream:context:"

// Redis reads page contexts stored as msgpack blobs under prefix+path.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis returns a Redis source. An empty prefix uses DefaultRedisPrefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// Context returns the context stored for path.
func (r *Redis) Context(ctx context.Context, path string) (fragment.Context, error) {
	b, err := r.client.Get(ctx, r.prefix+path).Bytes()
	if errors.Is(err, redis.Nil) {
		return fragment.Context{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get context %s: %w", path, err)
	}
	return decode(b)
}

// Put stores c for path. A zero ttl keeps it until overwritten.
func (r *Redis) Put(ctx context.Context, path string, c fragment.Context, ttl time.Duration) error {
	b, err := encode(c)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+path, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set context %s: %w", path, err)
	}
	return nil
}

// HealthCheck pings the server.
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
