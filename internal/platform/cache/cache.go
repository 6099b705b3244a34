// Package cache provides a small key/value cache with Redis and in-memory
// backends, plus JSON read-through helpers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Clear removes every key matching a trailing-* pattern.
	Clear(ctx context.Context, pattern string) error
	Close() error
}

// Key joins parts with ':' under the service prefix.
func Key(parts ...string) string {
	k := "telemed"
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Remember returns the cached JSON value for key, or calls load, stores its
// result for ttl and returns it. Cache failures fall through to load.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var out T
	if raw, err := c.Get(ctx, key); err == nil {
		if err := json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
	}

	out, err := load(ctx)
	if err != nil {
		return out, err
	}
	if raw, err := json.Marshal(out); err == nil {
		_ = c.Set(ctx, key, raw, ttl)
	}
	return out, nil
}

// SetJSON stores v encoded as JSON.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return c.Set(ctx, key, raw, ttl)
}
