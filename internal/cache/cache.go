// Package cache holds the disposable query cache. Nothing in it is
// authoritative: a miss or a cache failure always falls back to the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"workshop_backend/platform/logger"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented key/value cache with expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Fetch returns the cached value for key, or calls load and caches its result.
// Cache failures are logged and bypassed; load errors are returned unchanged.
func Fetch[T any](ctx context.Context, store Store, log *logger.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if store == nil {
		return load(ctx)
	}

	raw, err := store.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		} else {
			log.Degraded("cache decode "+key, jsonErr)
		}
	case !errors.Is(err, ErrMiss):
		log.Degraded("cache get "+key, err)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if err := Put(ctx, store, key, value, ttl); err != nil {
		log.Degraded("cache set "+key, err)
	}
	return value, nil
}

// Put encodes value as JSON and stores it under key.
func Put[T any](ctx context.Context, store Store, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return store.Set(ctx, key, raw, ttl)
}
