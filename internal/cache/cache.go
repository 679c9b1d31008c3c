// Package cache provides the read-through cache in front of list/aggregate
// queries. Caching here is a performance optimization, never a correctness
// dependency: a failing backend degrades to computing directly, while
// invalidation after a write is always attempted and logged on failure.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"clearclaim/internal/platform/metrics"
)

// Backend is the raw byte store underneath the cache. Implementations must
// honor the context deadline on every call.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Cache wraps a backend with JSON codec, degradation, and metrics.
type Cache struct {
	backend Backend
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(backend Backend, logger *slog.Logger, m *metrics.Metrics) *Cache {
	return &Cache{backend: backend, logger: logger, metrics: m}
}

// Wrap returns the cached value for key, or invokes compute, stores the result
// under key with the given TTL, and returns it. Backend failures on the read
// path fall through to compute; failures storing the result are logged and the
// computed value is returned anyway.
func Wrap[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	data, found, err := c.backend.Get(ctx, key)
	if err != nil {
		c.bypass(ctx, "cache read failed", key, err)
	} else if found {
		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			// A corrupt entry is treated as a miss; it will be overwritten.
			c.bypass(ctx, "cache entry corrupt", key, err)
		} else {
			if c.metrics != nil {
				c.metrics.CacheHits.Inc()
			}
			return value, nil
		}
	} else if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	value, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	if data, err := json.Marshal(value); err == nil {
		if err := c.backend.Set(ctx, key, data, ttl); err != nil {
			c.logger.WarnContext(ctx, "cache store failed", "key", key, "error", err)
		}
	}
	return value, nil
}

// InvalidatePrefix removes every entry under the prefix. Callers treat this as
// best-effort after a successful write: the error is surfaced for logging, not
// for failing the governing operation.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	return c.backend.DeletePrefix(ctx, prefix)
}

func (c *Cache) bypass(ctx context.Context, msg, key string, err error) {
	if c.metrics != nil {
		c.metrics.CacheBypasses.Inc()
	}
	c.logger.WarnContext(ctx, msg, "key", key, "error", err)
}
