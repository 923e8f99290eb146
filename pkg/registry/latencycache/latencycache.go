// Package latencycache implements registry.Cache over Redis, so latency
// history (and therefore the adaptive-timeout computation) converges faster
// when several orchestrator processes share one cluster, rather than each
// process cold-starting its own per-provider history.
package latencycache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/cloudmesh/pipeline/pkg/logging"
	"github.com/cloudmesh/pipeline/pkg/types"
)

const (
	keyPrefix  = "cloudmesh:latency:"
	maxEntries = 100
)

// Cache is a Redis-backed implementation of registry.Cache. Each provider's
// samples are kept in a capped Redis list, newest at the head.
type Cache struct {
	client *redis.Client
	logger *logging.Logger
}

// New connects to a Redis instance at addr ("host:port") and returns a Cache.
// A failure to reach Redis is not fatal here — callers that want
// connectivity at construction time should call Ping themselves; New alone
// only builds the client.
func New(addr string, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		logger: logger,
	}
}

// Ping verifies connectivity, surfacing configuration mistakes (bad address,
// auth failure) at startup rather than on the first probe cycle.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) key(provider types.Provider) string {
	return keyPrefix + string(provider)
}

// RecordLatency pushes a new sample onto the provider's list and trims it to
// maxEntries, logging (not failing) on a Redis error since the cache is an
// optimization, not a correctness requirement — the in-process
// latencyHistory remains authoritative.
func (c *Cache) RecordLatency(ctx context.Context, provider types.Provider, ms float64) {
	key := c.key(provider)
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, key, fmt.Sprintf("%.3f", ms))
	pipe.LTrim(ctx, key, 0, maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("latency cache write failed", "provider", provider, "error", err)
	}
}

// RecentLatencies returns the provider's cached samples, oldest first. A
// Redis error yields an empty slice rather than propagating, matching
// RecordLatency's degrade-gracefully behavior.
func (c *Cache) RecentLatencies(ctx context.Context, provider types.Provider) []float64 {
	raw, err := c.client.LRange(ctx, c.key(provider), 0, -1).Result()
	if err != nil {
		c.logger.Warn("latency cache read failed", "provider", provider, "error", err)
		return nil
	}

	out := make([]float64, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		v, err := strconv.ParseFloat(raw[i], 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
