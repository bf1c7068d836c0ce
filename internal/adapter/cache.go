package adapter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// statusCache coalesces concurrent upstream fetches behind a single-flight
// group and keeps the last successful value. N concurrent callers trigger at
// most one upstream call; on upstream failure the previous value is served
// while one exists.
type statusCache struct {
	ttl   time.Duration
	fetch func(ctx context.Context) (*ServerStatus, error)

	group singleflight.Group

	mu      sync.Mutex
	value   *ServerStatus
	fetched time.Time
}

func newStatusCache(ttl time.Duration, fetch func(ctx context.Context) (*ServerStatus, error)) *statusCache {
	return &statusCache{ttl: ttl, fetch: fetch}
}

func (c *statusCache) get(ctx context.Context) (*ServerStatus, error) {
	c.mu.Lock()
	if c.value != nil && time.Since(c.fetched) <= c.ttl {
		value := c.value
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("status", func() (any, error) {
		status, err := c.fetch(ctx)
		if err != nil {
			c.mu.Lock()
			stale := c.value
			c.mu.Unlock()
			if stale != nil {
				slog.Warn("status fetch failed, serving cached value", "err", err)
				return stale, nil
			}
			return nil, err
		}

		c.mu.Lock()
		c.value = status
		c.fetched = time.Now()
		c.mu.Unlock()
		return status, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ServerStatus), nil
}
