package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreStatus reads the status body from a Redis key, typically maintained by
// the backend fleet itself. Same cache discipline as the HTTP variant.
type StoreStatus struct {
	rdb   *redis.Client
	key   string
	cache *statusCache
}

func NewStoreStatus(rdb *redis.Client, key string, ttl time.Duration) *StoreStatus {
	s := &StoreStatus{rdb: rdb, key: key}
	s.cache = newStatusCache(ttl, s.fetch)
	return s
}

func (s *StoreStatus) Status(ctx context.Context, _ Request) (*ServerStatus, error) {
	return s.cache.get(ctx)
}

func (s *StoreStatus) fetch(ctx context.Context) (*ServerStatus, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("reading status key %q: %w", s.key, err)
	}

	var status ServerStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decoding status key %q: %w", s.key, err)
	}
	return &status, nil
}
