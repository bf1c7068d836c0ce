package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPStatus fetches the status body from an upstream HTTP endpoint with a
// TTL cache and single-flight coalescing.
type HTTPStatus struct {
	url   string
	http  *http.Client
	cache *statusCache
}

func NewHTTPStatus(url string, ttl time.Duration) *HTTPStatus {
	s := &HTTPStatus{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
	s.cache = newStatusCache(ttl, s.fetch)
	return s
}

func (s *HTTPStatus) Status(ctx context.Context, _ Request) (*ServerStatus, error) {
	return s.cache.get(ctx)
}

func (s *HTTPStatus) fetch(ctx context.Context) (*ServerStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building status request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching status from %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var status ServerStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding status body: %w", err)
	}
	return &status, nil
}
