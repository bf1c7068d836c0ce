// Package ratelimit implements a sliding-window per-peer admission limiter
// with bounded memory.
package ratelimit

import (
	"sync"
	"time"
)

// cleanupFactor triggers a full sweep once the total timestamp count exceeds
// size*cleanupFactor, keeping memory bounded under address churn.
const cleanupFactor = 100

// Limiter tracks connection-open timestamps per key. A single mutex guards
// the mapping; all operations are O(1) amortized.
type Limiter struct {
	mu       sync.Mutex
	entries  map[string][]time.Time
	duration time.Duration
	size     int
	total    int

	now func() time.Time // overridable for tests
}

// New creates a limiter allowing size connections per key within duration.
func New(duration time.Duration, size int) *Limiter {
	return &Limiter{
		entries:  make(map[string][]time.Time),
		duration: duration,
		size:     size,
		now:      time.Now,
	}
}

// Allow records an arrival for key and reports whether it is admitted.
// The decision precedes any protocol I/O on the connection.
func (l *Limiter) Allow(key string) bool {
	if l.size < 1 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket := l.entries[key]

	// purge timestamps outside the window
	kept := 0
	for _, t := range bucket {
		if now.Sub(t) <= l.duration {
			bucket[kept] = t
			kept++
		}
	}
	l.total -= len(bucket) - kept
	bucket = bucket[:kept]

	if len(bucket) >= l.size {
		l.entries[key] = bucket
		return false
	}

	l.entries[key] = append(bucket, now)
	l.total++

	if l.total > l.size*cleanupFactor {
		l.cleanupLocked(now)
	}
	return true
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) cleanupLocked(now time.Time) {
	for key, bucket := range l.entries {
		kept := 0
		for _, t := range bucket {
			if now.Sub(t) <= l.duration {
				bucket[kept] = t
				kept++
			}
		}
		l.total -= len(bucket) - kept
		if kept == 0 {
			delete(l.entries, key)
			continue
		}
		l.entries[key] = bucket[:kept]
	}
}

// Sweep trims expired entries; intended for an idle background ticker.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanupLocked(l.now())
}
