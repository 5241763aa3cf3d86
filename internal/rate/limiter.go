// Package rate caps how often an owner may trigger mutating actions.
package rate

import (
	"sync"
	"time"
)

type Limiter interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration)
}

// MutationKey is the limiter key for an owner's mutating requests.
func MutationKey(owner string) string {
	return "mutate:" + owner
}

// Nop allows everything.
type Nop struct{}

func (Nop) Allow(string, int, time.Duration) (bool, time.Duration) { return true, 0 }

// pruneAt is the window count above which expired windows are dropped.
const pruneAt = 1024

// MemoryLimiter counts requests per key in fixed windows. Owners come and go
// with their cookies, so expired windows are pruned once the map grows.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	used    int
	resetAt time.Time
	length  time.Duration
}

func NewMemory() *MemoryLimiter {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock is NewMemory with a custom time source.
func NewMemoryWithClock(now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*window), now: now}
}

// Allow records one request for key. It reports whether the request fits in
// the current window and how long until that window resets. A limit of zero
// or less disables the check.
func (m *MemoryLimiter) Allow(key string, limit int, length time.Duration) (bool, time.Duration) {
	if limit <= 0 {
		return true, 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) || w.length != length {
		if len(m.windows) >= pruneAt {
			m.pruneLocked(now)
		}
		w = &window{resetAt: now.Add(length), length: length}
		m.windows[key] = w
	}

	if w.used >= limit {
		return false, w.resetAt.Sub(now)
	}
	w.used++
	return true, w.resetAt.Sub(now)
}

// Len returns the number of tracked windows.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func (m *MemoryLimiter) pruneLocked(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}
}
