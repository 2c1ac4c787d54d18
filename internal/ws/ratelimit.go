package ws

import (
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between accepted execution requests
// from the same client. A client with no recorded entry is always admitted.
type RateLimiter struct {
	cooldown time.Duration
	mu       sync.Mutex
	last     map[string]time.Time
}

// NewRateLimiter creates a RateLimiter with the given cooldown.
func NewRateLimiter(cooldown time.Duration) *RateLimiter {
	return &RateLimiter{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
	}
}

// Admit reports whether a request from clientID at the given time is allowed.
// The lookup and the timestamp update are a single step under the lock, so
// two near-simultaneous requests from the same client cannot both pass.
// A rejected request does not mutate state.
func (l *RateLimiter) Admit(clientID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[clientID]; ok && now.Sub(last) < l.cooldown {
		return false
	}
	l.last[clientID] = now
	return true
}

// Forget removes the entry for clientID. Safe to call for unknown ids.
func (l *RateLimiter) Forget(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.last, clientID)
}

// Cooldown returns the configured minimum interval.
func (l *RateLimiter) Cooldown() time.Duration {
	return l.cooldown
}
