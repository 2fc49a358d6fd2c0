package security

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a client exceeds its request budget.
var ErrRateLimited = errors.New("security: rate limit exceeded")

// RateLimitConfig bounds how often one client may start a chat turn.
type RateLimitConfig struct {
	// PerMinute is the sustained rate. Zero disables limiting.
	PerMinute int `yaml:"per_minute"`

	// Burst is the number of requests allowed back to back. Defaults to
	// PerMinute.
	Burst int `yaml:"burst"`
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter from cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.PerMinute
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(cfg.PerMinute) / 60.0),
		burst:   burst,
		now:     time.Now,
	}
}

// Enabled reports whether the limiter restricts anything.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.burst > 0
}

// Allow consumes one token from key's bucket. It returns ErrRateLimited
// when the bucket is empty.
func (rl *RateLimiter) Allow(key string) error {
	if !rl.Enabled() {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now

	if !c.lim.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

// Sweep forgets clients not seen for longer than maxIdle and returns how
// many were dropped.
func (rl *RateLimiter) Sweep(maxIdle time.Duration) int {
	if !rl.Enabled() {
		return 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	n := 0
	for key, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			n++
		}
	}
	return n
}

// Clients returns the number of tracked client keys.
func (rl *RateLimiter) Clients() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
