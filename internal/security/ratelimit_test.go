package security

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(cfg RateLimitConfig) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(cfg)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_Burst(t *testing.T) {
	t.Parallel()

	rl, _ := newTestLimiter(RateLimitConfig{PerMinute: 60, Burst: 3})
	for i := range 3 {
		if err := rl.Allow("1.2.3.4"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if err := rl.Allow("1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if err := rl.Allow("5.6.7.8"); err != nil {
		t.Errorf("other client limited: %v", err)
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	t.Parallel()

	rl, now := newTestLimiter(RateLimitConfig{PerMinute: 60, Burst: 1})
	if err := rl.Allow("c"); err != nil {
		t.Fatal(err)
	}
	if err := rl.Allow("c"); err == nil {
		t.Fatal("expected limit")
	}
	*now = now.Add(time.Second)
	if err := rl.Allow("c"); err != nil {
		t.Errorf("after refill: %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{})
	if rl.Enabled() {
		t.Fatal("zero config should disable the limiter")
	}
	for range 1000 {
		if err := rl.Allow("c"); err != nil {
			t.Fatal(err)
		}
	}
	if rl.Clients() != 0 {
		t.Errorf("disabled limiter tracked %d clients", rl.Clients())
	}

	var nilLimiter *RateLimiter
	if err := nilLimiter.Allow("c"); err != nil {
		t.Errorf("nil limiter: %v", err)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	t.Parallel()

	rl, now := newTestLimiter(RateLimitConfig{PerMinute: 10})
	_ = rl.Allow("old")
	*now = now.Add(20 * time.Minute)
	_ = rl.Allow("new")

	if n := rl.Sweep(10 * time.Minute); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
	if rl.Clients() != 1 {
		t.Errorf("Clients = %d, want 1", rl.Clients())
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{PerMinute: 6000, Burst: 50})
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("shared") == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed < 50 || allowed > 60 {
		t.Errorf("allowed = %d, want about 50", allowed)
	}
}
