package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Backend is one named provider inside a Failover.
type Backend struct {
	Name     string
	Provider Provider
	Health   HealthConfig
}

type backendEntry struct {
	Backend
	health *healthTracker
}

// FailoverOption configures optional Failover behavior.
type FailoverOption func(*Failover)

// WithLogger injects a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) FailoverOption {
	return func(f *Failover) { f.logger = l }
}

// Failover is a Provider that sends each request to the first available
// backend, in declaration order, moving to the next one on retryable
// errors. Backends that keep failing are put in cooldown and probed in
// the background until they recover.
type Failover struct {
	entries []*backendEntry
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Interface guard.
var _ Provider = (*Failover)(nil)

// NewFailover creates a Failover over the given backends.
func NewFailover(backends []Backend, opts ...FailoverOption) (*Failover, error) {
	if len(backends) == 0 {
		return nil, ErrNoProvider
	}

	f := &Failover{}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}

	for _, b := range backends {
		if b.Provider == nil {
			return nil, fmt.Errorf("%w: backend %q has nil provider", ErrNoProvider, b.Name)
		}
		e := &backendEntry{Backend: b, health: newHealthTracker(b.Health)}
		e.health.onStateChange = f.stateLogger(e)
		f.entries = append(f.entries, e)
	}
	return f, nil
}

func (f *Failover) stateLogger(e *backendEntry) func(from, to healthState) {
	return func(from, to healthState) {
		_, failures, backoff := e.health.snapshot()
		switch to {
		case stateCooldown:
			f.logger.Warn("provider entered cooldown", "provider", e.Name, "backoff", backoff, "failures", failures)
		case stateDead:
			f.logger.Error("provider marked dead", "provider", e.Name, "failures", failures)
		case stateHealthy:
			f.logger.Info("provider revived", "provider", e.Name, "previous_state", from.String())
		}
	}
}

// ModelName returns the model of the first backend.
func (f *Failover) ModelName() string {
	return f.entries[0].Provider.ModelName()
}

// Complete sends the request to the first available backend and fails
// over on retryable errors. Non-retryable errors are returned as is.
func (f *Failover) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var lastErr error
	for _, e := range f.entries {
		if err := ctx.Err(); err != nil {
			return CompletionResponse{}, err
		}
		if !e.health.available() {
			continue
		}

		resp, err := e.Provider.Complete(ctx, req)
		if err == nil {
			e.health.recordSuccess()
			return resp, nil
		}
		if !IsRetryable(err) {
			return CompletionResponse{}, err
		}

		lastErr = err
		e.health.recordFailure()
		f.logger.Warn("provider failed, failing over", "provider", e.Name, "error", err)
	}

	if lastErr != nil {
		return CompletionResponse{}, fmt.Errorf("%w: last error: %w", ErrAllProviders, lastErr)
	}
	return CompletionResponse{}, fmt.Errorf("%w: all backends unavailable", ErrAllProviders)
}

// Start launches the background health probe loop. It is a no-op when
// already started.
func (f *Failover) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		return
	}
	ctx, f.cancel = context.WithCancel(ctx)
	go f.probeLoop(ctx, f.probeInterval())
}

// Stop cancels the background health probes.
func (f *Failover) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

func (f *Failover) probeInterval() time.Duration {
	interval := f.entries[0].health.cfg.CheckInterval
	for _, e := range f.entries[1:] {
		interval = min(interval, e.health.cfg.CheckInterval)
	}
	return interval
}

func (f *Failover) probeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.probe(ctx)
		}
	}
}

func (f *Failover) probe(ctx context.Context) {
	for _, e := range f.entries {
		if !e.health.needsProbe() {
			continue
		}
		checker, ok := e.Provider.(HealthChecker)
		if !ok {
			continue
		}
		if err := checker.HealthCheck(ctx); err == nil {
			e.health.recordSuccess()
		}
	}
}

// BackendStatus is a point-in-time view of one backend's health.
type BackendStatus struct {
	Name      string        `json:"name"`
	Model     string        `json:"model"`
	State     string        `json:"state"`
	Available bool          `json:"available"`
	Failures  int           `json:"failures"`
	Backoff   time.Duration `json:"backoff_ns,omitempty"`
}

// Status reports every backend in failover order.
func (f *Failover) Status() []BackendStatus {
	out := make([]BackendStatus, 0, len(f.entries))
	for _, e := range f.entries {
		state, failures, backoff := e.health.snapshot()
		out = append(out, BackendStatus{
			Name:      e.Name,
			Model:     e.Provider.ModelName(),
			State:     state.String(),
			Available: e.health.available(),
			Failures:  failures,
			Backoff:   backoff,
		})
	}
	return out
}
