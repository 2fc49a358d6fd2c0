package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pruner drops sessions idle longer than maxIdle.
type Pruner interface {
	Prune(maxIdle time.Duration) int
}

// SessionCleanupJob prunes idle sessions between requests, so that
// expiry does not depend on traffic reaching the store.
type SessionCleanupJob struct {
	Store        Pruner
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // default "*/5 * * * *"
}

var _ Job = (*SessionCleanupJob)(nil)

// Name implements Job.
func (j *SessionCleanupJob) Name() string { return "session_cleanup" }

// Schedule implements Job.
func (j *SessionCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run implements Job.
func (j *SessionCleanupJob) Run(_ context.Context) error {
	if n := j.Store.Prune(j.MaxIdle); n > 0 {
		j.Logger.Info("pruned idle sessions", "count", n, "max_idle", j.MaxIdle)
	}
	return nil
}

// Sweeper forgets per-client state unused for longer than maxIdle.
type Sweeper interface {
	Sweep(maxIdle time.Duration) int
}

// RateLimitSweepJob bounds the rate limiter's client table.
type RateLimitSweepJob struct {
	Limiter      Sweeper
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // default "*/10 * * * *"
}

var _ Job = (*RateLimitSweepJob)(nil)

// Name implements Job.
func (j *RateLimitSweepJob) Name() string { return "ratelimit_sweep" }

// Schedule implements Job.
func (j *RateLimitSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run implements Job.
func (j *RateLimitSweepJob) Run(_ context.Context) error {
	if n := j.Limiter.Sweep(j.MaxIdle); n > 0 {
		j.Logger.Debug("forgot idle rate limit clients", "count", n)
	}
	return nil
}

// Purger deletes archived exchanges completed before a cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TranscriptRetentionJob deletes archived exchanges older than Retention.
type TranscriptRetentionJob struct {
	Archive      Purger
	Retention    time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // default "0 * * * *"
	Now          func() time.Time
}

var _ Job = (*TranscriptRetentionJob)(nil)

// Name implements Job.
func (j *TranscriptRetentionJob) Name() string { return "transcript_retention" }

// Schedule implements Job.
func (j *TranscriptRetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run implements Job.
func (j *TranscriptRetentionJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	n, err := j.Archive.PurgeBefore(ctx, now().Add(-j.Retention))
	if err != nil {
		return fmt.Errorf("cron: transcript retention: %w", err)
	}
	if n > 0 {
		j.Logger.Info("purged archived exchanges", "count", n, "retention", j.Retention)
	}
	return nil
}
