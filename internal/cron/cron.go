// Package cron runs periodic housekeeping: idle session pruning, rate
// limiter bookkeeping and transcript retention.
package cron

import "context"

// Job is a periodic background task.
type Job interface {
	// Name uniquely identifies the job.
	Name() string

	// Schedule is a 5-field cron expression or a descriptor such as
	// "@every 30s".
	Schedule() string

	// Run executes one tick. It should return promptly once ctx is done.
	Run(ctx context.Context) error
}
