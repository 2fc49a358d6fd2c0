package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler errors.
var (
	ErrUnknownJob = errors.New("cron: unknown job")
	ErrJobRunning = errors.New("cron: job already running")
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a job schedule expression.
func ParseSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// JobStatus describes a registered job.
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Running  bool      `json:"running"`
	Next     time.Time `json:"next,omitzero"`
	LastRun  time.Time `json:"last_run,omitzero"`
	LastErr  string    `json:"last_error,omitempty"`
}

type entry struct {
	job     Job
	lock    sync.Mutex
	id      cron.EntryID
	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// Scheduler runs registered jobs on their schedules. A job never runs
// concurrently with itself; a tick that finds it still running is skipped.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries []*entry
	byName  map[string]*entry
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		byName: make(map[string]*entry),
		logger: logger.With("component", "cron"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJob adds j. Names must be unique.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	e := &entry{job: j}
	s.byName[name] = e
	s.entries = append(s.entries, e)
	return nil
}

// Start schedules every registered job. An invalid schedule aborts Start
// and nothing runs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cron.New(cron.WithParser(parser))
	for _, e := range s.entries {
		id, err := c.AddFunc(e.job.Schedule(), func() { s.tick(e) })
		if err != nil {
			return fmt.Errorf("cron: invalid schedule for job %q: %w", e.job.Name(), err)
		}
		e.id = id
	}

	s.cron = c
	c.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop cancels running jobs and waits for them to return, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	s.cancel()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs the named job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !e.lock.TryLock() {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	defer e.lock.Unlock()
	return s.run(ctx, e)
}

// Status returns every job in registration order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	entries := slices.Clone(s.entries)
	c := s.cron
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(entries))
	for _, e := range entries {
		st := JobStatus{Name: e.job.Name(), Schedule: e.job.Schedule()}
		if e.lock.TryLock() {
			e.lock.Unlock()
		} else {
			st.Running = true
		}
		if c != nil {
			st.Next = c.Entry(e.id).Next
		}
		e.mu.Lock()
		st.LastRun = e.lastRun
		if e.lastErr != nil {
			st.LastErr = e.lastErr.Error()
		}
		e.mu.Unlock()
		out = append(out, st)
	}
	return out
}

func (s *Scheduler) tick(e *entry) {
	if !e.lock.TryLock() {
		s.logger.Warn("job still running, skipping tick", "job", e.job.Name())
		return
	}
	defer e.lock.Unlock()
	_ = s.run(s.ctx, e)
}

func (s *Scheduler) run(ctx context.Context, e *entry) error {
	start := time.Now()
	err := e.job.Run(ctx)

	e.mu.Lock()
	e.lastRun = start
	e.lastErr = err
	e.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", e.job.Name(), "error", err)
		return err
	}
	s.logger.Debug("job completed", "job", e.job.Name(), "duration", time.Since(start))
	return nil
}
