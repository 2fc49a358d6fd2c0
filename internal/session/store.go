package session

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/flemzord/agentchat/internal/agent"
	"github.com/google/uuid"
)

// OverflowPolicy decides what Create does when the store is still full
// after the idle sweep.
type OverflowPolicy string

// Overflow policies.
const (
	// OverflowEvictOldest evicts the least-recently-active session.
	// Ties go to the lowest creation time, then the lowest id.
	OverflowEvictOldest OverflowPolicy = "evict_oldest"

	// OverflowReject fails Create with ErrCapacity.
	OverflowReject OverflowPolicy = "reject"
)

// Defaults for Config.
const (
	DefaultMaxSessions = 100
	DefaultTimeout     = time.Hour
)

// Config bounds the Store.
type Config struct {
	// MaxSessions is the capacity that triggers a sweep on Create.
	MaxSessions int `yaml:"max_sessions"`

	// Timeout is the idle duration after which a session may be evicted.
	Timeout time.Duration `yaml:"timeout"`

	// Overflow applies when the sweep frees nothing.
	Overflow OverflowPolicy `yaml:"overflow"`
}

func (c *Config) defaults() {
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	if c.Timeout < 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Overflow == "" {
		c.Overflow = OverflowEvictOldest
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch c.Overflow {
	case "", OverflowEvictOldest, OverflowReject:
	default:
		return fmt.Errorf("session: unknown overflow policy %q", c.Overflow)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("session: max_sessions must not be negative")
	}
	return nil
}

// RemovalReason says why a session left the store.
type RemovalReason string

// Removal reasons.
const (
	RemovedDeleted  RemovalReason = "deleted"
	RemovedIdle     RemovalReason = "idle"
	RemovedOverflow RemovalReason = "overflow"
	RemovedShutdown RemovalReason = "shutdown"
)

// Observer receives store lifecycle notifications. Calls happen outside
// the store lock.
type Observer interface {
	SessionCreated(id string)
	SessionRemoved(id string, reason RemovalReason)
}

// Info is a point-in-time view of one session.
type Info struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	MessageCount int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a concurrency-safe, in-memory mapping from session id to
// Session. Structural changes take the write lock; lookups take the read
// lock and stamp last activity while holding it, so a lookup never races
// an eviction of the same id. Agent invocations never run under the lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg      Config
	factory  agent.Factory
	logger   *slog.Logger
	observer Observer

	now   func() time.Time
	newID func() string
}

// NewStore creates an empty Store. factory builds the agent binding of
// each session on its first chat turn.
func NewStore(cfg Config, factory agent.Factory, opts ...Option) *Store {
	cfg.defaults()
	s := &Store{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		factory:  factory,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Create allocates a session and returns its id. When the store is at
// capacity, idle sessions are swept first; if it is still full the
// overflow policy applies.
func (s *Store) Create(_ context.Context) (string, error) {
	s.mu.Lock()

	var removed []*Session
	var reasons []RemovalReason

	if len(s.sessions) >= s.cfg.MaxSessions {
		for _, sess := range s.sweepLocked(s.cfg.Timeout) {
			removed = append(removed, sess)
			reasons = append(reasons, RemovedIdle)
		}
	}

	for len(s.sessions) >= s.cfg.MaxSessions {
		if s.cfg.Overflow == OverflowReject {
			s.mu.Unlock()
			s.finalize(removed, reasons)
			return "", ErrCapacity
		}
		victim := s.oldestLocked()
		delete(s.sessions, victim.ID)
		removed = append(removed, victim)
		reasons = append(reasons, RemovedOverflow)
	}

	id := s.uniqueIDLocked()
	s.sessions[id] = newSession(id, s.now(), s.factory)
	s.mu.Unlock()

	s.finalize(removed, reasons)
	s.logger.Info("session created", "session", id)
	if s.observer != nil {
		s.observer.SessionCreated(id)
	}
	return id, nil
}

// uniqueIDLocked guards against an id generator that repeats itself.
func (s *Store) uniqueIDLocked() string {
	for {
		id := s.newID()
		if _, taken := s.sessions[id]; !taken {
			return id
		}
	}
}

// Get returns the session and refreshes its last activity.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.touch(s.now())
	return sess, nil
}

// Delete removes the session and releases its agent. It reports whether
// the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.finalize([]*Session{sess}, []RemovalReason{RemovedDeleted})
	return true
}

// List returns a snapshot of every live session ordered by creation time,
// then id.
func (s *Store) List() []Info {
	s.mu.RLock()
	infos := make([]Info, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sess.mu.Lock()
		infos = append(infos, Info{
			ID:           sess.ID,
			CreatedAt:    sess.CreatedAt,
			LastActivity: sess.lastActivity,
			MessageCount: sess.history.Len(),
		})
		sess.mu.Unlock()
	}
	s.mu.RUnlock()

	slices.SortFunc(infos, func(a, b Info) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return infos
}

// History returns a copy of the session's history.
func (s *Store) History(id string) ([]Message, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.History(), nil
}

// ClearHistory empties the session's history and resets its agent's
// memory. It fails with ErrBusy while a chat turn is in flight.
func (s *Store) ClearHistory(id string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	release, err := sess.BeginTurn()
	if err != nil {
		return err
	}
	defer release()

	sess.clear()
	s.logger.Info("session history cleared", "session", id)
	return nil
}

// Prune evicts every session idle for longer than maxIdle and returns how
// many were removed. Sessions with a turn in flight are never idle.
func (s *Store) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	removed := s.sweepLocked(maxIdle)
	s.mu.Unlock()

	reasons := make([]RemovalReason, len(removed))
	for i := range reasons {
		reasons[i] = RemovedIdle
	}
	s.finalize(removed, reasons)
	return len(removed)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close removes every session and releases their agents.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	removed := make([]*Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		removed = append(removed, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	reasons := make([]RemovalReason, len(removed))
	for i := range reasons {
		reasons[i] = RemovedShutdown
	}
	s.finalize(removed, reasons)
	return ctx.Err()
}

// sweepLocked must be called with s.mu held for writing.
func (s *Store) sweepLocked(maxIdle time.Duration) []*Session {
	now := s.now()
	var removed []*Session
	for id, sess := range s.sessions {
		if sess.Busy() {
			continue
		}
		if now.Sub(sess.LastActivity()) > maxIdle {
			delete(s.sessions, id)
			removed = append(removed, sess)
		}
	}
	return removed
}

// oldestLocked must be called with s.mu held and a non-empty map. Idle
// sessions are preferred; a session with a turn in flight is chosen only
// when every session is busy.
func (s *Store) oldestLocked() *Session {
	var victim *Session
	var victimActive time.Time
	victimBusy := false
	for _, sess := range s.sessions {
		active := sess.LastActivity()
		busy := sess.Busy()
		switch {
		case victim == nil:
		case victimBusy && !busy:
		case busy && !victimBusy:
			continue
		case !olderThan(sess, active, victim, victimActive):
			continue
		}
		victim, victimActive, victimBusy = sess, active, busy
	}
	return victim
}

func olderThan(a *Session, aActive time.Time, b *Session, bActive time.Time) bool {
	if c := aActive.Compare(bActive); c != 0 {
		return c < 0
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

// finalize releases agents and notifies the observer. It must be called
// without s.mu held.
func (s *Store) finalize(removed []*Session, reasons []RemovalReason) {
	for i, sess := range removed {
		if err := sess.release(); err != nil {
			s.logger.Warn("failed to release agent", "session", sess.ID, "error", err)
		}
		s.logger.Info("session removed", "session", sess.ID, "reason", string(reasons[i]))
		if s.observer != nil {
			s.observer.SessionRemoved(sess.ID, reasons[i])
		}
	}
}
