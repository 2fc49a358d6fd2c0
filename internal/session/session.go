package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/agentchat/internal/agent"
)

// Session is one server-held conversation. The Store owns every Session;
// callers re-fetch by id rather than keeping references across requests.
type Session struct {
	ID        string
	CreatedAt time.Time

	// turn is held for the whole of one chat turn or clear.
	turn sync.Mutex
	busy atomic.Bool

	mu           sync.Mutex
	lastActivity time.Time
	history      History
	agent        agent.Binding
	factory      agent.Factory
}

func newSession(id string, now time.Time, factory agent.Factory) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now,
		lastActivity: now,
		factory:      factory,
	}
}

// LastActivity returns the time of the most recent lookup or mutation.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastActivity) {
		s.lastActivity = now
	}
}

// BeginTurn claims the session for one chat turn. It returns ErrBusy when
// another turn holds it. The returned func releases the claim.
func (s *Session) BeginTurn() (func(), error) {
	if !s.turn.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrBusy, s.ID)
	}
	s.busy.Store(true)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.busy.Store(false)
			s.turn.Unlock()
		})
	}, nil
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Append records m in the history.
func (s *Session) Append(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Append(m)
}

// History returns a copy of the conversation history.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Snapshot()
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// Agent returns the session's agent binding, building it on first use.
// At most one binding is ever built per session.
func (s *Session) Agent(ctx context.Context) (agent.Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.agent != nil {
		return s.agent, nil
	}
	if s.factory == nil {
		return nil, ErrNoAgentFactory
	}
	b, err := s.factory(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.agent = b
	return b, nil
}

// clear empties the history and the agent's own memory together.
func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Reset()
	if s.agent != nil {
		s.agent.Reset()
	}
}

// release detaches and closes the agent binding, if one was built.
func (s *Session) release() error {
	s.mu.Lock()
	b := s.agent
	s.agent = nil
	s.factory = nil
	s.mu.Unlock()

	if b == nil {
		return nil
	}
	return b.Close()
}
