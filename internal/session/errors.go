// Package session holds per-caller conversation state: the append-only
// message history, the lazily built agent binding, and the concurrency-safe
// Store that creates, looks up, expires and tears down sessions.
package session

import "errors"

// Sentinel errors for session operations.
var (
	// ErrNotFound indicates no live session has the requested id.
	ErrNotFound = errors.New("session: not found")

	// ErrCapacity indicates the store is full and the overflow policy
	// forbids evicting an existing session.
	ErrCapacity = errors.New("session: capacity reached")

	// ErrBusy indicates a chat turn is already in flight for the session.
	ErrBusy = errors.New("session: turn in progress")

	// ErrNoAgentFactory indicates the store cannot build agent bindings.
	ErrNoAgentFactory = errors.New("session: no agent factory configured")
)
