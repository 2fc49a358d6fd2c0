// Package agent wraps a language-model backend behind the per-session
// Binding used by the streaming bridge. An agent keeps its own
// conversational memory and is invoked synchronously, one turn at a time.
package agent

import (
	"context"

	"github.com/flemzord/agentchat/internal/provider"
)

// Result is what one agent turn produced.
type Result struct {
	// Content is the raw reply payload.
	Content provider.Content

	// ToolsUsed lists the names of the tools the model asked for, in order.
	// Tools are never executed.
	ToolsUsed []string

	// Usage reports token consumption when the backend provides it.
	Usage provider.TokenUsage
}

// Binding is the opaque per-session handle to the language model.
type Binding interface {
	// Invoke runs one synchronous turn for message.
	Invoke(ctx context.Context, message string) (Result, error)

	// Reset drops the binding's conversational memory.
	Reset()

	// Close releases the binding. It is called once, when the owning
	// session is destroyed.
	Close() error
}

// Factory builds a new Binding for a session.
type Factory func(ctx context.Context, sessionID string) (Binding, error)
