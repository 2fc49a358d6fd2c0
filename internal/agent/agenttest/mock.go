// Package agenttest provides test doubles for the agent package.
package agenttest

import (
	"context"
	"sync"

	"github.com/flemzord/agentchat/internal/agent"
	"github.com/flemzord/agentchat/internal/provider"
)

// MockBinding is a configurable agent.Binding. When InvokeFunc is nil,
// Invoke replies with TextContent(Reply).
type MockBinding struct {
	InvokeFunc func(ctx context.Context, message string) (agent.Result, error)
	Reply      string
	CloseErr   error

	mu          sync.Mutex
	Messages    []string
	ResetCalls  int
	CloseCalls  int
	InvokeCalls int
}

// Invoke implements agent.Binding.
func (m *MockBinding) Invoke(ctx context.Context, message string) (agent.Result, error) {
	m.mu.Lock()
	m.InvokeCalls++
	m.Messages = append(m.Messages, message)
	fn := m.InvokeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, message)
	}
	return agent.Result{Content: provider.TextContent(m.Reply)}, nil
}

// Reset implements agent.Binding.
func (m *MockBinding) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCalls++
}

// Close implements agent.Binding.
func (m *MockBinding) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return m.CloseErr
}

// Counts returns the invoke, reset and close call counts.
func (m *MockBinding) Counts() (invokes, resets, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.InvokeCalls, m.ResetCalls, m.CloseCalls
}

// Factory returns an agent.Factory that always hands out b and counts how
// many bindings were built.
func Factory(b agent.Binding, built *int) agent.Factory {
	var mu sync.Mutex
	return func(context.Context, string) (agent.Binding, error) {
		mu.Lock()
		defer mu.Unlock()
		if built != nil {
			*built++
		}
		return b, nil
	}
}

// Interface guard.
var _ agent.Binding = (*MockBinding)(nil)
