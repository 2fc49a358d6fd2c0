package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/flemzord/agentchat/internal/provider"
)

// ErrClosed is returned by Invoke after Close.
var ErrClosed = errors.New("agent: closed")

// Agent is a Binding over a provider.Provider. It replays its memory to
// the backend on each turn and remembers successful exchanges.
type Agent struct {
	provider provider.Provider
	config   Config
	logger   *slog.Logger

	mu     sync.Mutex
	memory []provider.LLMMessage
	closed bool
}

// Interface guard.
var _ Binding = (*Agent)(nil)

// New creates an Agent with empty memory.
func New(p provider.Provider, cfg Config, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		provider: p,
		config:   cfg.withDefaults(),
		logger:   logger,
	}
}

// NewFactory returns a Factory producing Agents over p.
func NewFactory(p provider.Provider, cfg Config, logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(_ context.Context, sessionID string) (Binding, error) {
		if p == nil {
			return nil, provider.ErrNoProvider
		}
		return New(p, cfg, logger.With("session", sessionID)), nil
	}
}

// Invoke implements Binding. The exchange is remembered only when the
// backend call succeeds.
func (a *Agent) Invoke(ctx context.Context, message string) (Result, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return Result{}, ErrClosed
	}
	req := provider.CompletionRequest{Messages: a.buildMessages(message)}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	resp, err := a.provider.Complete(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", a.provider.ModelName(), err)
	}

	result := Result{Content: resp.Content, Usage: resp.Usage}
	for _, tc := range resp.ToolCalls {
		result.ToolsUsed = append(result.ToolsUsed, tc.Name)
	}

	a.mu.Lock()
	a.memory = append(a.memory,
		provider.LLMMessage{Role: provider.MessageRoleUser, Content: message},
		provider.LLMMessage{Role: provider.MessageRoleAssistant, Content: plainText(resp.Content)},
	)
	a.mu.Unlock()

	a.logger.Debug("agent turn complete",
		"model", a.provider.ModelName(),
		"tools", len(result.ToolsUsed),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return result, nil
}

// buildMessages must be called with a.mu held.
func (a *Agent) buildMessages(message string) []provider.LLMMessage {
	memory := a.memory
	if a.config.MaxHistory > 0 && len(memory) > a.config.MaxHistory {
		memory = memory[len(memory)-a.config.MaxHistory:]
	}

	msgs := make([]provider.LLMMessage, 0, len(memory)+2)
	msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleSystem, Content: a.config.SystemPrompt})
	msgs = append(msgs, memory...)
	msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleUser, Content: message})
	return msgs
}

// Reset implements Binding.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory = nil
}

// Close implements Binding.
func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.memory = nil
	return nil
}

// MemoryLen returns the number of remembered messages.
func (a *Agent) MemoryLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.memory)
}

// plainText flattens a reply for replay. Unclassified payloads replay as
// an empty assistant turn.
func plainText(c provider.Content) string {
	switch v := c.(type) {
	case provider.TextContent:
		return string(v)
	case provider.BlockContent:
		var b strings.Builder
		for _, blk := range v {
			if blk.Type == provider.BlockText {
				b.WriteString(blk.Text)
			}
		}
		return b.String()
	default:
		return ""
	}
}
