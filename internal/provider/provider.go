// Package provider defines the Provider interface for communicating with
// language-model backends, the typed reply payload they return, and a
// health-aware failover wrapper over several backends.
package provider

import "context"

// Provider is the interface for communicating with an LLM.
// Concrete implementations live in separate packages (e.g., provider.anthropic)
// and typically also implement core.Module for lifecycle management.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	// The call is synchronous; replies are never streamed by the backend.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface that providers may implement
// to support active health probing. When a provider is in cooldown,
// the failover loop calls HealthCheck periodically to determine
// if the provider has recovered.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
