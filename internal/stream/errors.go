package stream

import "errors"

// Sentinel errors surfaced inside a chat stream as its terminal error event.
var (
	// ErrAgentInvocation wraps a failed backend call.
	ErrAgentInvocation = errors.New("stream: agent invocation failed")

	// ErrEmptyResponse indicates the reply had no extractable text.
	ErrEmptyResponse = errors.New("stream: empty response")

	// ErrMalformedResponse indicates the reply payload shape was not recognized.
	ErrMalformedResponse = errors.New("stream: malformed response")

	// ErrAgentNotInitialized indicates the session's agent could not be built.
	ErrAgentNotInitialized = errors.New("stream: agent not initialized")
)
