// Package transcript defines the archive of completed chat exchanges.
// Sessions are ephemeral; the archive is the only record that outlives
// them. Implementations live under modules/transcript.
package transcript

import (
	"context"
	"time"
)

// Exchange is one successful chat turn.
type Exchange struct {
	SessionID   string    `json:"session_id"`
	UserMessage string    `json:"user_message"`
	Reply       string    `json:"reply"`
	ToolsUsed   []string  `json:"tools_used"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Recorder persists exchanges.
type Recorder interface {
	Record(ctx context.Context, ex Exchange) error
}

// Reader reads exchanges back, oldest first.
type Reader interface {
	Exchanges(ctx context.Context, sessionID string, limit int) ([]Exchange, error)
}

// Archive is a Recorder that can also be read.
type Archive interface {
	Recorder
	Reader
}

// Searcher finds exchanges by full-text query, best match first.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Exchange, error)
}
