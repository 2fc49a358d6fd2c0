package security

import (
	"encoding/json"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// AuditAction names an audited operation.
type AuditAction string

// Audited actions.
const (
	AuditSessionCreate AuditAction = "session_create"
	AuditSessionDelete AuditAction = "session_delete"
	AuditHistoryClear  AuditAction = "history_clear"
	AuditSessionPrune  AuditAction = "session_prune"
	AuditAuthFailure   AuditAction = "auth_failure"
	AuditRateLimit     AuditAction = "rate_limit"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    AuditAction       `json:"action"`
	SessionID string            `json:"session_id,omitempty"`
	Remote    string            `json:"remote,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditLogger appends events as JSON lines. A nil *AuditLogger discards
// everything, so callers never need to check.
type AuditLogger struct {
	mu       sync.Mutex
	w        io.Writer
	redactor *Redactor
	now      func() time.Time
	failures atomic.Int64
}

// NewAuditLogger writes to w, masking Detail and Metadata through redactor
// when it is non-nil.
func NewAuditLogger(w io.Writer, redactor *Redactor) *AuditLogger {
	return &AuditLogger{w: w, redactor: redactor, now: time.Now}
}

// Log stamps and writes ev. The caller's Metadata map is not modified.
func (l *AuditLogger) Log(ev AuditEvent) {
	if l == nil || l.w == nil {
		return
	}

	ev.Timestamp = l.now().UTC()
	if len(ev.Metadata) > 0 {
		ev.Metadata = maps.Clone(ev.Metadata)
	}
	if l.redactor != nil {
		ev.Detail = l.redactor.Redact(ev.Detail)
		for k, v := range ev.Metadata {
			ev.Metadata[k] = l.redactor.Redact(v)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.w).Encode(ev); err != nil {
		l.failures.Add(1)
	}
}

// WriteFailures returns how many events could not be written.
func (l *AuditLogger) WriteFailures() int64 {
	if l == nil {
		return 0
	}
	return l.failures.Load()
}
