package session

import (
	"slices"
	"time"
)

// Role identifies who wrote a Message.
type Role string

// Role constants.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable entry of a conversation history.
type Message struct {
	Role      Role
	Content   string
	CreatedAt time.Time
	ToolsUsed []string
}

// History is an append-only sequence of messages. It is not safe for
// concurrent use; Session guards it.
type History struct {
	messages []Message
}

// Append adds m at the end.
func (h *History) Append(m Message) {
	m.ToolsUsed = slices.Clone(m.ToolsUsed)
	h.messages = append(h.messages, m)
}

// Snapshot returns a copy of the messages in append order.
// It never returns nil.
func (h *History) Snapshot() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	return len(h.messages)
}

// Reset replaces the history with an empty sequence.
func (h *History) Reset() {
	h.messages = nil
}
