package stream

// EventType discriminates an Event.
type EventType string

// Event types. Done and Error are terminal.
const (
	EventMessage EventType = "message"
	EventTool    EventType = "tool"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// Event is one unit of a chat turn's output.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Name    string    `json:"name,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Terminal reports whether e ends a stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// MessageEvent returns a text chunk event.
func MessageEvent(content string) Event { return Event{Type: EventMessage, Content: content} }

// ToolEvent returns a tool invocation event.
func ToolEvent(name string) Event { return Event{Type: EventTool, Name: name} }

// DoneEvent returns the successful terminal event.
func DoneEvent() Event { return Event{Type: EventDone} }

// ErrorEvent returns the failed terminal event.
func ErrorEvent(message string) Event { return Event{Type: EventError, Message: message} }
