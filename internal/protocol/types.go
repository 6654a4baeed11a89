package protocol

import "time"

// EventType discriminates inbound channel frames.
type EventType string

const (
	EventHistory EventType = "history"
	EventMessage EventType = "message"
	EventStatus  EventType = "status"
	EventError   EventType = "error"
)

// HistoryMessage is one transcript entry inside a history frame.
type HistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Event is the decoded form of one inbound channel frame.
//
// Exactly one shape is populated per type:
// history carries Messages, status carries Agent (optional) plus
// Content, message and error carry Content only.
type Event struct {
	Type     EventType
	Messages []HistoryMessage
	Agent    string
	Content  string
}
