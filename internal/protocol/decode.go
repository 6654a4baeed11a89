package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type inboundFrame struct {
	Type     string           `json:"type"`
	Messages []HistoryMessage `json:"messages"`
	Agent    string           `json:"agent"`
	Content  string           `json:"content"`
}

// Decode parses one raw channel frame into an Event.
//
// Decoding is total over well-formed frames; any failure is reported as
// a wrapped sentinel error and must be treated as frame-drop by the
// caller, never as a channel fault.
func Decode(raw []byte) (Event, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Event{}, ErrEmptyFrame
	}
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch EventType(frame.Type) {
	case EventHistory:
		messages := frame.Messages
		if messages == nil {
			messages = []HistoryMessage{}
		}
		return Event{Type: EventHistory, Messages: messages}, nil
	case EventMessage:
		return Event{Type: EventMessage, Content: frame.Content}, nil
	case EventStatus:
		return Event{
			Type:    EventStatus,
			Agent:   strings.TrimSpace(frame.Agent),
			Content: frame.Content,
		}, nil
	case EventError:
		return Event{Type: EventError, Content: frame.Content}, nil
	case "":
		return Event{}, ErrMissingType
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, frame.Type)
	}
}
