package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the backend's per-message character cap.
const MaxMessageLength = 4000

type outboundFrame struct {
	Content string `json:"content"`
}

// EncodeUserMessage wraps free text as the single outbound frame shape.
func EncodeUserMessage(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxMessageLength {
		return nil, fmt.Errorf("%w: %d chars", ErrMessageTooLong, n)
	}
	return json.Marshal(outboundFrame{Content: trimmed})
}
