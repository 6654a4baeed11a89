package protocol

import "errors"

var (
	ErrEmptyFrame     = errors.New("protocol: empty frame")
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	ErrMissingType    = errors.New("protocol: missing event type")
	ErrUnknownType    = errors.New("protocol: unknown event type")
	ErrEmptyMessage   = errors.New("protocol: empty outbound message")
	ErrMessageTooLong = errors.New("protocol: outbound message too long")
)
