package channel

import "errors"

var (
	ErrBaseURLRequired = errors.New("channel: base url required")
	ErrNotConnected    = errors.New("channel: not connected")
)
