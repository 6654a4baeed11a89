// Package protocol owns the channel wire contract and parsing primitives.
//
// Ownership boundary:
// - inbound event envelope decoding (history/message/status/error)
// - outbound user message encoding
// - wire-level validation errors
package protocol
