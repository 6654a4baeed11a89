// Package channel owns the streaming session transport.
//
// Ownership boundary:
// - retry/backoff policy primitives
// - the connection supervisor (one live channel per facade)
// - websocket dial/read/write plumbing behind small interfaces
package channel
