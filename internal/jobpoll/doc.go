// Package jobpoll is the degraded fallback for sessions that expose
// only a request/response job handle instead of a streaming channel.
//
// Ownership boundary:
// - the poll loop (immediate fetch, then fixed interval)
// - terminal-state detection and the single synthetic completion event
// - fail-fast semantics on fetch transport errors
package jobpoll
