// Package state owns the session view model and its single writer.
//
// Ownership boundary:
// - SessionState and its snapshot/copy semantics
// - the Projector, the only component allowed to mutate SessionState
// - agent/phase/connection/job vocabulary shared by the whole client
package state
