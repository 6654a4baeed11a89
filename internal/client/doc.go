// Package client is the public entry point of the session
// synchronization layer.
//
// Ownership boundary:
//   - session activation/teardown across the two transport strategies
//     (streaming channel, job poll fallback)
//   - the single serialized apply path into the status projector
//   - state snapshots and change subscriptions for observers
package client
