// Package storage persists the client session.
//
// Two layers:
//
//   - KVEngine: a small embedded key-value contract with atomic batches.
//     BadgerEngine is the durable implementation; memory.Store is the
//     in-process one used by tests and --ephemeral.
//   - SessionStore: the {token, userId, expiryDate} triple for one server
//     origin, written and cleared in a single batch so a reader never sees
//     half of it. The token can be sealed at rest with pkg/crypto/adaptive.
package storage
