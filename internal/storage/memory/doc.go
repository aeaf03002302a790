// Package memory provides an in-memory KV engine for FeedAuth.
//
// It implements storage.KVEngine without durability. It backs the Session
// Store in tests and when the CLI runs with --ephemeral.
package memory
