// Package adaptive provides authenticated encryption for secrets kept on disk.
//
// It selects an AEAD based on the platform:
//
//   - AES-256-GCM where the Go runtime uses hardware AES (amd64, arm64)
//   - ChaCha20-Poly1305 elsewhere
//
// A Sealer wraps a Cipher and produces self-describing text envelopes of the
// form "v1.<cipher>.<base64url>", so a value sealed on one machine can be
// opened on another regardless of which cipher New would pick there.
//
// Usage:
//
//	key := adaptive.DeriveKey(secret, "feedauth/session-store")
//	sealer, err := adaptive.NewSealer(key)
//	env, err := sealer.SealString(token, aad)
//	token, err := sealer.OpenString(env, aad)
package adaptive
