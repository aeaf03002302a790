// Package domain defines the core domain models for FeedAuth.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Session: the client-held identity {token, userId, expiresAt}
//   - Credentials / SignupData: inputs to the network collaborator
//   - Errors: the coded error taxonomy and Classify
//
// Session enforces the both-or-neither rule for token and expiry; there is no
// such thing as a half-present session.
package domain
