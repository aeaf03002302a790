// Package logger provides structured logging for FeedAuth.
//
// It wraps log/slog:
//
//   - logger.go: Logger interface, configuration and the process default
//   - context.go: carrying a logger and the login attempt ID in a context
//   - redact.go: masking of tokens, passwords and sealed envelopes
//
// The level is held in a slog.LevelVar, so SetLevel takes effect on every
// logger created by New, including the one handed to the storage engine.
package logger
