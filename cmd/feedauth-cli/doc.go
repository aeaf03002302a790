// Package main provides the entry point for feedauth-cli.
//
// feedauth-cli logs in to and signs up with a FeedAuth server, keeps the
// resulting session on disk until it expires, and offers an interactive
// mode in which the session lifetime can be watched.
package main
