// Package metric provides Prometheus metrics for FeedAuth.
//
//   - prometheus.go: the Registry of session lifecycle metrics and its
//     /metrics handler
//   - collector.go: a collector that reports the remaining session lifetime
//     at scrape time
//
// All Registry methods are safe on a nil *Registry, so components can take
// one optionally.
package metric
