package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RemainingFunc reports how long the current session has left, and whether
// there is one.
type RemainingFunc func() (time.Duration, bool)

// SessionCollector reports the remaining session lifetime at scrape time.
type SessionCollector struct {
	remaining RemainingFunc
	desc      *prometheus.Desc
}

// NewSessionCollector creates a collector backed by fn.
func NewSessionCollector(fn RemainingFunc) *SessionCollector {
	return &SessionCollector{
		remaining: fn,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", "remaining_seconds"),
			"Seconds until the current session expires. Absent when anonymous.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	d, ok := c.remaining()
	if !ok {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, d.Seconds())
}
