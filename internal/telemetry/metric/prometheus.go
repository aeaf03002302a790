package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feedauth"

// Logout reasons.
const (
	LogoutUser           = "user"
	LogoutExpired        = "expired"
	LogoutRestoreExpired = "restore_expired"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	loginAttempts   *prometheus.CounterVec
	signupAttempts  *prometheus.CounterVec
	logouts         *prometheus.CounterVec
	staleResponses  prometheus.Counter
	authenticated   prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with the FeedAuth metrics plus the Go and
// process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),

		signupAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signup_attempts_total",
			Help:      "Signup attempts by result.",
		}, []string{"result"}),

		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Sessions ended, by reason (user, expired, restore_expired).",
		}, []string{"reason"}),

		staleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Login responses discarded because the attempt was no longer current.",
		}),

		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_authenticated",
			Help:      "1 while a session is authenticated, 0 otherwise.",
		}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_request_duration_seconds",
			Help:      "Latency of requests to the auth server.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.loginAttempts,
		r.signupAttempts,
		r.logouts,
		r.staleResponses,
		r.authenticated,
		r.requestDuration,
	)
	return r
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Registerer exposes the underlying registry for extra collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}

// RecordLoginAttempt counts a finished login attempt.
func (r *Registry) RecordLoginAttempt(result string) {
	if r == nil {
		return
	}
	r.loginAttempts.WithLabelValues(result).Inc()
}

// RecordSignupAttempt counts a finished signup attempt.
func (r *Registry) RecordSignupAttempt(result string) {
	if r == nil {
		return
	}
	r.signupAttempts.WithLabelValues(result).Inc()
}

// RecordLogout counts a session ending.
func (r *Registry) RecordLogout(reason string) {
	if r == nil {
		return
	}
	r.logouts.WithLabelValues(reason).Inc()
}

// IncStaleResponse counts a discarded login response.
func (r *Registry) IncStaleResponse() {
	if r == nil {
		return
	}
	r.staleResponses.Inc()
}

// SetAuthenticated sets the authenticated gauge.
func (r *Registry) SetAuthenticated(v bool) {
	if r == nil {
		return
	}
	if v {
		r.authenticated.Set(1)
	} else {
		r.authenticated.Set(0)
	}
}

// ObserveAuthRequest records the duration of one request to the auth server.
func (r *Registry) ObserveAuthRequest(op string, seconds float64) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(op).Observe(seconds)
}
