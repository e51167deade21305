package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session outcomes
const (
	OutcomeAdmitted = "admitted"
	OutcomeRotated  = "rotated"
	OutcomeRejected = "rejected"
)

// Metrics holds the collectors of the session subsystem
type Metrics struct {
	gatherer prometheus.Gatherer

	sessions  *prometheus.CounterVec
	rotations *prometheus.CounterVec
	logins    *prometheus.CounterVec
	purged    prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
// A nil reg uses a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutricoach_session_outcomes_total",
			Help: "Session gate outcomes by result and code.",
		}, []string{"outcome", "code"}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutricoach_refresh_rotations_total",
			Help: "Refresh token rotations by result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutricoach_login_attempts_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nutricoach_ledger_purged_total",
			Help: "Expired refresh records removed by the janitor.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(m.sessions, m.rotations, m.logins, m.purged, m.httpRequests, m.httpDuration)
	return m
}

// Session records one session gate outcome
func (m *Metrics) Session(outcome, code string) {
	m.sessions.WithLabelValues(outcome, code).Inc()
}

// Rotation records a rotation attempt result
func (m *Metrics) Rotation(result string) {
	m.rotations.WithLabelValues(result).Inc()
}

// Login records a login attempt result
func (m *Metrics) Login(result string) {
	m.logins.WithLabelValues(result).Inc()
}

// Purged records ledger rows removed by cleanup
func (m *Metrics) Purged(n int64) {
	if n > 0 {
		m.purged.Add(float64(n))
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Instrument records request count and latency per route
func (m *Metrics) Instrument() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
		}
		path := c.Route().Path
		labels := []string{c.Method(), path, strconv.Itoa(status)}

		m.httpRequests.WithLabelValues(labels...).Inc()
		m.httpDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return err
	}
}
