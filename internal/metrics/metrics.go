package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "algelab_auth"

// Metrics groups the counters recorded by the login and token flows. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	loginOutcomes   *prometheus.CounterVec
	loginPhases     *prometheus.CounterVec
	refreshOutcomes *prometheus.CounterVec
	stateConsumes   *prometheus.CounterVec
	reuseDetected   prometheus.Counter
	purged          *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		loginOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_outcomes_total",
			Help:      "Completed login attempts by outcome.",
		}, []string{"outcome"}),
		loginPhases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_phase_transitions_total",
			Help:      "Login state machine transitions by phase entered.",
		}, []string{"phase"}),
		refreshOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_outcomes_total",
			Help:      "Refresh token exchanges by outcome.",
		}, []string{"outcome"}),
		stateConsumes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_state_consumes_total",
			Help:      "Login state consumption attempts by outcome.",
		}, []string{"outcome"}),
		reuseDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_reuse_detected_total",
			Help:      "Revoked refresh tokens presented again.",
		}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "janitor_purged_total",
			Help:      "Expired rows removed by the janitor.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.loginOutcomes, m.loginPhases, m.refreshOutcomes, m.stateConsumes, m.reuseDetected, m.purged)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) LoginOutcome(outcome string) {
	if m == nil {
		return
	}
	m.loginOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LoginPhase(phase string) {
	if m == nil {
		return
	}
	m.loginPhases.WithLabelValues(phase).Inc()
}

func (m *Metrics) RefreshOutcome(outcome string) {
	if m == nil {
		return
	}
	m.refreshOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StateConsume(outcome string) {
	if m == nil {
		return
	}
	m.stateConsumes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReuseDetected() {
	if m == nil {
		return
	}
	m.reuseDetected.Inc()
}

func (m *Metrics) Purged(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.WithLabelValues(kind).Add(float64(n))
}
