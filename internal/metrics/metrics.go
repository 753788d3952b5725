// Package metrics exposes the admin console's Prometheus collectors.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var processStartedAt = time.Now().UTC()

type Metrics struct {
	registry *prometheus.Registry

	loginOutcomes       *prometheus.CounterVec
	lockouts            prometheus.Counter
	geoProviderFailures *prometheus.CounterVec
	sessionExpiries     *prometheus.CounterVec
	rosterSize          prometheus.Gauge
	consoles            prometheus.Gauge
}

// New builds a private registry with process, Go runtime and console collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	_ = reg.Register(collectors.NewGoCollector())
	_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "adminguard_uptime_seconds",
		Help: "Process uptime in seconds.",
	}, func() float64 {
		return time.Since(processStartedAt).Seconds()
	}))

	m := &Metrics{
		registry: reg,
		loginOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adminguard_login_attempts_total",
			Help: "Admin console login attempts by outcome.",
		}, []string{"outcome"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adminguard_lockouts_total",
			Help: "Lockouts triggered by consecutive failed logins.",
		}),
		geoProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adminguard_geo_provider_failures_total",
			Help: "Failed IP or geolocation provider calls.",
		}, []string{"tier", "provider"}),
		sessionExpiries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adminguard_session_expiries_total",
			Help: "Ended admin sessions by reason.",
		}, []string{"reason"}),
		rosterSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adminguard_active_sessions",
			Help: "Sessions in the shared roster after the last cleanup sweep.",
		}),
		consoles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adminguard_consoles",
			Help: "Tab consoles held in memory.",
		}),
	}

	reg.MustRegister(m.loginOutcomes, m.lockouts, m.geoProviderFailures,
		m.sessionExpiries, m.rosterSize, m.consoles)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) LoginOutcome(outcome string) {
	if m == nil {
		return
	}
	m.loginOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

func (m *Metrics) GeoProviderFailed(tier, provider string) {
	if m == nil {
		return
	}
	m.geoProviderFailures.WithLabelValues(tier, provider).Inc()
}

func (m *Metrics) SessionExpired(reason string) {
	if m == nil {
		return
	}
	m.sessionExpiries.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetRosterSize(n int) {
	if m == nil {
		return
	}
	m.rosterSize.Set(float64(n))
}

func (m *Metrics) SetConsoles(n int) {
	if m == nil {
		return
	}
	m.consoles.Set(float64(n))
}
