package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline counters. A nil *Metrics is valid and
// records nothing, so tests can skip registration entirely.
type Metrics struct {
	decisions     *prometheus.CounterVec
	images        *prometheus.CounterVec
	alertFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptguard",
			Name:      "decisions_total",
			Help:      "Enforcement decisions by action.",
		}, []string{"action"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptguard",
			Name:      "images_sniffed_total",
			Help:      "Images inspected by the safety sniffer, by verdict.",
		}, []string{"verdict"}),
		alertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "promptguard",
			Name:      "alert_failures_total",
			Help:      "Admin alerts that could not be delivered.",
		}),
	}
	reg.MustRegister(m.decisions, m.images, m.alertFailures)
	return m
}

func (m *Metrics) Decision(action string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(action).Inc()
}

func (m *Metrics) ImageSniffed(verdict string) {
	if m == nil {
		return
	}
	m.images.WithLabelValues(verdict).Inc()
}

func (m *Metrics) AlertFailed() {
	if m == nil {
		return
	}
	m.alertFailures.Inc()
}
