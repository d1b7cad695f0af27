package completion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts orchestration activity. A nil *Metrics records nothing.
type Metrics struct {
	rounds             *prometheus.CounterVec
	candidates         *prometheus.CounterVec
	generationFailures *prometheus.CounterVec
	outcomes           *prometheus.CounterVec
	holeDuration       prometheus.Histogram
}

// NewMetrics registers the completion metrics with reg. A nil reg keeps
// them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rounds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proofpilot",
			Subsystem: "completion",
			Name:      "rounds_total",
			Help:      "Generate-then-validate rounds started, by service.",
		}, []string{"service"}),
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proofpilot",
			Subsystem: "completion",
			Name:      "candidates_checked_total",
			Help:      "Candidate proofs sent to the checker, by service and verdict.",
		}, []string{"service", "verdict"}),
		generationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proofpilot",
			Subsystem: "completion",
			Name:      "generation_failures_total",
			Help:      "Failed generation requests, by service and error kind.",
		}, []string{"service", "kind"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proofpilot",
			Subsystem: "completion",
			Name:      "holes_total",
			Help:      "Completed holes, by terminal status.",
		}, []string{"status"}),
		holeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "proofpilot",
			Subsystem: "completion",
			Name:      "hole_duration_seconds",
			Help:      "Wall-clock time spent per hole.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
}

func (m *Metrics) roundStarted(service string) {
	if m == nil {
		return
	}
	m.rounds.WithLabelValues(service).Inc()
}

func (m *Metrics) candidateChecked(service, verdict string) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(service, verdict).Inc()
}

func (m *Metrics) generationFailed(service, kind string) {
	if m == nil {
		return
	}
	m.generationFailures.WithLabelValues(service, kind).Inc()
}

func (m *Metrics) holeFinished(r *Result) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(r.Status)).Inc()
	m.holeDuration.Observe(r.Elapsed.Seconds())
}
