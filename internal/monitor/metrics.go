package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects mining session metrics. All methods are safe to call on
// a nil receiver so metrics stay optional for callers.
type Metrics struct {
	attemptsTotal      *prometheus.CounterVec
	acceptedTotal      *prometheus.CounterVec
	abandonedTotal     *prometheus.CounterVec
	collaboratorErrors *prometheus.CounterVec
	checkpointSaves    prometheus.Counter
	evaluationSharpe   prometheus.Histogram
	sessionAccepted    prometheus.Gauge
}

// NewMetrics creates a metrics collector registered with the given
// registerer. Pass prometheus.DefaultRegisterer for normal operation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alphaminer_generation_attempts_total",
			Help: "Total factor generation attempts",
		}, []string{"dataset"}),
		acceptedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alphaminer_factors_accepted_total",
			Help: "Total accepted factors",
		}, []string{"dataset"}),
		abandonedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alphaminer_factors_abandoned_total",
			Help: "Total candidates abandoned after exhausting the iteration budget",
		}, []string{"dataset"}),
		collaboratorErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alphaminer_collaborator_errors_total",
			Help: "Total collaborator call failures",
		}, []string{"collaborator"}),
		checkpointSaves: factory.NewCounter(prometheus.CounterOpts{
			Name: "alphaminer_checkpoint_saves_total",
			Help: "Total checkpoint saves",
		}),
		evaluationSharpe: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "alphaminer_evaluation_sharpe",
			Help:    "Sharpe scores of evaluated candidates",
			Buckets: prometheus.LinearBuckets(-1, 0.5, 12),
		}),
		sessionAccepted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alphaminer_session_accepted",
			Help: "Accepted factors in the current session",
		}),
	}
}

// RecordAttempt counts a generation attempt
func (m *Metrics) RecordAttempt(dataset string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(dataset).Inc()
}

// RecordAccepted counts an accepted factor
func (m *Metrics) RecordAccepted(dataset string) {
	if m == nil {
		return
	}
	m.acceptedTotal.WithLabelValues(dataset).Inc()
}

// RecordAbandoned counts an abandoned candidate
func (m *Metrics) RecordAbandoned(dataset string) {
	if m == nil {
		return
	}
	m.abandonedTotal.WithLabelValues(dataset).Inc()
}

// RecordCollaboratorError counts a collaborator call failure
func (m *Metrics) RecordCollaboratorError(collaborator string) {
	if m == nil {
		return
	}
	m.collaboratorErrors.WithLabelValues(collaborator).Inc()
}

// RecordCheckpoint counts a checkpoint save
func (m *Metrics) RecordCheckpoint() {
	if m == nil {
		return
	}
	m.checkpointSaves.Inc()
}

// ObserveSharpe records an evaluation score
func (m *Metrics) ObserveSharpe(sharpe float64) {
	if m == nil {
		return
	}
	m.evaluationSharpe.Observe(sharpe)
}

// SetSessionAccepted updates the session acceptance gauge
func (m *Metrics) SetSessionAccepted(count int) {
	if m == nil {
		return
	}
	m.sessionAccepted.Set(float64(count))
}
