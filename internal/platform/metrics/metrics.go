package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the certificate pipeline.
type Metrics struct {
	CertificatesStarted   prometheus.Counter
	StageDuration         *prometheus.HistogramVec
	StageFailures         *prometheus.CounterVec
	RegulationCompletions prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CertificatesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "urbacert_certificates_started_total",
			Help: "Total number of certificate requests accepted",
		}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "urbacert_stage_duration_seconds",
			Help:    "Wall time spent per pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "urbacert_stage_failures_total",
			Help: "Pipeline stages that ended in a failed state",
		}, []string{"stage"}),
		RegulationCompletions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "urbacert_regulation_completions_total",
			Help: "Zoning codes resolved through the completion fallback",
		}),
	}
}

// ObserveStage records one stage duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncrementStageFailure counts a degraded or fatal stage outcome.
func (m *Metrics) IncrementStageFailure(stage string) {
	m.StageFailures.WithLabelValues(stage).Inc()
}
