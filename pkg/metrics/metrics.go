// Package metrics defines the Prometheus collectors recorded during a matrix
// build and pushes them to a Pushgateway when the run finishes.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus collectors for one process.
type Metrics struct {
	DocumentsTotal      *prometheus.CounterVec
	TokensTotal         prometheus.Counter
	VocabularyTerms     prometheus.Gauge
	CollectiveRounds    *prometheus.CounterVec
	CollectiveBytes     *prometheus.CounterVec
	PhaseDuration       *prometheus.HistogramVec
	EncodedRecordsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates all collectors and registers them on a private registry, so
// several ranks can live in one process.
func New() *Metrics {
	m := &Metrics{
		DocumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termmatrix_documents_total",
				Help: "Documents counted by this process, by status (ok, unreadable).",
			},
			[]string{"status"},
		),
		TokensTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "termmatrix_tokens_total",
				Help: "Tokens produced by the tokenizer.",
			},
		),
		VocabularyTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "termmatrix_vocabulary_terms",
				Help: "Size of the synchronized global vocabulary.",
			},
		),
		CollectiveRounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termmatrix_collective_rounds_total",
				Help: "Collective rounds entered, by operation.",
			},
			[]string{"op"},
		),
		CollectiveBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termmatrix_collective_bytes_total",
				Help: "Payload bytes contributed to collective rounds, by operation.",
			},
			[]string{"op"},
		),
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termmatrix_phase_duration_seconds",
				Help:    "Wall time of each pipeline phase.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"phase"},
		),
		EncodedRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termmatrix_encoded_records_total",
				Help: "Row records produced by the row encoder, by encoding.",
			},
			[]string{"encoding"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.DocumentsTotal,
		m.TokensTotal,
		m.VocabularyTerms,
		m.CollectiveRounds,
		m.CollectiveBytes,
		m.PhaseDuration,
		m.EncodedRecordsTotal,
	)

	return m
}

// ObserveRound records one collective round contribution. It is safe to call
// on a nil *Metrics.
func (m *Metrics) ObserveRound(op string, bytes int) {
	if m == nil {
		return
	}
	m.CollectiveRounds.WithLabelValues(op).Inc()
	m.CollectiveBytes.WithLabelValues(op).Add(float64(bytes))
}

// Push sends every collector to the Pushgateway at url, grouped by job and
// rank.
func (m *Metrics) Push(url, job string, rank int) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).
		Gatherer(m.registry).
		Grouping("rank", fmt.Sprintf("%d", rank)).
		Push()
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
