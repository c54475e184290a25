package monitoring

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Outcome labels for retrievals
const (
	OutcomeFetched = "fetched"
	OutcomeCached  = "cached"
	OutcomeBlocked = "blocked"
	OutcomeFailed  = "failed"
)

// Metrics holds the Prometheus collectors for one conversion
type Metrics struct {
	registry *prometheus.Registry

	// Retrieval metrics
	Retrievals        *prometheus.CounterVec
	RetrievalDuration *prometheus.HistogramVec
	BytesRetrieved    prometheus.Counter

	// Walk metrics
	FramesEmbedded       prometheus.Counter
	StylesheetsRewritten prometheus.Counter

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the run summary
type Snapshot struct {
	Fetched  int64
	Cached   int64
	Blocked  int64
	Failed   int64
	Bytes    int64
	Frames   int64
	Duration time.Duration // total time spent retrieving
}

// NewMetrics creates collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Retrievals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monolith_retrievals_total",
				Help: "Asset retrievals by scheme and outcome",
			},
			[]string{"scheme", "outcome"},
		),
		RetrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monolith_retrieval_duration_seconds",
				Help:    "Time spent retrieving assets",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scheme"},
		),
		BytesRetrieved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monolith_retrieved_bytes_total",
				Help: "Payload bytes obtained from the network or filesystem",
			},
		),
		FramesEmbedded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monolith_frames_embedded_total",
				Help: "Nested documents walked and embedded",
			},
		),
		StylesheetsRewritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monolith_stylesheets_rewritten_total",
				Help: "Stylesheets passed through the CSS rewriter",
			},
		),
	}
}

// RecordRetrieval records one retrieval attempt
func (m *Metrics) RecordRetrieval(scheme, outcome string, size int, duration time.Duration) {
	if m == nil {
		return
	}
	m.Retrievals.WithLabelValues(scheme, outcome).Inc()
	m.RetrievalDuration.WithLabelValues(scheme).Observe(duration.Seconds())
	if size > 0 && outcome == OutcomeFetched {
		m.BytesRetrieved.Add(float64(size))
	}

	m.mu.Lock()
	switch outcome {
	case OutcomeFetched:
		m.snapshot.Fetched++
		m.snapshot.Bytes += int64(size)
	case OutcomeCached:
		m.snapshot.Cached++
	case OutcomeBlocked:
		m.snapshot.Blocked++
	case OutcomeFailed:
		m.snapshot.Failed++
	}
	m.snapshot.Duration += duration
	m.mu.Unlock()
}

// IncFrames counts an embedded nested document
func (m *Metrics) IncFrames() {
	if m == nil {
		return
	}
	m.FramesEmbedded.Inc()
	m.mu.Lock()
	m.snapshot.Frames++
	m.mu.Unlock()
}

// IncStylesheets counts a rewritten stylesheet
func (m *Metrics) IncStylesheets() {
	if m == nil {
		return
	}
	m.StylesheetsRewritten.Inc()
}

// Snapshot returns a copy of the current values
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteText writes every collected metric in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// Timer measures one retrieval
type Timer struct {
	start   time.Time
	metrics *Metrics
	scheme  string
}

// NewTimer starts timing a retrieval for scheme
func NewTimer(metrics *Metrics, scheme string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		scheme:  scheme,
	}
}

// Stop records the retrieval with its outcome and payload size
func (t *Timer) Stop(outcome string, size int) {
	t.metrics.RecordRetrieval(t.scheme, outcome, size, time.Since(t.start))
}
