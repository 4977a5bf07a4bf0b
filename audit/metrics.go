// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the registry's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	active   *prometheus.GaugeVec
	created  *prometheus.CounterVec
	samples  *prometheus.CounterVec
	rejected *prometheus.CounterVec
	verdicts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the audit collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		active: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quickly_audit",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Audit sessions currently held by the registry",
		}, []string{"variant"}),
		created: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quickly_audit",
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Audit sessions created",
		}, []string{"variant"}),
		samples: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quickly_audit",
			Subsystem: "samples",
			Name:      "accepted_total",
			Help:      "Samples accepted into session buffers",
		}, []string{"variant"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quickly_audit",
			Subsystem: "samples",
			Name:      "rejected_total",
			Help:      "Sample submissions rejected for their format",
		}, []string{"variant"}),
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quickly_audit",
			Subsystem: "sessions",
			Name:      "verdicts_total",
			Help:      "Audits finished, by outcome",
		}, []string{"variant", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quickly_audit",
			Subsystem: "sessions",
			Name:      "duration_seconds",
			Help:      "Time from session creation to verdict",
			Buckets:   []float64{1, 10, 60, 300, 900, 3600, 4 * 3600, 24 * 3600},
		}, []string{"variant"}),
	}
}

func (m *Metrics) sessionCreated(v Variant) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(string(v)).Inc()
	m.active.WithLabelValues(string(v)).Inc()
}

func (m *Metrics) sessionRemoved(v Variant) {
	if m == nil {
		return
	}
	m.active.WithLabelValues(string(v)).Dec()
}

func (m *Metrics) samplesAccepted(v Variant, n int) {
	if m == nil || n == 0 {
		return
	}
	m.samples.WithLabelValues(string(v)).Add(float64(n))
}

func (m *Metrics) sampleRejected(v Variant) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(string(v)).Inc()
}

func (m *Metrics) verdict(v Variant, kind DecisionKind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(string(v), kind.String()).Inc()
	m.duration.WithLabelValues(string(v)).Observe(elapsed.Seconds())
}
