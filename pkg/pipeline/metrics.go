package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ValerySidorin/eadpipe/pkg/record"
)

type metrics struct {
	records       *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// newMetrics registers the runner metrics on reg. A nil reg keeps them
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eadpipe_records_total",
			Help: "Records processed, by final status.",
		}, []string{"status"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eadpipe_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
	}
}

func (m *metrics) observe(stage record.Stage, start time.Time) {
	m.stageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}
