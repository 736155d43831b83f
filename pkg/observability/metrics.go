package observability

import (
	"time"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports generation passes to Prometheus.
type Metrics struct {
	created     prometheus.Counter
	removed     prometheus.Counter
	dirty       prometheus.Counter
	reevaluated prometheus.Counter
	skipped     prometheus.Counter
	nodes       prometheus.Gauge
	duration    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_nodes_created_total",
			Help: "Total number of generated nodes",
		}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_nodes_removed_total",
			Help: "Total number of torn down nodes",
		}),
		dirty: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_dirty_nodes_total",
			Help: "Total number of nodes drained from the dirty tracker",
		}),
		reevaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_nodes_reevaluated_total",
			Help: "Total number of node re-evaluations",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_dirty_skipped_total",
			Help: "Dirty nodes removed before they could be re-evaluated",
		}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbor_tree_nodes",
			Help: "Current number of nodes in the generated tree",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbor_pass_duration_seconds",
			Help:    "Duration of generation and update passes",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.created, m.removed, m.dirty, m.reevaluated, m.skipped, m.nodes, m.duration}
}

// ObservePass implements runtime.Recorder.
func (m *Metrics) ObservePass(report runtime.Report, elapsed time.Duration, treeSize int) {
	m.created.Add(float64(report.Created))
	m.removed.Add(float64(report.Removed))
	m.dirty.Add(float64(report.Dirty))
	m.reevaluated.Add(float64(report.Reevaluated))
	m.skipped.Add(float64(report.Skipped))
	m.nodes.Set(float64(treeSize))
	m.duration.Observe(elapsed.Seconds())
}

var _ runtime.Recorder = (*Metrics)(nil)
