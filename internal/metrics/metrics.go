package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sokinpui/codedrop/model"
)

// Metrics exposes Prometheus collectors that report submission activity.
type Metrics struct {
	submissions *prometheus.CounterVec
	commits     *prometheus.CounterVec
	executions  *prometheus.CounterVec
	gateWait    prometheus.Histogram
	pipeline    prometheus.Histogram
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Registration errors panic, mirroring promauto.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codedrop",
			Name:      "submissions_total",
			Help:      "Submissions processed, by resolution kind.",
		}, []string{"kind"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codedrop",
			Name:      "commits_total",
			Help:      "Version-control outcomes of submissions.",
		}, []string{"outcome"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codedrop",
			Name:      "executions_total",
			Help:      "Sandbox execution results of submissions.",
		}, []string{"result"}),
		gateWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "codedrop",
			Name:      "gate_wait_seconds",
			Help:      "Time spent waiting for the submission gate.",
			Buckets:   prometheus.DefBuckets,
		}),
		pipeline: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "codedrop",
			Name:      "pipeline_duration_seconds",
			Help:      "Time spent inside the submission gate.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		}),
	}
	reg.MustRegister(m.submissions, m.commits, m.executions, m.gateWait, m.pipeline)
	return m
}

// ObserveDisposition records the outcome of one submission.
func (m *Metrics) ObserveDisposition(d model.Disposition, took time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(d.Kind)).Inc()
	if d.Commit.Status != "" {
		m.commits.WithLabelValues(string(d.Commit.Status)).Inc()
	}
	if d.Execution.Status != "" {
		m.executions.WithLabelValues(string(d.Execution.Status)).Inc()
	}
	m.pipeline.Observe(took.Seconds())
}

// ObserveGateWait records how long a submission waited for the gate.
func (m *Metrics) ObserveGateWait(waited time.Duration) {
	if m == nil {
		return
	}
	m.gateWait.Observe(waited.Seconds())
}
