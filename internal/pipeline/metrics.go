package pipeline

import (
	"time"

	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline activity. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	degraded prometheus.Counter
}

// NewMetrics creates the pipeline collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memexplain",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by terminal status.",
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memexplain",
			Name:      "stage_failures_total",
			Help:      "Terminal stage failures by stage and error kind.",
		}, []string{"stage", "kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memexplain",
			Name:      "stage_retries_total",
			Help:      "Retried stage attempts.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "memexplain",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each stage, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memexplain",
			Name:      "degraded_generations_total",
			Help:      "Explanations generated without pattern grounding.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.runs, m.failures, m.retries, m.duration, m.degraded)
	}
	return m
}

// Degraded returns the counter for ungrounded generations, for the explain
// stage to increment.
func (m *Metrics) Degraded() prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.degraded
}

func (m *Metrics) observeStage(stage Stage, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) retried(stage Stage) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(string(stage)).Inc()
}

func (m *Metrics) finished(status Status) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) failed(stage Stage, kind meme.Kind) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(stage), string(kind)).Inc()
}
