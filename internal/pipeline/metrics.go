package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for pipeline runs.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	StageDuration     *prometheus.HistogramVec
	FilteredByMemory  prometheus.Counter
	ChosenExperiments *prometheus.CounterVec
	DataWarningsTotal prometheus.Counter
}

// NewMetrics registers the pipeline metrics with the default registry.
// Registration happens once per process; later calls return the same set.
//
// Metrics:
//   - growth_pipeline_runs_total{status} - completed and failed runs
//   - growth_pipeline_run_duration_seconds - end-to-end run latency
//   - growth_pipeline_stage_duration_seconds{stage,status} - per-stage latency
//   - growth_pipeline_experiments_filtered_total - candidates dropped by memory
//   - growth_pipeline_chosen_experiments_total{experiment} - winners by name
//   - growth_pipeline_data_warnings_total - intake data-quality warnings
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "growth_pipeline_runs_total",
					Help: "Total number of pipeline runs",
				},
				[]string{"status"}, // "ok" or "error"
			),
			RunDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "growth_pipeline_run_duration_seconds",
					Help:    "Duration of a full pipeline run in seconds",
					Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
				},
			),
			StageDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "growth_pipeline_stage_duration_seconds",
					Help:    "Duration of one pipeline stage in seconds",
					Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
				},
				[]string{"stage", "status"},
			),
			FilteredByMemory: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "growth_pipeline_experiments_filtered_total",
					Help: "Candidate experiments removed by strategy memory",
				},
			),
			ChosenExperiments: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "growth_pipeline_chosen_experiments_total",
					Help: "Chosen experiments by name",
				},
				[]string{"experiment"},
			),
			DataWarningsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "growth_pipeline_data_warnings_total",
					Help: "Data-quality warnings raised at intake",
				},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observeStage(stage string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, statusLabel(err)).Observe(d.Seconds())
}

func (m *Metrics) observeRun(rc *RunContext, chosen string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(statusLabel(err)).Inc()
	m.RunDuration.Observe(d.Seconds())
	if err != nil {
		return
	}
	m.ChosenExperiments.WithLabelValues(chosen).Inc()
	if n, ok := Get(rc, MetaFilteredByMemory); ok {
		m.FilteredByMemory.Add(float64(n))
	}
	if w, ok := Get(rc, MetaDataWarnings); ok {
		m.DataWarningsTotal.Add(float64(len(w)))
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
