// Package metrics records run statistics and writes them in the Prometheus
// text format for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pmt"

// Metrics holds the collectors of one process.
type Metrics struct {
	reg *prometheus.Registry

	resolutions   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageResults  *prometheus.CounterVec
	candidates    prometheus.Gauge
	lastRun       prometheus.Gauge
}

// New creates collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Dependency resolutions by result",
			},
			[]string{"result"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"stage"},
		),
		stageResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_results_total",
				Help:      "Pipeline stage outcomes",
			},
			[]string{"stage", "result"},
		),
		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upgrade_candidates",
			Help:      "Packages with a newer version found by the last upgrade scan",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the metrics were last written",
		}),
	}
	m.reg.MustRegister(m.resolutions, m.stageDuration, m.stageResults, m.candidates, m.lastRun)
	return m
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ResolutionDone counts one resolution.
func (m *Metrics) ResolutionDone(err error) {
	m.resolutions.WithLabelValues(result(err)).Inc()
}

// StageDone records a pipeline stage.
func (m *Metrics) StageDone(stage string, d time.Duration, err error) {
	m.stageResults.WithLabelValues(stage, result(err)).Inc()
	if d > 0 {
		m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// UpgradeCandidates records the size of the last scan.
func (m *Metrics) UpgradeCandidates(n int) {
	m.candidates.Set(float64(n))
}

// WriteTextfile atomically writes all metrics to path.
func (m *Metrics) WriteTextfile(path string) error {
	m.lastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
