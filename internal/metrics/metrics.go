// Package metrics exposes pipeline metrics for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "restore"

// Pipeline stages.
const (
	StageLoad     = "load"
	StageValidate = "validate"
	StageCompile  = "compile"
	StageGraph    = "graph"
	StageAssemble = "assemble"
	StageWrite    = "write"
	StageSolve    = "solve"
)

// Metrics holds the collectors of one application instance in their own
// registry.
type Metrics struct {
	Registry *prometheus.Registry

	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	entities      prometheus.Gauge
	problemSize   *prometheus.GaugeVec
	objective     prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Pipeline runs by result.",
			},
			[]string{"result"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"stage"},
		),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "entities",
			Help:      "Entities in the latest compiled configuration.",
		}),
		problemSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "problem",
				Name:      "size",
				Help:      "Size of the latest assembled problem.",
			},
			[]string{"dimension"},
		),
		objective: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "objective",
			Help:      "Objective value of the latest solution.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the latest successful run.",
		}),
	}
	m.Registry.MustRegister(
		m.runs,
		m.stageDuration,
		m.entities,
		m.problemSize,
		m.objective,
		m.lastSuccess,
		prometheus.NewGoCollector(),
	)
	return m
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Stage starts timing a stage; call the returned function when it ends.
func (m *Metrics) Stage(stage string) func() {
	start := time.Now()
	return func() { m.ObserveStage(stage, time.Since(start)) }
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(err error) {
	if err != nil {
		m.runs.WithLabelValues("failure").Inc()
		return
	}
	m.runs.WithLabelValues("success").Inc()
	m.lastSuccess.SetToCurrentTime()
}

// SetEntities records the entity count of the latest configuration.
func (m *Metrics) SetEntities(n int) { m.entities.Set(float64(n)) }

// SetProblem records the size of the latest problem.
func (m *Metrics) SetProblem(variables, constraints, nonZeros int) {
	m.problemSize.WithLabelValues("variables").Set(float64(variables))
	m.problemSize.WithLabelValues("constraints").Set(float64(constraints))
	m.problemSize.WithLabelValues("nonzeros").Set(float64(nonZeros))
}

// SetObjective records the objective of the latest solution.
func (m *Metrics) SetObjective(v float64) { m.objective.Set(v) }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
