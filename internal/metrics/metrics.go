// Package metrics exports recorder and stage counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
	"github.com/GriffinCanCode/cliprelay/internal/recorder"
	"github.com/GriffinCanCode/cliprelay/internal/resilience"
)

// Stage names used as label values.
const (
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
)

// Metrics holds the pipeline's collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	clipsSaved    *prometheus.CounterVec
	cycleFailures *prometheus.CounterVec
	workerState   *prometheus.GaugeVec
	activeWorker  prometheus.Gauge
	cycleSeconds  prometheus.Histogram
	clipFrames    prometheus.Gauge

	stageResults *prometheus.CounterVec
	stageSeconds *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
}

// New creates the collectors, including process and Go runtime stats.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	return &Metrics{
		reg: reg,

		clipsSaved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cliprelay_clips_saved_total",
			Help: "Clips written to disk, by worker",
		}, []string{"worker"}),
		cycleFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cliprelay_cycle_failures_total",
			Help: "Recording cycles that produced no clip, by worker and error code",
		}, []string{"worker", "code"}),
		workerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cliprelay_worker_state",
			Help: "Current state of each worker (0 waiting, 1 capturing, 2 writing, 3 handoff, 4 stopped)",
		}, []string{"worker"}),
		activeWorker: f.NewGauge(prometheus.GaugeOpts{
			Name: "cliprelay_active_worker",
			Help: "Worker that last started capturing",
		}),
		cycleSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cliprelay_cycle_seconds",
			Help:    "Capture plus write time of saved clips",
			Buckets: []float64{0.5, 1, 2, 2.5, 3, 3.25, 3.5, 4, 5, 10},
		}),
		clipFrames: f.NewGauge(prometheus.GaugeOpts{
			Name: "cliprelay_clip_frames",
			Help: "Frame count of the last saved clip",
		}),
		stageResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cliprelay_stage_results_total",
			Help: "Files handled by downstream stages, by outcome",
		}, []string{"stage", "outcome"}),
		stageSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cliprelay_stage_seconds",
			Help:    "Remote call time per handled file",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cliprelay_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"breaker"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(m.reg, promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}

// StateChanged implements recorder.Observer.
func (m *Metrics) StateChanged(worker int, s recorder.State) {
	m.workerState.WithLabelValues(strconv.Itoa(worker)).Set(float64(s))
	if s == recorder.Capturing {
		m.activeWorker.Set(float64(worker))
	}
}

// ClipSaved implements recorder.Observer.
func (m *Metrics) ClipSaved(s recorder.Saved) {
	m.clipsSaved.WithLabelValues(strconv.Itoa(s.Worker)).Inc()
	m.cycleSeconds.Observe(s.Took.Seconds())
	m.clipFrames.Set(float64(s.Frames))
}

// CycleFailed implements recorder.Observer.
func (m *Metrics) CycleFailed(worker int, err error) {
	m.cycleFailures.WithLabelValues(strconv.Itoa(worker), string(apperrors.CodeOf(err))).Inc()
}

// StageDone records one file handled by a stage.
func (m *Metrics) StageDone(stage string, took time.Duration, err error) {
	if err != nil {
		m.stageResults.WithLabelValues(stage, "error").Inc()
		return
	}
	m.stageResults.WithLabelValues(stage, "ok").Inc()
	m.stageSeconds.WithLabelValues(stage).Observe(took.Seconds())
}

// BreakerChanged is a resilience.Breaker hook.
func (m *Metrics) BreakerChanged(name string, _, to resilience.State) {
	m.breakerState.WithLabelValues(name).Set(float64(to))
}

var _ recorder.Observer = (*Metrics)(nil)
