// Package metrics provides Prometheus metrics for the overlay pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Skip reasons recorded by the frame loop.
const (
	SkipNoFrame   = "no_frame"
	SkipZeroSize  = "zero_size"
	SkipNoSurface = "no_surface"
)

// Manager owns every metric. A nil *Manager is valid and records nothing,
// so components can be built without metrics in tests.
type Manager struct {
	registry *prometheus.Registry

	framesProcessed   prometheus.Counter
	framesSkipped     *prometheus.CounterVec
	detectionErrors   *prometheus.CounterVec
	detectionDuration *prometheus.HistogramVec
	modelLoads        *prometheus.CounterVec
	initOutcomes      *prometheus.CounterVec
	handPresent       prometheus.Gauge
}

// NewManager registers all metrics on a fresh registry.
func NewManager() *Manager {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)

	const namespace = "mudra"

	return &Manager{
		registry: reg,
		framesProcessed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frameloop",
			Name:      "frames_processed_total",
			Help:      "Frames that reached rendering",
		}),
		framesSkipped: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frameloop",
			Name:      "frames_skipped_total",
			Help:      "Iterations skipped before detection, by reason",
		}, []string{"reason"}),
		detectionErrors: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frameloop",
			Name:      "detection_errors_total",
			Help:      "Detector calls that returned an error, by detector",
		}, []string{"detector"}),
		detectionDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "frameloop",
			Name:      "detection_duration_seconds",
			Help:      "Latency of a single detector call",
			Buckets:   []float64{.002, .005, .01, .02, .033, .05, .1, .25, .5, 1},
		}, []string{"detector"}),
		modelLoads: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "model_load_attempts_total",
			Help:      "Model load attempts by model and outcome",
		}, []string{"model", "outcome"}),
		initOutcomes: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "initializations_total",
			Help:      "Initializations by outcome",
		}, []string{"outcome"}),
		handPresent: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gesture",
			Name:      "control_hand_present",
			Help:      "1 when the last processed frame produced a transform",
		}),
	}
}

// Registry returns the registry backing this manager.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) FrameProcessed() {
	if m == nil {
		return
	}
	m.framesProcessed.Inc()
}

func (m *Manager) FrameSkipped(reason string) {
	if m == nil {
		return
	}
	m.framesSkipped.WithLabelValues(reason).Inc()
}

func (m *Manager) DetectionError(detector string) {
	if m == nil {
		return
	}
	m.detectionErrors.WithLabelValues(detector).Inc()
}

func (m *Manager) ObserveDetection(detector string, d time.Duration) {
	if m == nil {
		return
	}
	m.detectionDuration.WithLabelValues(detector).Observe(d.Seconds())
}

func (m *Manager) ModelLoad(model, outcome string) {
	if m == nil {
		return
	}
	m.modelLoads.WithLabelValues(model, outcome).Inc()
}

func (m *Manager) Initialization(outcome string) {
	if m == nil {
		return
	}
	m.initOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Manager) HandPresent(present bool) {
	if m == nil {
		return
	}
	if present {
		m.handPresent.Set(1)
	} else {
		m.handPresent.Set(0)
	}
}
