package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "barcode_scanner"

var (
	detectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "detect_attempts_total",
		Help:      "Recognition calls made against live frames",
	})
	detectMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "detect_misses_total",
		Help:      "Live frames that produced no candidate",
	})
	detectFrameErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "detect_frame_errors_total",
		Help:      "Per-frame recognition failures treated as transient",
	})
	detections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "detections_total",
			Help:      "Codes emitted, by acquisition method and format",
		},
		[]string{"method", "format"},
	)
	scanErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Scan errors emitted, by operation and kind",
		},
		[]string{"op", "kind"},
	)
	stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "state_transitions_total",
			Help:      "Camera state transitions, by target state",
		},
		[]string{"to"},
	)
	acquireSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "acquire_duration_seconds",
		Help:      "Time from start until the first frame is available",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

func recordDetection(r ScanResult) {
	detections.WithLabelValues(string(r.Method), r.Format.String()).Inc()
}

func recordError(op string, e *ScanError) {
	scanErrors.WithLabelValues(op, string(e.Kind)).Inc()
}
