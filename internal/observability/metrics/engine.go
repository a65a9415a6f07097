package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains metrics for wake word engine operations.
type EngineMetrics struct {
	DetectionsTotal     *prometheus.CounterVec
	FramesProcessed     prometheus.Counter
	ProcessDuration     prometheus.Histogram
	ProcessErrors       *prometheus.CounterVec
	EngineInfo          *prometheus.GaugeVec
	EngineLoaded        prometheus.Gauge
	OperationsTotal     *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	OperationErrorTotal *prometheus.CounterVec
}

// NewEngineMetrics creates engine metrics and registers them with registry.
func NewEngineMetrics(registry prometheus.Registerer) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.DetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "porcupine_detections_total",
			Help: "Total number of wake word detections partitioned by keyword.",
		},
		[]string{"keyword"},
	)
	m.FramesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "porcupine_frames_processed_total",
		Help: "Total number of audio frames passed to the engine.",
	})
	m.ProcessDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "porcupine_process_duration_seconds",
		Help:    "Time taken to process one audio frame.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12), // 50µs to ~100ms
	})
	m.ProcessErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "porcupine_process_errors_total",
			Help: "Total number of frame processing errors partitioned by category.",
		},
		[]string{"category"},
	)
	m.EngineInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "porcupine_engine_info",
			Help: "Engine version and frame format, always 1.",
		},
		[]string{"version", "frame_length", "sample_rate"},
	)
	m.EngineLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "porcupine_engine_loaded",
		Help: "Whether an engine instance is currently loaded (1) or not (0).",
	})
	m.OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "porcupine_operations_total",
			Help: "Total number of engine operations partitioned by outcome.",
		},
		[]string{"operation", "status"},
	)
	m.OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "porcupine_operation_duration_seconds",
			Help:    "Time taken by engine operations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"operation"},
	)
	m.OperationErrorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "porcupine_operation_errors_total",
			Help: "Total number of engine operation errors partitioned by type.",
		},
		[]string{"operation", "error_type"},
	)
}

// RecordDetection counts a detection of keyword.
func (m *EngineMetrics) RecordDetection(keyword string) {
	m.DetectionsTotal.WithLabelValues(keyword).Inc()
}

// RecordFrame records one processed frame and its outcome.
func (m *EngineMetrics) RecordFrame(d time.Duration, err error) {
	m.FramesProcessed.Inc()
	if err != nil {
		m.ProcessErrors.WithLabelValues(categorizeError(err)).Inc()
		return
	}
	m.ProcessDuration.Observe(d.Seconds())
}

// RecordEngineLoad records engine creation. Version and format are only
// published on success.
func (m *EngineMetrics) RecordEngineLoad(version string, frameLength, sampleRate int, err error) {
	if err != nil {
		m.OperationsTotal.WithLabelValues("engine_load", "error").Inc()
		m.OperationErrorTotal.WithLabelValues("engine_load", categorizeError(err)).Inc()
		m.EngineLoaded.Set(0)
		return
	}
	m.OperationsTotal.WithLabelValues("engine_load", "success").Inc()
	m.EngineInfo.Reset()
	m.EngineInfo.WithLabelValues(version, fmt.Sprint(frameLength), fmt.Sprint(sampleRate)).Set(1)
	m.EngineLoaded.Set(1)
}

// RecordEngineRelease marks the engine as released.
func (m *EngineMetrics) RecordEngineRelease() {
	m.OperationsTotal.WithLabelValues("engine_release", "success").Inc()
	m.EngineLoaded.Set(0)
}

// RecordOperation implements Recorder.
func (m *EngineMetrics) RecordOperation(operation, status string) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *EngineMetrics) RecordDuration(operation string, seconds float64) {
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *EngineMetrics) RecordError(operation, errorType string) {
	m.OperationErrorTotal.WithLabelValues(operation, errorType).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DetectionsTotal.Describe(ch)
	m.FramesProcessed.Describe(ch)
	m.ProcessDuration.Describe(ch)
	m.ProcessErrors.Describe(ch)
	m.EngineInfo.Describe(ch)
	m.EngineLoaded.Describe(ch)
	m.OperationsTotal.Describe(ch)
	m.OperationDuration.Describe(ch)
	m.OperationErrorTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DetectionsTotal.Collect(ch)
	m.FramesProcessed.Collect(ch)
	m.ProcessDuration.Collect(ch)
	m.ProcessErrors.Collect(ch)
	m.EngineInfo.Collect(ch)
	m.EngineLoaded.Collect(ch)
	m.OperationsTotal.Collect(ch)
	m.OperationDuration.Collect(ch)
	m.OperationErrorTotal.Collect(ch)
}

var _ Recorder = (*EngineMetrics)(nil)
