package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AudioMetrics contains metrics for audio input.
type AudioMetrics struct {
	Level          *prometheus.GaugeVec
	ClippingTotal  *prometheus.CounterVec
	FramesTotal    *prometheus.CounterVec
	DroppedSamples *prometheus.CounterVec
}

// NewAudioMetrics creates audio metrics and registers them with registry.
func NewAudioMetrics(registry prometheus.Registerer) (*AudioMetrics, error) {
	m := &AudioMetrics{
		Level: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "porcupine_audio_level",
			Help: "Most recent audio level of a source on a 0-100 scale.",
		}, []string{"source"}),
		ClippingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "porcupine_audio_clipping_frames_total",
			Help: "Total number of frames containing clipped samples.",
		}, []string{"source"}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "porcupine_audio_frames_total",
			Help: "Total number of frames read from a source.",
		}, []string{"source"}),
		DroppedSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "porcupine_audio_dropped_samples_total",
			Help: "Total number of samples dropped because the consumer fell behind.",
		}, []string{"source"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register audio metrics: %w", err)
	}
	return m, nil
}

// RecordLevel records a level reading for source.
func (m *AudioMetrics) RecordLevel(source string, level int, clipping bool) {
	m.Level.WithLabelValues(source).Set(float64(level))
	m.FramesTotal.WithLabelValues(source).Inc()
	if clipping {
		m.ClippingTotal.WithLabelValues(source).Inc()
	}
}

// AddDropped adds n dropped samples for source.
func (m *AudioMetrics) AddDropped(source string, n uint64) {
	m.DroppedSamples.WithLabelValues(source).Add(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *AudioMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Level.Describe(ch)
	m.ClippingTotal.Describe(ch)
	m.FramesTotal.Describe(ch)
	m.DroppedSamples.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *AudioMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Level.Collect(ch)
	m.ClippingTotal.Collect(ch)
	m.FramesTotal.Collect(ch)
	m.DroppedSamples.Collect(ch)
}
