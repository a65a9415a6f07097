package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics tracks the detection publisher's broker connection.
type MQTTMetrics struct {
	Connected       prometheus.Gauge
	LastConnected   prometheus.Gauge
	Published       *prometheus.CounterVec
	PayloadBytes    prometheus.Histogram
	PublishDuration prometheus.Histogram
	Reconnects      prometheus.Counter
	Errors          *prometheus.CounterVec
}

// NewMQTTMetrics creates MQTT metrics and registers them with registry.
func NewMQTTMetrics(registry prometheus.Registerer) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "porcupine_mqtt_connected",
			Help: "1 while connected to the MQTT broker.",
		}),
		LastConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "porcupine_mqtt_last_connected_timestamp_seconds",
			Help: "Unix time of the last successful broker connection.",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "porcupine_mqtt_published_total",
			Help: "Messages published partitioned by topic and outcome.",
		}, []string{"topic", "status"}),
		PayloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "porcupine_mqtt_payload_bytes",
			Help:    "Size of published payloads.",
			Buckets: prometheus.ExponentialBuckets(64, 2, 8),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "porcupine_mqtt_publish_duration_seconds",
			Help:    "Time from publish until broker acknowledgement.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "porcupine_mqtt_reconnects_total",
			Help: "Reconnection attempts after a lost connection.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "porcupine_mqtt_errors_total",
			Help: "MQTT errors partitioned by operation.",
		}, []string{"operation"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// SetConnected records the connection state.
func (m *MQTTMetrics) SetConnected(connected bool) {
	if !connected {
		m.Connected.Set(0)
		return
	}
	m.Connected.Set(1)
	m.LastConnected.SetToCurrentTime()
}

// RecordPublish records one publish to topic that started at start.
func (m *MQTTMetrics) RecordPublish(topic string, size int, start time.Time, err error) {
	if err != nil {
		m.Published.WithLabelValues(topic, "error").Inc()
		m.Errors.WithLabelValues("publish").Inc()
		return
	}
	m.Published.WithLabelValues(topic, "success").Inc()
	m.PublishDuration.Observe(time.Since(start).Seconds())
	m.PayloadBytes.Observe(float64(size))
}

// RecordReconnect counts a reconnection attempt.
func (m *MQTTMetrics) RecordReconnect() { m.Reconnects.Inc() }

// RecordError counts a failed operation other than publish.
func (m *MQTTMetrics) RecordError(operation string) {
	m.Errors.WithLabelValues(operation).Inc()
}

// Describe implements prometheus.Collector.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.Connected.Desc()
	ch <- m.LastConnected.Desc()
	m.Published.Describe(ch)
	ch <- m.PayloadBytes.Desc()
	ch <- m.PublishDuration.Desc()
	ch <- m.Reconnects.Desc()
	m.Errors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.Connected
	ch <- m.LastConnected
	m.Published.Collect(ch)
	ch <- m.PayloadBytes
	ch <- m.PublishDuration
	ch <- m.Reconnects
	m.Errors.Collect(ch)
}
