package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains metrics for detection history storage.
type DatastoreMetrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec
}

// NewDatastoreMetrics creates datastore metrics and registers them with registry.
func NewDatastoreMetrics(registry prometheus.Registerer) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datastore_operations_total",
			Help: "Total number of datastore operations partitioned by outcome.",
		}, []string{"operation", "status"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datastore_operation_duration_seconds",
			Help:    "Time taken by datastore operations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
		}, []string{"operation"}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datastore_operation_errors_total",
			Help: "Total number of datastore errors partitioned by type.",
		}, []string{"operation", "error_type"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

// RecordOperation records an operation that started at start.
func (m *DatastoreMetrics) RecordOperation(operation string, start time.Time, err error) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.OperationsTotal.WithLabelValues(operation, "error").Inc()
		m.OperationErrors.WithLabelValues(operation, categorizeError(err)).Inc()
		return
	}
	m.OperationsTotal.WithLabelValues(operation, "success").Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.OperationsTotal.Describe(ch)
	m.OperationDuration.Describe(ch)
	m.OperationErrors.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.OperationsTotal.Collect(ch)
	m.OperationDuration.Collect(ch)
	m.OperationErrors.Collect(ch)
}
