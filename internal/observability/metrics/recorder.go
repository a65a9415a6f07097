// Package metrics provides Prometheus collectors for the wake word detector.
package metrics

// Recorder defines a minimal interface for recording metrics, so components
// can depend on an abstraction rather than on a concrete collector.
type Recorder interface {
	// RecordOperation records an operation and its outcome ("success", "error").
	RecordOperation(operation, status string)

	// RecordDuration records how long an operation took, in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error of errorType raised by operation.
	RecordError(operation, errorType string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordOperation(string, string) {}
func (NopRecorder) RecordDuration(string, float64) {}
func (NopRecorder) RecordError(string, string)     {}

var _ Recorder = NopRecorder{}
