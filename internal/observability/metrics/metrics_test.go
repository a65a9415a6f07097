package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-porcupine/internal/errors"
)

func TestEngineMetricsDetectionsAndFrames(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	m.RecordDetection("porcupine")
	m.RecordDetection("porcupine")
	m.RecordDetection("alexa")
	m.RecordFrame(time.Millisecond, nil)
	m.RecordFrame(0, errors.New(errors.NewStd("boom")).Category(errors.CategoryEngineProcess).Build())

	assert.InDelta(t, 2, testutil.ToFloat64(m.DetectionsTotal.WithLabelValues("porcupine")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DetectionsTotal.WithLabelValues("alexa")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.FramesProcessed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProcessErrors.WithLabelValues("engine_processing")), 0)
}

func TestEngineMetricsLoadAndRelease(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	m.RecordEngineLoad("3.0.0", 512, 16000, nil)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EngineLoaded), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EngineInfo.WithLabelValues("3.0.0", "512", "16000")), 0)

	m.RecordEngineRelease()
	assert.InDelta(t, 0, testutil.ToFloat64(m.EngineLoaded), 0)

	m.RecordEngineLoad("", 0, 0, errors.NewStd("no library"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("engine_load", "error")), 0)
}

func TestEngineMetricsImplementsRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	var r Recorder = m
	r.RecordOperation("file", "success")
	r.RecordDuration("file", 0.25)
	r.RecordError("file", "file_io")

	assert.InDelta(t, 1, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("file", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OperationErrorTotal.WithLabelValues("file", "file_io")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))
}

func TestAudioMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewAudioMetrics(registry)
	require.NoError(t, err)

	m.RecordLevel("mic", 40, false)
	m.RecordLevel("mic", 97, true)
	m.AddDropped("mic", 512)

	assert.InDelta(t, 97, testutil.ToFloat64(m.Level.WithLabelValues("mic")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.FramesTotal.WithLabelValues("mic")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ClippingTotal.WithLabelValues("mic")), 0)
	assert.InDelta(t, 512, testutil.ToFloat64(m.DroppedSamples.WithLabelValues("mic")), 0)
}

func TestMQTTMetricsExposition(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewMQTTMetrics(registry)
	require.NoError(t, err)

	m.SetConnected(true)
	m.RecordPublish("porcupine/detection", 180, time.Now(), nil)
	m.RecordPublish("porcupine/detection", 180, time.Now(), errors.NewStd("timeout"))

	expected := `
# HELP porcupine_mqtt_published_total Messages published partitioned by topic and outcome.
# TYPE porcupine_mqtt_published_total counter
porcupine_mqtt_published_total{status="error",topic="porcupine/detection"} 1
porcupine_mqtt_published_total{status="success",topic="porcupine/detection"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "porcupine_mqtt_published_total"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.Connected), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues("publish")), 0)

	m.SetConnected(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.Connected), 0)
}

func TestDatastoreMetricsRecordsErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(registry)
	require.NoError(t, err)

	m.RecordOperation("save", time.Now(), nil)
	m.RecordOperation("save", time.Now(), errors.New(errors.NewStd("locked")).Category(errors.CategoryDatabase).Build())

	families, err := registry.Gather()
	require.NoError(t, err)

	var errorsFamily *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "datastore_operation_errors_total" {
			errorsFamily = f
		}
	}
	require.NotNil(t, errorsFamily)
	require.Len(t, errorsFamily.GetMetric(), 1)

	labels := map[string]string{}
	for _, lp := range errorsFamily.GetMetric()[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	assert.Equal(t, map[string]string{"operation": "save", "error_type": "database"}, labels)
}

func TestDoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewEngineMetrics(registry)
	require.NoError(t, err)
	_, err = NewEngineMetrics(registry)
	require.Error(t, err)
}

func TestCategorizeError(t *testing.T) {
	assert.Equal(t, "none", categorizeError(nil))
	assert.Equal(t, "generic", categorizeError(errors.NewStd("plain")))
}
