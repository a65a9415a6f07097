package errors

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusError struct{ category ErrorCategory }

func (e statusError) Error() string                { return "native status" }
func (e statusError) ErrorCategory() ErrorCategory { return e.category }

type countingReporter struct {
	reported atomic.Int32
}

func (r *countingReporter) ReportError(ee *EnhancedError) {
	r.reported.Add(1)
	ee.MarkReported()
}

func (r *countingReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.ComponentName())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
}

func TestBuildUsesCategorizedError(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	ee := New(statusError{category: CategoryActivation}).Component("porcupine").Build()

	assert.Equal(t, CategoryActivation, ee.Category)
	assert.Equal(t, "porcupine", ee.ComponentName())
	assert.True(t, IsCategory(ee, CategoryActivation))
}

func TestBuilderContext(t *testing.T) {
	ee := Newf("keyword %q missing", "jarvis").
		Component("bundle").
		Category(CategoryResource).
		FileContext("/opt/pv/jarvis_linux.ppn", 2048).
		ResourceContext("keyword", "").
		Timing("resolve_keyword", 15*time.Millisecond).
		Build()

	ctx := ee.GetContext()
	assert.Equal(t, "absolute-path", ctx["file_type"])
	assert.Equal(t, "ppn", ctx["file_extension"])
	assert.Equal(t, "small", ctx["file_size_category"])
	assert.Equal(t, "keyword", ctx["resource"])
	assert.Equal(t, "packaged", ctx["resource_origin"])
	assert.Equal(t, "resolve_keyword", ctx["operation"])
	assert.Equal(t, int64(15), ctx["duration_ms"])

	// returned context is a copy
	ctx["file_type"] = "changed"
	assert.Equal(t, "absolute-path", ee.GetContext()["file_type"])
}

func TestEnhancedErrorUnwrap(t *testing.T) {
	sentinel := NewStd("sentinel")
	ee := New(fmt.Errorf("wrapped: %w", sentinel)).Category(CategoryFileIO).Build()

	require.ErrorIs(t, ee, sentinel)
	assert.ErrorIs(t, ee, &EnhancedError{Category: CategoryFileIO})
	assert.NotErrorIs(t, ee, &EnhancedError{Category: CategoryDatabase})
	assert.False(t, IsNotFound(ee))
}

func TestReporterAndHooks(t *testing.T) {
	reporter := &countingReporter{}
	var hooked atomic.Int32

	SetTelemetryReporter(reporter)
	AddErrorHook(func(*EnhancedError) { hooked.Add(1) })
	t.Cleanup(func() {
		SetTelemetryReporter(nil)
		ClearErrorHooks()
	})

	require.True(t, hasActiveReporting.Load())

	ee := New(NewStd("model file could not be opened")).Build()

	assert.Equal(t, int32(1), reporter.reported.Load())
	assert.Equal(t, int32(1), hooked.Load())
	assert.True(t, ee.IsReported())
	assert.NotEmpty(t, ee.ComponentName())

	SetTelemetryReporter(nil)
	ClearErrorHooks()
	assert.False(t, hasActiveReporting.Load())
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		msg       string
		component string
		want      ErrorCategory
	}{
		{"activation refused", "porcupine", CategoryActivation},
		{"dlopen failed", "pvnative", CategoryNativeLibrary},
		{"keyword file not found", "bundle", CategoryResource},
		{"could not open file", "myaudio", CategoryFileIO},
		{"connection lost", "mqtt", CategoryMQTTConnection},
		{"connection lost", "httpserver", CategoryNetwork},
		{"sensitivity count mismatch", "porcupine", CategoryValidation},
		{"something odd", "datastore", CategoryDatabase},
		{"something odd", "elsewhere", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.msg+"/"+tt.component, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCategory(NewStd(tt.msg), tt.component))
		})
	}
}

func TestRegexPrecompilation(t *testing.T) {
	t.Parallel()

	scrubbed := basicURLScrub("Error at https://api.example.com?api_key=secret123&token=abc")
	assert.Equal(t, "Error at https://api.example.com?[REDACTED]", scrubbed)

	scrubbed = basicURLScrub("Config error: api_key=secret123 is invalid")
	assert.Contains(t, scrubbed, "[API_KEY_REDACTED]")

	scrubbed = basicURLScrub("Auth failed with token=abc123 and auth=xyz789")
	assert.NotContains(t, scrubbed, "abc123")
	assert.NotContains(t, scrubbed, "xyz789")
}

func TestScrubAccessKey(t *testing.T) {
	t.Parallel()

	key := strings.Repeat("Ab3+", 14) + "=="
	scrubbed := basicURLScrub("activation refused for " + key)
	assert.NotContains(t, scrubbed, key)

	scrubbed = basicURLScrub("AccessKey: s3cr3t rejected")
	assert.NotContains(t, scrubbed, "s3cr3t")
}

func TestErrorTitle(t *testing.T) {
	ee := New(NewStd("boom")).
		Component("porcupine").
		Category(CategoryEngineInit).
		Context("operation", "engine_init").
		Build()

	assert.Equal(t, "Porcupine Engine Initialization Error Engine Init", errorTitle(ee))
}

func TestComponentFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		function string
		want     string
	}{
		{"github.com/tphakala/go-porcupine/pkg/porcupine.New", "porcupine"},
		{"github.com/tphakala/go-porcupine/internal/conf.ValidateSettings", "configuration"},
		{"github.com/tphakala/go-porcupine/internal/mqtt.(*client).Publish", "mqtt"},
		{"github.com/tphakala/go-porcupine/internal/myaudio.ReadFile.func1", "audio"},
		{"github.com/tphakala/go-porcupine/cmd.RootCommand.func1", "cmd"},
		{"github.com/tphakala/go-porcupine/internal/errors.(*ErrorBuilder).Build", ""},
		{"testing.tRunner", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, componentFor(tt.function), tt.function)
	}
}

func TestPrivacyScrubberRunsFirst(t *testing.T) {
	SetPrivacyScrubber(func(s string) string { return strings.ReplaceAll(s, "kitchen", "[ROOM]") })
	t.Cleanup(func() { SetPrivacyScrubber(nil) })

	out := scrubMessage("kitchen mic failed, token=abc123")
	assert.Equal(t, "[ROOM] mic failed, [API_KEY_REDACTED]", out)
}

func TestNetworkContext(t *testing.T) {
	ee := New(NewStd("refused")).
		NetworkContext("ssl://broker.local:8883", 2*time.Second).
		Build()

	ctx := ee.GetContext()
	assert.Equal(t, "mqtt-broker-tls", ctx["endpoint"])
	assert.InDelta(t, 2.0, ctx["timeout_seconds"], 0)
}
