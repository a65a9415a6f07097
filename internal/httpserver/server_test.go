package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-porcupine/internal/logger"
	"github.com/tphakala/go-porcupine/internal/wakeword"
)

func newTestServer(t *testing.T, lister DetectionLister) *Server {
	t.Helper()
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	return New(Config{
		Listen: "127.0.0.1:0",
		Engine: func() EngineStatus {
			return EngineStatus{
				Version:     "3.0.0",
				FrameLength: 512,
				SampleRate:  16000,
				Keywords:    []string{"porcupine"},
				Stats:       wakeword.Stats{Frames: 10},
			}
		},
		Detections: lister,
		Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestEchoLogsThroughLogger(t *testing.T) {
	s := newTestServer(t, nil)
	assert.IsType(t, &logger.EchoLoggerAdapter{}, s.Echo.Logger)
}

func TestEngineStatus(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/api/v1/engine")
	require.Equal(t, http.StatusOK, rec.Code)

	var got EngineStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "3.0.0", got.Version)
	assert.Equal(t, 512, got.FrameLength)
	assert.Equal(t, int64(10), got.Stats.Frames)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_total 1")
}

func TestDetections(t *testing.T) {
	var gotLimit int
	lister := DetectionListerFunc(func(_ context.Context, limit int) ([]wakeword.Detection, error) {
		gotLimit = limit
		return []wakeword.Detection{{ID: "a", Keyword: "porcupine"}}, nil
	})
	s := newTestServer(t, lister)

	rec := get(t, s, "/api/v1/detections")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultDetectionLimit, gotLimit)

	var got []wakeword.Detection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "porcupine", got[0].Keyword)

	rec = get(t, s, "/api/v1/detections?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)
}

func TestDetectionsEmptyListIsArray(t *testing.T) {
	lister := DetectionListerFunc(func(context.Context, int) ([]wakeword.Detection, error) { return nil, nil })
	rec := get(t, newTestServer(t, lister), "/api/v1/detections")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestDetectionsErrors(t *testing.T) {
	failing := DetectionListerFunc(func(context.Context, int) ([]wakeword.Detection, error) {
		return nil, fmt.Errorf("database locked")
	})

	tests := []struct {
		name   string
		lister DetectionLister
		target string
		want   int
	}{
		{"bad limit", failing, "/api/v1/detections?limit=abc", http.StatusBadRequest},
		{"limit too large", failing, "/api/v1/detections?limit=5000", http.StatusBadRequest},
		{"lister failure", failing, "/api/v1/detections", http.StatusInternalServerError},
		{"no history", nil, "/api/v1/detections", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(t, tt.lister), tt.target)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.Start())
	require.NotNil(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
