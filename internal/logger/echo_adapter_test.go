package logger_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	echo_log "github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-porcupine/internal/logger"
)

var _ echo.Logger = (*logger.EchoLoggerAdapter)(nil)

func TestEchoLoggerAdapterRoutesLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	a := logger.NewEchoLoggerAdapter(logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC))

	a.Debugf("listening on %s", ":8080")
	a.Warn("slow ", "client")
	a.Errorj(echo_log.JSON{"status": 500})

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 3)
	assert.Equal(t, "DEBUG", entries[0]["level"])
	assert.Equal(t, "listening on :8080", entries[0]["msg"])
	assert.Equal(t, "WARN", entries[1]["level"])
	assert.Equal(t, "slow client", entries[1]["msg"])
	assert.Equal(t, "ERROR", entries[2]["level"])
	assert.Equal(t, map[string]any{"status": float64(500)}, entries[2]["data"])
}

func TestEchoLoggerAdapterLevelThreshold(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	a := logger.NewEchoLoggerAdapter(logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC))
	a.SetLevel(echo_log.WARN)
	assert.Equal(t, echo_log.WARN, a.Level())

	a.Debug("dropped")
	a.Print("dropped")
	a.Warn("kept")

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
}

func TestEchoLoggerAdapterFatalPanics(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	a := logger.NewEchoLoggerAdapter(logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC))

	assert.PanicsWithValue(t, "listener closed", func() { a.Fatalf("listener %s", "closed") })

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0]["level"])
}
