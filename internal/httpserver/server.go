// Package httpserver serves health, metrics and detection status over HTTP.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
	"github.com/tphakala/go-porcupine/internal/wakeword"
)

const (
	defaultDetectionLimit = 20
	maxDetectionLimit     = 1000
)

// EngineStatus describes the running engine.
type EngineStatus struct {
	Version     string         `json:"version"`
	FrameLength int            `json:"frame_length"`
	SampleRate  int            `json:"sample_rate"`
	Keywords    []string       `json:"keywords"`
	Stats       wakeword.Stats `json:"stats"`
}

// DetectionLister returns up to limit recent detections, newest first.
type DetectionLister interface {
	Recent(ctx context.Context, limit int) ([]wakeword.Detection, error)
}

// DetectionListerFunc adapts a function to DetectionLister.
type DetectionListerFunc func(ctx context.Context, limit int) ([]wakeword.Detection, error)

func (f DetectionListerFunc) Recent(ctx context.Context, limit int) ([]wakeword.Detection, error) {
	return f(ctx, limit)
}

// Config holds the server's dependencies.
type Config struct {
	Listen     string
	Engine     func() EngineStatus
	Detections DetectionLister
	Metrics    http.Handler // nil disables /metrics
}

// Server is the status HTTP server.
type Server struct {
	Echo    *echo.Echo
	config  Config
	started time.Time

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// New creates a server and registers its routes.
func New(config Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = logger.NewEchoLoggerAdapter(GetLogger().Module("echo"))

	s := &Server{Echo: e, config: config, started: time.Now()}
	s.configureMiddleware()
	s.initRoutes()
	return s
}

func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString()[:8] },
	}))
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				GetLogger().Warn("request failed", append(fields, logger.Error(v.Error))...)
				return nil
			}
			GetLogger().Debug("request", fields...)
			return nil
		},
	}))
	s.Echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     6,
		MinLength: 2048,
	}))
}

func (s *Server) initRoutes() {
	s.Echo.GET("/healthz", s.handleHealth)
	if s.config.Metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.config.Metrics))
	}

	v1 := s.Echo.Group("/api/v1")
	v1.GET("/engine", s.handleEngine)
	v1.GET("/detections", s.handleDetections)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleEngine(c echo.Context) error {
	if s.config.Engine == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "engine not available")
	}
	return c.JSON(http.StatusOK, s.config.Engine())
}

func (s *Server) handleDetections(c echo.Context) error {
	if s.config.Detections == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "detection history not available")
	}

	limit := defaultDetectionLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxDetectionLimit {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxDetectionLimit))
		}
		limit = n
	}

	detections, err := s.config.Detections.Recent(c.Request().Context(), limit)
	if err != nil {
		GetLogger().Error("failed to list detections", logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list detections")
	}
	if detections == nil {
		detections = []wakeword.Detection{}
	}
	return c.JSON(http.StatusOK, detections)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return errors.New(err).
			Component("httpserver").
			Category(errors.CategoryNetwork).
			Context("listen", s.config.Listen).
			Build()
	}

	s.mu.Lock()
	s.listener = ln
	s.done = make(chan struct{})
	s.Echo.Listener = ln
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := s.Echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			GetLogger().Error("http server stopped", logger.Error(err))
		}
	}()

	GetLogger().Info("http server listening", logger.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if err := s.Echo.Shutdown(ctx); err != nil {
		return err
	}
	if done != nil {
		<-done
	}
	return nil
}

// GetLogger returns the httpserver logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("http")
}
