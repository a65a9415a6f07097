package analysis

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/go-porcupine/internal/conf"
	"github.com/tphakala/go-porcupine/internal/datastore"
	"github.com/tphakala/go-porcupine/internal/httpserver"
	"github.com/tphakala/go-porcupine/internal/logger"
	"github.com/tphakala/go-porcupine/internal/mqtt"
	"github.com/tphakala/go-porcupine/internal/myaudio"
	"github.com/tphakala/go-porcupine/internal/observability"
	"github.com/tphakala/go-porcupine/internal/wakeword"
)

const (
	frameQueueSize  = 32
	recentTTL       = 24 * time.Hour
	shutdownTimeout = 5 * time.Second
)

// captureFunc is replaced in tests.
var captureFunc = myaudio.Capture

// RealtimeAnalysis listens on the configured capture source until ctx is
// cancelled, sending detections to the log, the in-memory history and any
// enabled outputs.
func RealtimeAnalysis(ctx context.Context, settings *conf.Settings) error {
	log := GetLogger()

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	engine, err := openEngine(settings)
	if err != nil {
		m.Engine.RecordEngineLoad("", 0, 0, err)
		return err
	}
	m.Engine.RecordEngineLoad(engine.Version(), engine.FrameLength(), engine.SampleRate(), nil)
	defer func() {
		engine.Delete()
		m.Engine.RecordEngineRelease()
	}()

	recent := wakeword.NewRecentDetections(settings.Detection.RecentLimit, recentTTL)
	handlers := []wakeword.Handler{wakeword.LogHandler{}, recent}

	var history httpserver.DetectionLister = httpserver.DetectionListerFunc(
		func(_ context.Context, limit int) ([]wakeword.Detection, error) {
			return recent.Recent(limit), nil
		})

	if settings.Database.Enabled {
		store, err := datastore.New(&settings.Database, datastore.WithMetrics(m.Datastore))
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close datastore", logger.Error(err))
			}
		}()
		handlers = append(handlers, store)
		history = store
	}

	if settings.MQTT.Enabled {
		publisher, disconnect, err := startMQTT(ctx, settings, m)
		if err != nil {
			return err
		}
		defer disconnect()
		handlers = append(handlers, publisher)
	}

	keywords := keywordLabels(settings.Porcupine.Keywords)
	proc, err := wakeword.NewProcessor(engine, keywords,
		wakeword.WithSource(settings.Audio.Source),
		wakeword.WithRefractoryPeriod(settings.Detection.RefractoryPeriod),
		wakeword.WithRecorder(m.Engine),
		wakeword.WithHandlers(handlers...),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	// stop ends the run when the frame source is exhausted
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	if settings.HTTP.Enabled {
		server := httpserver.New(httpserver.Config{
			Listen: settings.HTTP.Listen,
			Engine: func() httpserver.EngineStatus {
				return httpserver.EngineStatus{
					Version:     engine.Version(),
					FrameLength: engine.FrameLength(),
					SampleRate:  engine.SampleRate(),
					Keywords:    keywords,
					Stats:       proc.Stats(),
				}
			},
			Detections: history,
			Metrics:    m.Handler(),
		})
		if err := server.Start(); err != nil {
			return err
		}
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	frames := make(chan []int16, frameQueueSize)
	levels := make(chan myaudio.AudioLevelData, 1)
	source := settings.Audio.Source

	g.Go(func() error {
		return captureFunc(runCtx, myaudio.CaptureConfig{
			Source:      source,
			SampleRate:  engine.SampleRate(),
			FrameLength: engine.FrameLength(),
			OnOverrun: func(dropped uint64) {
				m.Audio.AddDropped(source, dropped)
			},
		}, frames, levels)
	})

	g.Go(func() error {
		for {
			select {
			case <-runCtx.Done():
				return nil
			case level := <-levels:
				m.Audio.RecordLevel(source, level.Level, level.Clipping)
			}
		}
	})

	g.Go(func() error {
		defer stop()
		return proc.Run(runCtx, frames)
	})

	log.Info("realtime analysis started", logger.String("source", source))
	err = g.Wait()

	stats := proc.Stats()
	log.Info("realtime analysis stopped",
		logger.Int64("frames", stats.Frames),
		logger.Int64("detections", stats.Detections),
		logger.Int64("errors", stats.Errors))

	return err
}

// startMQTT connects the publisher. A broker that is down at startup is not
// fatal; paho keeps reconnecting in the background.
func startMQTT(ctx context.Context, settings *conf.Settings, m *observability.Metrics) (*mqtt.Publisher, func(), error) {
	cfg := mqtt.DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	if settings.MQTT.Topic != "" {
		cfg.Topic = settings.MQTT.Topic
	}
	if settings.MQTT.ClientID != "" {
		cfg.ClientID = settings.MQTT.ClientID
	}
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.Retain = settings.MQTT.Retain

	client, err := mqtt.NewClient(cfg, m.MQTT)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		GetLogger().Warn("mqtt connect failed, detections will be published once connected",
			logger.String("broker", cfg.Broker),
			logger.Error(err))
	}
	return mqtt.NewPublisher(client, cfg), client.Disconnect, nil
}
