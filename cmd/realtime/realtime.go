package realtime

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/go-porcupine/internal/analysis"
	"github.com/tphakala/go-porcupine/internal/conf"
	"github.com/tphakala/go-porcupine/internal/logger"
)

// Command creates the realtime command for live capture detection.
func Command(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Detect keywords in live audio",
		Long:  "Capture audio from a device and report wake word detections until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go rotateLogsOnHangup(ctx)
			return analysis.RealtimeAnalysis(ctx, conf.GetSettings())
		},
	}

	if err := setupFlags(cmd, v); err != nil {
		panic(err)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Flags()
	flags.String("source", "", "Audio capture source (\"sysdefault\", device name or ID)")
	flags.Bool("http", false, "Enable the HTTP status endpoint")
	flags.String("listen", "", "Listen address of the HTTP status endpoint")
	flags.Bool("mqtt", false, "Publish detections to MQTT")
	flags.String("broker", "", "MQTT broker URL")
	flags.Bool("db", false, "Store detections in the SQLite database")

	bindings := map[string]string{
		"audio.source":     "source",
		"http.enabled":     "http",
		"http.listen":      "listen",
		"mqtt.enabled":     "mqtt",
		"mqtt.broker":      "broker",
		"database.enabled": "db",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// rotateLogsOnHangup reopens log files on SIGHUP until ctx is done.
func rotateLogsOnHangup(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := logger.Global().Rotate(); err != nil {
				logger.Global().Module("cmd").Warn("log rotation failed", logger.Error(err))
			}
		}
	}
}
