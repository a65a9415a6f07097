// Package cmd assembles the porcupine command line.
package cmd

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/go-porcupine/cmd/config"
	"github.com/tphakala/go-porcupine/cmd/devices"
	"github.com/tphakala/go-porcupine/cmd/file"
	"github.com/tphakala/go-porcupine/cmd/history"
	"github.com/tphakala/go-porcupine/cmd/keywords"
	"github.com/tphakala/go-porcupine/cmd/realtime"
	"github.com/tphakala/go-porcupine/cmd/version"
	"github.com/tphakala/go-porcupine/internal/buildinfo"
	"github.com/tphakala/go-porcupine/internal/conf"
	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
)

const sentryFlushTimeout = 2 * time.Second

// RootCommand creates the root command and its subcommands. Settings are
// loaded into v before any subcommand runs.
func RootCommand(v *viper.Viper, build *buildinfo.Context) *cobra.Command {
	var (
		configFile string
		central    *logger.CentralLogger
	)

	rootCmd := &cobra.Command{
		Use:           "porcupine",
		Short:         "Porcupine wake word detection",
		Long:          "Detect wake words in audio files or live capture with the Porcupine engine.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version(),
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: search standard locations)")
	if err := setupFlags(rootCmd, v); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		file.Command(),
		realtime.Command(v),
		keywords.Command(),
		version.Command(build),
		devices.Command(),
		history.Command(),
		config.Command(v),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// Skip setup for commands that never touch settings
		switch cmd.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return nil
		}
		settings, err := conf.Load(v, configFile)
		if err != nil {
			return err
		}
		central, err = initialize(settings, build)
		return err
	}

	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return shutdown(central)
	}

	return rootCmd
}

// setupFlags defines flags shared by every subcommand and binds them into v.
func setupFlags(rootCmd *cobra.Command, v *viper.Viper) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("access-key", "", "Picovoice access key")
	flags.StringSliceP("keywords", "k", nil, "Built-in keyword names or .ppn keyword files")
	flags.StringSliceP("sensitivities", "s", nil, "Sensitivity per keyword, between 0 and 1")
	flags.String("model", "", "Path to the model parameter file")
	flags.String("library", "", "Path to the native engine library")
	flags.StringSlice("resource-dir", nil, "Directories searched for engine resources")
	flags.Duration("refractory", 0, "Ignore repeats of a keyword within this period")

	bindings := map[string]string{
		"debug":                       "debug",
		"porcupine.access_key":        "access-key",
		"porcupine.keywords":          "keywords",
		"porcupine.sensitivities":     "sensitivities",
		"porcupine.model_path":        "model",
		"porcupine.library_path":      "library",
		"porcupine.resource_dirs":     "resource-dir",
		"detection.refractory_period": "refractory",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// initialize sets up logging and error telemetry from loaded settings.
func initialize(settings *conf.Settings, build *buildinfo.Context) (*logger.CentralLogger, error) {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, errors.New(err).
			Component("cmd").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_logging").
			Build()
	}
	logger.SetGlobal(central)

	if settings.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              settings.Sentry.DSN,
			SampleRate:       1.0,
			AttachStacktrace: false,
			Environment:      "production",
			ServerName:       "",
			Release:          "go-porcupine@" + build.Version(),
		}); err != nil {
			return central, errors.New(err).
				Component("cmd").
				Category(errors.CategoryConfiguration).
				Context("operation", "init_sentry").
				Build()
		}
		errors.SetPrivacyScrubber(logger.RedactSensitiveData)
		errors.SetTelemetryReporter(errors.NewSentryReporter(true))
		central.Module("cmd").Info("error reporting enabled")
	}

	return central, nil
}

func shutdown(central *logger.CentralLogger) error {
	if settings := conf.GetSettings(); settings != nil && settings.Sentry.Enabled {
		sentry.Flush(sentryFlushTimeout)
	}
	if central == nil {
		return nil
	}
	return central.Close()
}
