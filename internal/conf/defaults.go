package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/go-porcupine/internal/logger"
)

// setDefaultConfig sets default values for every key viper should know about,
// which also lets environment variables override keys absent from the file.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	// Porcupine engine
	v.SetDefault("porcupine.access_key", "")
	v.SetDefault("porcupine.library_path", "")
	v.SetDefault("porcupine.model_path", "")
	v.SetDefault("porcupine.resource_dirs", []string{})
	v.SetDefault("porcupine.keywords", []string{"porcupine"})
	v.SetDefault("porcupine.sensitivities", []float32{})

	// Audio capture
	v.SetDefault("audio.source", "sysdefault")

	// Detection handling
	v.SetDefault("detection.refractory_period", 2*time.Second)
	v.SetDefault("detection.recent_limit", 100)

	// Status server
	v.SetDefault("http.enabled", false)
	v.SetDefault("http.listen", "127.0.0.1:8080")

	// MQTT publishing
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "porcupine")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.retain", false)

	// Detection history
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.path", "porcupine.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "porcupine")

	// Telemetry
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")

	// Logging
	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.file_output.compress", false)
}
