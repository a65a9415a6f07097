// Package conf loads application settings from config.yaml, environment
// variables and command line flags through viper.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// ConfigFileName is the file searched for in every config path
const ConfigFileName = "config.yaml"

// PorcupineSettings configures the wake word engine
type PorcupineSettings struct {
	AccessKey     string    `yaml:"access_key" mapstructure:"access_key"`
	LibraryPath   string    `yaml:"library_path" mapstructure:"library_path"`
	ModelPath     string    `yaml:"model_path" mapstructure:"model_path"`
	ResourceDirs  []string  `yaml:"resource_dirs" mapstructure:"resource_dirs"`
	Keywords      []string  `yaml:"keywords" mapstructure:"keywords"` // built-in names or .ppn paths
	Sensitivities []float32 `yaml:"sensitivities" mapstructure:"sensitivities"`
}

// AudioSettings configures audio capture
type AudioSettings struct {
	Source string `yaml:"source" mapstructure:"source"` // capture device name or ID, "sysdefault" for the default
}

// DetectionSettings configures how detections are handled
type DetectionSettings struct {
	RefractoryPeriod time.Duration `yaml:"refractory_period" mapstructure:"refractory_period"` // ignore repeats of one keyword within this period
	RecentLimit      int           `yaml:"recent_limit" mapstructure:"recent_limit"`           // detections kept for the status API
}

// HTTPSettings configures the status server
type HTTPSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
}

// MQTTSettings configures detection publishing
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Retain   bool   `yaml:"retain" mapstructure:"retain"`
}

// Database backends
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// DatabaseSettings configures detection history
type DatabaseSettings struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Type    string        `yaml:"type" mapstructure:"type"` // sqlite or mysql
	Path    string        `yaml:"path" mapstructure:"path"` // sqlite database file
	MySQL   MySQLSettings `yaml:"mysql" mapstructure:"mysql"`
}

// MySQLSettings holds the connection parameters of a MySQL server
type MySQLSettings struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// SentrySettings configures optional error telemetry
type SentrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

// Settings is the root of the configuration tree
type Settings struct {
	Debug     bool                 `yaml:"debug" mapstructure:"debug"`
	Porcupine PorcupineSettings    `yaml:"porcupine" mapstructure:"porcupine"`
	Audio     AudioSettings        `yaml:"audio" mapstructure:"audio"`
	Detection DetectionSettings    `yaml:"detection" mapstructure:"detection"`
	HTTP      HTTPSettings         `yaml:"http" mapstructure:"http"`
	MQTT      MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	Database  DatabaseSettings     `yaml:"database" mapstructure:"database"`
	Sentry    SentrySettings       `yaml:"sentry" mapstructure:"sentry"`
	Logging   logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration into a new Settings. configFile may be empty to
// search the default config paths; a default file is written when none exists.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_viper").
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	GetLogger().Debug("configuration loaded",
		logger.String("file", v.ConfigFileUsed()),
		logger.Int("keywords", len(settings.Porcupine.Keywords)))

	return settings, nil
}

// GetSettings returns the most recently loaded settings, or nil
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		GetLogger().Warn("environment configuration problems", logger.Error(err))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return createDefaultConfig(v, configFile)
		}
		return v.ReadInConfig()
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(v, filepath.Join(configPaths[0], ConfigFileName))
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded default config to configPath and reads it
func createDefaultConfig(v *viper.Viper, configPath string) error {
	data, err := fs.ReadFile(configFiles, ConfigFileName)
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))

	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get_home_directory").
			Build()
	}

	if runtime.GOOS == "windows" {
		return []string{
			filepath.Join(homeDir, "AppData", "Roaming", "porcupine"),
			".",
		}, nil
	}
	return []string{
		filepath.Join(homeDir, ".config", "porcupine"),
		".",
		"/etc/porcupine",
	}, nil
}

// DefaultConfig returns the embedded default configuration file
func DefaultConfig() ([]byte, error) {
	return fs.ReadFile(configFiles, ConfigFileName)
}

// MarshalRedacted renders settings as YAML with credentials masked
func MarshalRedacted(s *Settings) ([]byte, error) {
	masked := *s
	masked.Porcupine.AccessKey = mask(s.Porcupine.AccessKey)
	masked.MQTT.Password = mask(s.MQTT.Password)
	masked.Database.MySQL.Password = mask(s.Database.MySQL.Password)
	masked.Sentry.DSN = mask(s.Sentry.DSN)
	return yaml.Marshal(&masked)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the conf package logger
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("conf")
	})
	return serviceLogger
}
