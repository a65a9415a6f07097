package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel  string                  `yaml:"default_level" mapstructure:"default_level" json:"default_level"` // default level for all modules
	Timezone      string                  `yaml:"timezone" mapstructure:"timezone" json:"timezone"`                // "Local", "UTC", or IANA name
	Console       *ConsoleOutput          `yaml:"console" mapstructure:"console" json:"console"`
	FileOutput    *FileOutput             `yaml:"file_output" mapstructure:"file_output" json:"file_output"`
	ModuleOutputs map[string]ModuleOutput `yaml:"modules" mapstructure:"modules" json:"modules"`
	ModuleLevels  map[string]string       `yaml:"module_levels" mapstructure:"module_levels" json:"module_levels"`
}

// ConsoleOutput configures human-readable console output.
// Timestamps are omitted; journald or the container runtime adds them.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Level   string `yaml:"level" mapstructure:"level" json:"level"`
}

// FileOutput configures the main JSON log file and its rotation.
type FileOutput struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Path            string `yaml:"path" mapstructure:"path" json:"path"`
	MaxSize         int    `yaml:"max_size" mapstructure:"max_size" json:"max_size"`                            // MB before rotation, 0 disables rotation
	MaxAge          int    `yaml:"max_age" mapstructure:"max_age" json:"max_age"`                               // days, 0 = no limit
	MaxRotatedFiles int    `yaml:"max_rotated_files" mapstructure:"max_rotated_files" json:"max_rotated_files"` // 0 = no limit
	Compress        bool   `yaml:"compress" mapstructure:"compress" json:"compress"`
	Level           string `yaml:"level" mapstructure:"level" json:"level"`
}

// ModuleOutput routes one module to a dedicated file.
// Zero rotation settings inherit from FileOutput.
type ModuleOutput struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	FilePath        string `yaml:"file_path" mapstructure:"file_path" json:"file_path"`
	Level           string `yaml:"level" mapstructure:"level" json:"level"`
	ConsoleAlso     bool   `yaml:"console_also" mapstructure:"console_also" json:"console_also"`
	MaxSize         int    `yaml:"max_size" mapstructure:"max_size" json:"max_size"`
	MaxAge          int    `yaml:"max_age" mapstructure:"max_age" json:"max_age"`
	MaxRotatedFiles int    `yaml:"max_rotated_files" mapstructure:"max_rotated_files" json:"max_rotated_files"`
	Compress        *bool  `yaml:"compress,omitempty" mapstructure:"compress" json:"compress,omitempty"`
}

// Default values for logging configuration
const (
	DefaultLogLevel        = "info"
	DefaultLogPath         = "logs/porcupine.log"
	DefaultAudioLogPath    = "logs/audio.log"
	DefaultMaxSize         = 50 // MB
	DefaultMaxAge          = 30 // days
	DefaultMaxRotatedFiles = 5
	DefaultConsoleEnabled  = true
	DefaultFileEnabled     = false
)

// applyConfigDefaults fills nil sections so partially written configs still log somewhere.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled:         DefaultFileEnabled,
			Path:            DefaultLogPath,
			Level:           cfg.DefaultLevel,
			MaxSize:         DefaultMaxSize,
			MaxAge:          DefaultMaxAge,
			MaxRotatedFiles: DefaultMaxRotatedFiles,
		}
	}

	if cfg.ModuleOutputs == nil {
		cfg.ModuleOutputs = make(map[string]ModuleOutput)
	}
}
