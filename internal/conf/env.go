package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tphakala/go-porcupine/internal/bundle"
	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
)

var lookupEnv = os.LookupEnv

// EnvPrefix prefixes every environment variable read by the application
const EnvPrefix = "PORCUPINE"

// envBinding maps a config key to an environment variable
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error // nil when any value is accepted
}

// envBindings lists the variables read in addition to the automatic
// PORCUPINE_<SECTION>_<KEY> mapping.
var envBindings = []envBinding{
	{"porcupine.access_key", "PORCUPINE_ACCESS_KEY", validateEnvAccessKey},
	{"porcupine.model_path", "PORCUPINE_MODEL_PATH", nil},
	{"porcupine.library_path", "PORCUPINE_LIBRARY_PATH", nil},
	{"porcupine.resource_dirs", bundle.EnvResources, nil},
	{"porcupine.keywords", "PORCUPINE_KEYWORDS", validateEnvKeywords},
	{"porcupine.sensitivities", "PORCUPINE_SENSITIVITIES", validateEnvSensitivities},
	{"audio.source", "PORCUPINE_AUDIO_SOURCE", nil},
	{"mqtt.broker", "PORCUPINE_MQTT_BROKER", validateEnvBroker},
	{"mqtt.password", "PORCUPINE_MQTT_PASSWORD", nil},
	{"database.mysql.password", "PORCUPINE_MYSQL_PASSWORD", nil},
	{"sentry.dsn", "PORCUPINE_SENTRY_DSN", nil},
}

// configureEnvironmentVariables enables environment overrides on v.
// Invalid values are reported but do not stop loading; validation of the
// final settings rejects them later.
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return bindEnvVars(v)
}

func bindEnvVars(v *viper.Viper) error {
	var problems []error
	for _, b := range envBindings {
		if err := v.BindEnv(b.ConfigKey, b.EnvVar); err != nil {
			problems = append(problems, fmt.Errorf("bind %s: %w", b.EnvVar, err))
			continue
		}
		if b.Validate == nil {
			continue
		}
		value, ok := lookupEnv(b.EnvVar)
		if !ok {
			continue
		}
		if err := b.Validate(value); err != nil {
			GetLogger().Warn("invalid environment variable",
				logger.String("variable", b.EnvVar),
				logger.Error(err))
			problems = append(problems, fmt.Errorf("%s: %w", b.EnvVar, err))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New(errors.Join(problems...)).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("operation", "bind_env").
		Build()
}

func validateEnvAccessKey(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewStd("access key is blank")
	}
	return nil
}

func validateEnvKeywords(value string) error {
	for kw := range strings.SplitSeq(value, ",") {
		if strings.TrimSpace(kw) == "" {
			return errors.NewStd("keyword list contains an empty entry")
		}
	}
	return nil
}

func validateEnvSensitivities(value string) error {
	for s := range strings.SplitSeq(value, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return fmt.Errorf("sensitivity %q is not a number", s)
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("sensitivity %v is outside [0,1]", f)
		}
	}
	return nil
}

func validateEnvBroker(value string) error {
	return validateBrokerURL(value)
}

func validateBrokerURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.NewStd("broker URL has no host")
	}
	return nil
}
