package conf

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ValidationError collects every problem found in a configuration
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %v", ve.Errors)
}

// ValidateSettings checks settings for values the application cannot run with
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validatePorcupineSettings(&settings.Porcupine, &ve)
	validateDetectionSettings(&settings.Detection, &ve)
	validateHTTPSettings(&settings.HTTP, &ve)
	validateMQTTSettings(&settings.MQTT, &ve)
	validateDatabaseSettings(&settings.Database, &ve)

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry is enabled but no DSN is set")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validatePorcupineSettings(p *PorcupineSettings, ve *ValidationError) {
	if len(p.Keywords) == 0 {
		ve.Errors = append(ve.Errors, "at least one keyword is required")
	}
	for i, kw := range p.Keywords {
		if strings.TrimSpace(kw) == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("keyword %d is empty", i))
		}
	}

	// An empty list means the default sensitivity for every keyword
	if len(p.Sensitivities) > 0 && len(p.Sensitivities) != len(p.Keywords) {
		ve.Errors = append(ve.Errors, fmt.Sprintf(
			"number of sensitivities (%d) does not match number of keywords (%d)",
			len(p.Sensitivities), len(p.Keywords)))
	}
	for i, s := range p.Sensitivities {
		if math.IsNaN(float64(s)) || s < 0 || s > 1 {
			ve.Errors = append(ve.Errors, fmt.Sprintf("sensitivity %d must be between 0 and 1, got %v", i, s))
		}
	}
}

func validateDetectionSettings(d *DetectionSettings, ve *ValidationError) {
	if d.RefractoryPeriod < 0 {
		ve.Errors = append(ve.Errors, "detection refractory period must not be negative")
	}
	if d.RefractoryPeriod > time.Minute {
		ve.Errors = append(ve.Errors, "detection refractory period must be at most one minute")
	}
	if d.RecentLimit < 0 {
		ve.Errors = append(ve.Errors, "detection recent limit must not be negative")
	}
}

func validateHTTPSettings(h *HTTPSettings, ve *ValidationError) {
	if h.Enabled && h.Listen == "" {
		ve.Errors = append(ve.Errors, "http is enabled but no listen address is set")
	}
}

func validateMQTTSettings(m *MQTTSettings, ve *ValidationError) {
	if !m.Enabled {
		return
	}
	if err := validateBrokerURL(m.Broker); err != nil {
		ve.Errors = append(ve.Errors, "mqtt broker: "+err.Error())
	}
	if m.Topic == "" {
		ve.Errors = append(ve.Errors, "mqtt topic is required")
	}
}

func validateDatabaseSettings(d *DatabaseSettings, ve *ValidationError) {
	if !d.Enabled {
		return
	}
	switch d.Type {
	case DatabaseSQLite, "":
		if d.Path == "" {
			ve.Errors = append(ve.Errors, "database is enabled but no path is set")
		}
	case DatabaseMySQL:
		if d.MySQL.Host == "" || d.MySQL.Database == "" {
			ve.Errors = append(ve.Errors, "mysql database requires host and database name")
		}
		if d.MySQL.Port <= 0 || d.MySQL.Port > 65535 {
			ve.Errors = append(ve.Errors, fmt.Sprintf("mysql port %d is out of range", d.MySQL.Port))
		}
	default:
		ve.Errors = append(ve.Errors, fmt.Sprintf("unknown database type %q, expected sqlite or mysql", d.Type))
	}
}
