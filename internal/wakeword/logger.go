package wakeword

import "github.com/tphakala/go-porcupine/internal/logger"

// GetLogger returns the wakeword logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("wakeword")
}
