package porcupine

import (
	"sync"

	"github.com/tphakala/go-porcupine/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the porcupine package logger
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("porcupine")
	})
	return serviceLogger
}
