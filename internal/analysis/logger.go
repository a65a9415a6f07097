package analysis

import (
	"sync"

	"github.com/tphakala/go-porcupine/internal/logger"
)

var (
	loggerOnce sync.Once
	pkgLogger  logger.Logger
)

// GetLogger returns the analysis logger
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("analysis")
	})
	return pkgLogger
}
