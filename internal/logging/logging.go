package logging

import (
	"github.com/pion/logging"
)

var loggerFactory = logging.NewDefaultLoggerFactory()

// Factory returns the process-wide logger factory. Its levels follow the
// PION_LOG_* environment variables.
func Factory() logging.LoggerFactory {
	return loggerFactory
}

func NewLogger(scope string) logging.LeveledLogger {
	return loggerFactory.NewLogger(scope)
}

// Or returns f when it is set, the process-wide factory otherwise.
func Or(f logging.LoggerFactory) logging.LoggerFactory {
	if f != nil {
		return f
	}
	return loggerFactory
}
