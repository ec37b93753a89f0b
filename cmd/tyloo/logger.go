package main

import (
	"github.com/tylooteam/tyloo/internal/logging"
)

// SetupLogger configures the default logger based on the provided log level.
func SetupLogger(logLevel string) {
	logging.SetupLogger(logLevel)
}
