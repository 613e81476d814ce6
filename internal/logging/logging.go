// Package logging builds the structured logrus.Logger every cmd entry point
// shares (§10), the way hire.ai's cmd/scraper wires up logrus.New() once at
// startup and threads the result through its Application.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger configured from LOG_LEVEL/LOG_FORMAT
// environment variables, defaulting to info level and text output the way
// hire.ai's -verbose flag toggles debug level.
func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level := logrus.InfoLevel
	if s := strings.ToLower(os.Getenv("LOG_LEVEL")); s != "" {
		if parsed, err := logrus.ParseLevel(s); err == nil {
			level = parsed
		}
	}
	logger.SetLevel(level)

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// Component returns a *logrus.Entry pre-tagged with "component" (§10), the
// base entry every processor's per-stage log (processors.stageLog) derives
// from.
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}
