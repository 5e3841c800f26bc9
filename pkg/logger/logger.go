// Package logger wraps logrus with the process-wide defaults used by every
// other package.
//
// Output goes to stderr: stdout is reserved for the stdio MCP transport.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var defaultLogger *logrus.Logger

func init() {
	defaultLogger = logrus.New()
	defaultLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	defaultLogger.SetOutput(os.Stderr)

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	if isTestMode() {
		logLevel = "silent"
	}

	if err := apply(logLevel); err != nil {
		defaultLogger.SetLevel(logrus.InfoLevel)
	}
}

func isTestMode() bool {
	return os.Getenv("GO_ENV") == "test"
}

func apply(levelStr string) error {
	if strings.EqualFold(levelStr, "silent") {
		defaultLogger.SetOutput(io.Discard)
		return nil
	}

	level, err := logrus.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return err
	}
	defaultLogger.SetLevel(level)
	return nil
}

// GetLogger returns the default logger instance
func GetLogger() *logrus.Logger {
	return defaultLogger
}

// WithName creates a child logger with a name field
func WithName(name string) *logrus.Entry {
	return defaultLogger.WithField("name", name)
}

// WithFields creates a logger with additional fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return defaultLogger.WithFields(fields)
}

// SetLevel sets the logging level
func SetLevel(level logrus.Level) {
	defaultLogger.SetLevel(level)
}

// SetOutput redirects log output
func SetOutput(w io.Writer) {
	defaultLogger.SetOutput(w)
}

// IsLevelEnabled checks if a log level is enabled
func IsLevelEnabled(level logrus.Level) bool {
	return defaultLogger.IsLevelEnabled(level)
}

// ConfigureFromString applies a level from configuration ("silent" discards
// all output). GO_ENV=test always wins.
func ConfigureFromString(levelStr string) error {
	if isTestMode() {
		defaultLogger.SetOutput(io.Discard)
		return nil
	}
	return apply(levelStr)
}
