// Package logging decouples the application from a concrete logging framework.
// Components receive a Logger through their constructors; tests substitute MockLogger.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger used throughout bill-csv.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithError returns a derived logger carrying err.
	WithError(err error) Logger
	WithField(key string, value interface{}) Logger
	WithFields(fields ...Field) Logger

	// Fatal and Fatalf log and terminate the process.
	Fatal(msg string, fields ...Field)
	Fatalf(msg string, args ...interface{})
}

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

var (
	defaultMu     sync.Mutex
	defaultLogger *logrus.Logger
)

// GetLogger returns the process-wide logrus instance used by package-level helpers
// that have no injected logger (command bootstrap, init functions).
func GetLogger() *logrus.Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = logrus.New()
		defaultLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		defaultLogger.SetOutput(os.Stderr)
	}
	return defaultLogger
}

// SetAllLogLevels applies level to the global logrus logger and the process-wide instance.
func SetAllLogLevels(level logrus.Level) {
	logrus.SetLevel(level)
	GetLogger().SetLevel(level)
}

// ParseLevel parses a level name, falling back to info.
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
