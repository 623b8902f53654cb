package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/arloliu/leadsync/types"
)

// LogrusLogger adapts a logrus.FieldLogger to types.Logger.
type LogrusLogger struct {
	log logrus.FieldLogger
}

// Compile-time assertion that LogrusLogger implements Logger.
var _ types.Logger = (*LogrusLogger)(nil)

// NewLogrus wraps a logrus logger. Key-value pairs become logrus fields.
func NewLogrus(log logrus.FieldLogger) *LogrusLogger {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &LogrusLogger{log: log}
}

func (l *LogrusLogger) entry(keysAndValues []any) logrus.FieldLogger {
	if len(keysAndValues) == 0 {
		return l.log
	}

	fields := make(logrus.Fields, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields[key] = keysAndValues[i+1]
		} else {
			fields[key] = "<missing>"
		}
	}

	return l.log.WithFields(fields)
}

// Debug logs a debug-level message.
func (l *LogrusLogger) Debug(msg string, keysAndValues ...any) {
	l.entry(keysAndValues).Debug(msg)
}

// Info logs an info-level message.
func (l *LogrusLogger) Info(msg string, keysAndValues ...any) {
	l.entry(keysAndValues).Info(msg)
}

// Warn logs a warning-level message.
func (l *LogrusLogger) Warn(msg string, keysAndValues ...any) {
	l.entry(keysAndValues).Warn(msg)
}

// Error logs an error-level message.
func (l *LogrusLogger) Error(msg string, keysAndValues ...any) {
	l.entry(keysAndValues).Error(msg)
}

// Fatal logs a fatal-level message; logrus exits the process.
func (l *LogrusLogger) Fatal(msg string, keysAndValues ...any) {
	l.entry(keysAndValues).Fatal(msg)
}
