package main

import (
	"github.com/pharmaref/pharmaref/internal/infrastructure/database/postgres/repositories"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
)

// repoLogger adapts the structured logging.Logger to the key/value contract
// the repository layer expects.
type repoLogger struct {
	logger logging.Logger
}

var _ repositories.Logger = (*repoLogger)(nil)

func newRepoLogger(logger logging.Logger) *repoLogger {
	return &repoLogger{logger: logger.Named("postgres")}
}

func (l *repoLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, kvFields(keysAndValues)...)
}

func (l *repoLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, kvFields(keysAndValues)...)
}

func (l *repoLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, kvFields(keysAndValues)...)
}

func (l *repoLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, kvFields(keysAndValues)...)
}

// kvFields converts alternating key/value pairs into structured fields.  A
// trailing key without a value is kept with a nil value rather than dropped.
func kvFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = "unknown"
		}
		var val interface{}
		if i+1 < len(keysAndValues) {
			val = keysAndValues[i+1]
		}
		fields = append(fields, logging.Any(key, val))
	}
	return fields
}
