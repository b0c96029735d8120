package crypto

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LoggerHelper builds a logrus entry carrying the "package" and "function"
// fields every log line in this module has. Key material never goes through
// it; use WithSecret to record that a secret was involved.
type LoggerHelper struct {
	function string
	pkg      string
	fields   logrus.Fields
}

// NewLogger returns a helper for the given package and function.
func NewLogger(pkg, function string) *LoggerHelper {
	return &LoggerHelper{
		function: function,
		pkg:      pkg,
		fields: logrus.Fields{
			"function": function,
			"package":  pkg,
		},
	}
}

// WithField adds a single field.
func (l *LoggerHelper) WithField(key string, value interface{}) *LoggerHelper {
	l.fields[key] = value
	return l
}

// WithFields merges fields into the helper.
func (l *LoggerHelper) WithFields(fields logrus.Fields) *LoggerHelper {
	for k, v := range fields {
		l.fields[k] = v
	}
	return l
}

// WithAlgorithm records the hash or cipher in use.
func (l *LoggerHelper) WithAlgorithm(alg fmt.Stringer) *LoggerHelper {
	l.fields["algorithm"] = alg.String()
	return l
}

// WithSecret records the size and liveness of s under name. The contents
// are never logged.
func (l *LoggerHelper) WithSecret(name string, s *Secret) *LoggerHelper {
	return l.WithFields(SecretFields(name, s.Len())).
		WithField(name+"_destroyed", s.Destroyed())
}

// WithError records err and the operation that produced it.
func (l *LoggerHelper) WithError(err error, operation string) *LoggerHelper {
	l.fields["error"] = err.Error()
	l.fields["operation"] = operation
	return l
}

// Debug logs at debug level.
func (l *LoggerHelper) Debug(message string) {
	logrus.WithFields(l.fields).Debug(message)
}

// Warn logs at warning level.
func (l *LoggerHelper) Warn(message string) {
	logrus.WithFields(l.fields).Warn(message)
}

// Error logs at error level.
func (l *LoggerHelper) Error(message string) {
	logrus.WithFields(l.fields).Error(message)
}

// SecretFields describes key material by size only.
func SecretFields(name string, size int) logrus.Fields {
	return logrus.Fields{
		name + "_size": size,
	}
}
