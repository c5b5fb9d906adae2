package monitoring

import "log"

// Logf is the package-level diagnostic logger used by the report stores. It
// defaults to log.Printf but may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs a recoverable condition with a WARN prefix.
func Warnf(format string, v ...interface{}) {
	Logf("WARN: "+format, v...)
}
