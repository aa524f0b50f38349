// Package logger provides the leveled logging utility used across townfeed.
// It wraps the standard `log` package and filters output by severity.
package logger

import (
	"fmt"
	"log"
	"strings"
)

// LogLevel represents a logging severity.
type LogLevel int

const (
	// LevelDebug emits detailed diagnostic output.
	LevelDebug LogLevel = iota
	// LevelInfo emits general informational messages.
	LevelInfo
	// LevelWarn emits warnings about recoverable conditions.
	LevelWarn
	// LevelError emits errors.
	LevelError
	// LevelFatal emits a message and terminates the process.
	LevelFatal
)

// logLevel is the currently active global level. Messages below it are dropped.
var logLevel = LevelInfo

// SetLogLevel sets the global log level from its string form.
// Valid values are "DEBUG", "INFO", "WARN", "ERROR" and "FATAL"
// (case-insensitive); anything else falls back to INFO with a notice.
func SetLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel = LevelDebug
	case "INFO":
		logLevel = LevelInfo
	case "WARN":
		logLevel = LevelWarn
	case "ERROR":
		logLevel = LevelError
	case "FATAL":
		logLevel = LevelFatal
	default:
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
		logLevel = LevelInfo
	}
}

// Debugf formats and outputs a DEBUG level message.
func Debugf(format string, v ...interface{}) {
	if logLevel <= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Infof formats and outputs an INFO level message.
func Infof(format string, v ...interface{}) {
	if logLevel <= LevelInfo {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warnf formats and outputs a WARN level message.
func Warnf(format string, v ...interface{}) {
	if logLevel <= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}

// Errorf formats and outputs an ERROR level message.
func Errorf(format string, v ...interface{}) {
	if logLevel <= LevelError {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf formats and outputs a FATAL level message, then exits the process.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
