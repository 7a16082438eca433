// Package logger holds the process-wide logger used before and around service wiring
package logger

import "gitlab.com/gearbroker.net/internal/adapter/logging"

var Logger = logging.NewZapLogger(logging.LevelInfo)

// Init replaces the process logger with one at the given level
func Init(level logging.Level) *logging.ZapLogger {
	Logger = logging.NewZapLogger(level)
	return Logger
}

func Info(msg string, args ...interface{}) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...interface{}) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Logger.Warn(msg, args...)
}
