package logger

import "sync/atomic"

// std is the package default logger, used by every component that was not
// given one.
var std atomic.Pointer[Logger]

func init() {
	SetLogger(NewSlog(InfoLevel, false))
}

// GetLogger returns the package default logger.
func GetLogger() Logger {
	return *std.Load()
}

// SetLogger replaces the package default logger. A nil logger is ignored.
//
// Components capture the default when they are configured, so SetLogger only
// affects senders and devices created afterwards.
func SetLogger(l Logger) {
	if l != nil {
		std.Store(&l)
	}
}

// SetLevel sets the level of the default logger.
func SetLevel(level LogLevel) { GetLogger().SetLevel(level) }

func Debug(msg string, keysAndValues ...any) { GetLogger().Debug(msg, keysAndValues...) }

func Info(msg string, keysAndValues ...any) { GetLogger().Info(msg, keysAndValues...) }

func Warn(msg string, keysAndValues ...any) { GetLogger().Warn(msg, keysAndValues...) }

func Error(msg string, keysAndValues ...any) { GetLogger().Error(msg, keysAndValues...) }
