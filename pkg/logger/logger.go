package logger

import (
	"go.uber.org/zap"
)

var Log *zap.Logger

// New builds the process-wide production logger and stores it in Log.
func New() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// Named returns a child of the global logger for a subsystem.
func Named(name string) *zap.Logger {
	if Log == nil {
		New()
	}
	return Log.Named(name)
}
