package logging

import (
	"time"

	"go.uber.org/zap"
)

// Logger is a wrapper around zap.SugaredLogger with an attached logging interval
// for components that periodically report counters (e.g. via periodic.Start).
type Logger struct {
	*zap.SugaredLogger

	interval time.Duration
}

// NewLogger returns a new Logger that wraps the given zap.SugaredLogger and
// uses the given interval for periodic logging (e.g. progress counters).
func NewLogger(sugar *zap.SugaredLogger, interval time.Duration) *Logger {
	return &Logger{SugaredLogger: sugar, interval: interval}
}

// Interval returns the duration components should use between periodic log messages.
func (l *Logger) Interval() time.Duration {
	return l.interval
}
