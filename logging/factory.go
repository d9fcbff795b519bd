package logging

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// JOURNAL is the Config.Output value for logging to systemd-journald.
	JOURNAL = "systemd-journald"
	// CONSOLE is the Config.Output value for logging to stderr.
	CONSOLE = "console"
)

// Logging is a factory for Logger instances sharing a common output core,
// app-wide log level and a set of per-component level overrides (Config.Options).
type Logging struct {
	output  zapcore.Core
	level   zap.AtomicLevel
	options Options

	interval time.Duration

	mu       sync.Mutex
	children map[string]*Logger
}

// NewLoggingFromConfig creates a new Logging from the given Config.
// appName is used as the syslog/journal identifier when logging to systemd-journald.
func NewLoggingFromConfig(appName string, c Config) (*Logging, error) {
	if err := AssertOutput(c.Output); err != nil {
		return nil, err
	}

	level := zap.NewAtomicLevelAt(c.Level)

	var core zapcore.Core
	switch c.Output {
	case JOURNAL:
		core = NewJournaldCore(appName, level)
	case CONSOLE:
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder := zapcore.NewConsoleEncoder(encoderConfig)
		core = zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	}

	return &Logging{
		output:   core,
		level:    level,
		options:  c.Options,
		interval: c.Interval,
		children: make(map[string]*Logger),
	}, nil
}

// GetLogger returns the top-level Logger, i.e. one without a name.
func (l *Logging) GetLogger() *Logger {
	return l.GetChildLogger("")
}

// GetChildLogger returns a named Logger, creating it on first use. If name has a level
// override configured via Config.Options, that level takes precedence over the app-wide level.
func (l *Logging) GetChildLogger(name string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	if logger, ok := l.children[name]; ok {
		return logger
	}

	core := l.output
	if lvl, ok := l.options[name]; ok {
		core = &levelOverrideCore{Core: core, level: lvl}
	}

	zapLogger := zap.New(core)
	if name != "" {
		zapLogger = zapLogger.Named(name)
	}

	logger := NewLogger(zapLogger.Sugar(), l.interval)
	l.children[name] = logger

	return logger
}

// levelOverrideCore wraps a zapcore.Core, overriding its level check with a fixed level.
type levelOverrideCore struct {
	zapcore.Core
	level zapcore.Level
}

func (c *levelOverrideCore) Enabled(level zapcore.Level) bool {
	return level >= c.level
}

func (c *levelOverrideCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}

	return checked
}
