package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process root logger. Subsystems take named children.
type Logger struct {
	*zap.Logger
}

// New builds a logger at level. Production output is JSON; development
// output is colored console lines with stack traces on warnings.
// Both write to stderr so the probe CLI keeps stdout for results.
func New(level string, development bool) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: l}, nil
}

// FromConfig is New for the configured level, dropping to info when the
// level does not parse. An empty level means info.
func FromConfig(level string, development bool) *Logger {
	if level == "" {
		level = "info"
	}
	if l, err := New(level, development); err == nil {
		return l
	}
	if l, err := New("info", development); err == nil {
		return l
	}
	return NewNop()
}

// NewNop discards everything
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Component returns the named child logger for one subsystem
func (l *Logger) Component(name string) *zap.Logger {
	return l.Logger.Named(name)
}
