// Package observe binds the cachepurge logging and metrics seams to zap and Prometheus.
package observe

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/halftrip/cachepurge"
)

// NewLogger creates a production zap logger from a level string.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	return cfg.Build(zap.AddCallerSkip(1))
}

// ParseLevel maps debug|info|warn|error onto zap levels; anything else is info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type zapLogger struct {
	l *zap.Logger
}

// ZapLogger adapts l to cachepurge.Logger. A nil l yields a no-op logger.
func ZapLogger(l *zap.Logger) cachepurge.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return zapLogger{l: l}
}

func (z zapLogger) Debug(msg string, fields ...cachepurge.Field) { z.l.Debug(msg, toZap(fields)...) }
func (z zapLogger) Info(msg string, fields ...cachepurge.Field)  { z.l.Info(msg, toZap(fields)...) }
func (z zapLogger) Warn(msg string, fields ...cachepurge.Field)  { z.l.Warn(msg, toZap(fields)...) }
func (z zapLogger) Error(msg string, fields ...cachepurge.Field) { z.l.Error(msg, toZap(fields)...) }

func toZap(fields []cachepurge.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
