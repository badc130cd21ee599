// Package logging builds the zap loggers used across the service.
package logging

import (
	"bytes"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultLevel = "info"

// New constructs a logger writing to stdout. format is "json" or "console";
// an unknown level falls back to info.
func New(level, format string) *zap.Logger {
	return NewTo(zapcore.Lock(os.Stdout), level, format)
}

// NewTo constructs a logger writing to w.
func NewTo(w zapcore.WriteSyncer, level, format string) *zap.Logger {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		_ = lvl.UnmarshalText([]byte(defaultLevel))
	}

	encoderCfg := zapcore.EncoderConfig{
		MessageKey:    "message",
		TimeKey:       "timestamp",
		LevelKey:      "severity",
		NameKey:       "logger",
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(level.String()))
		},
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(format, "console") {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	return zap.New(zapcore.NewCore(encoder, w, lvl), zap.AddCaller())
}

// Writer adapts logger to an io.Writer, emitting one info entry per line.
// Fiber's request logger writes through it.
func Writer(logger *zap.Logger) io.Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return lineWriter{logger: logger}
}

type lineWriter struct {
	logger *zap.Logger
}

func (w lineWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte{'\n'}) {
		if len(line) > 0 {
			w.logger.Info(string(line))
		}
	}
	return len(p), nil
}
