// Package logging builds the zap logger shared by every component.
//
// Logs default to stderr: in MCP mode stdout carries the JSON-RPC stream and
// must not receive anything else.
package logging

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// New creates a logger. level is a zap level name (invalid values fall back to
// info), format is "json" or "console", and output is "stdout", "stderr" or a
// file path opened for appending. The returned func releases the output and
// must be called once the logger is no longer used.
func New(level, format, output string) (*zap.Logger, func(), error) {
	if output == "" {
		output = "stderr"
	}

	w, closeOutput, err := zap.Open(output)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open %s: %w", output, err)
	}

	return NewWithWriter(level, format, w), closeOutput, nil
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(level, format string, w io.Writer) *zap.Logger {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	if format == "json" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zapLevel)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// WithRequestID stores a request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FromContext returns l annotated with the request id found in ctx.
func FromContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	if id := RequestID(ctx); id != "" {
		return l.With(zap.String("request_id", id))
	}
	return l
}
