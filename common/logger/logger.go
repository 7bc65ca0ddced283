package logger

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// PassIDKey is the log field carrying the id of a monitoring pass.
const PassIDKey = "pass_id"

// InitializeWithWriter builds the service logger for env and tees JSON output
// to sink when one is given (CloudWatch Logs in production).
func InitializeWithWriter(env string, sink io.Writer) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var (
		l   *zap.Logger
		err error
	)
	if sink != nil {
		level := zap.NewAtomicLevelAt(config.Level.Level())
		consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(config.EncoderConfig), zapcore.AddSync(os.Stdout), level)

		jsonConfig := config.EncoderConfig
		jsonConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		sinkCore := zapcore.NewCore(zapcore.NewJSONEncoder(jsonConfig), zapcore.AddSync(sink), level)

		l = zap.New(zapcore.NewTee(consoleCore, sinkCore), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		l, err = config.Build()
		if err != nil {
			return nil, err
		}
	}

	return l, nil
}

// WithPassID stores the id of the current monitoring pass in ctx.
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, passID)
}

// PassID returns the pass id stored in ctx, or "unknown".
func PassID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return "unknown"
}

// For returns l annotated with the pass id carried by ctx.
func For(ctx context.Context, l *zap.Logger) *zap.Logger {
	return l.With(zap.String(PassIDKey, PassID(ctx)))
}
