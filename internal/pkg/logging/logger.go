package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a production zap logger emitting JSON to stdout,
// stamped with the service and environment identifiers. Extra paths
// (such as a log file) are appended to both output sinks.
func NewLogger(service, env string, extraPaths ...string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = append([]string{"stdout"}, extraPaths...)
	cfg.ErrorOutputPaths = append([]string{"stdout"}, extraPaths...)

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	cfg.InitialFields = map[string]any{
		"service": service,
		"env":     env,
	}

	return cfg.Build()
}

// MustNewLogger is like NewLogger but panics if the logger cannot be created.
func MustNewLogger(service, env string, extraPaths ...string) *zap.Logger {
	logger, err := NewLogger(service, env, extraPaths...)
	if err != nil {
		panic(err)
	}
	return logger
}
