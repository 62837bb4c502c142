// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// loggerName labels every line so mirror output stays attributable when the
// tool runs beside other jobs on a shared host.
const loggerName = "edgar-mirror"

// New builds a zap.Logger configured for development or production.
// Development mode uses a colorized console encoder for interactive runs;
// production mode emits JSON suitable for log shipping.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger.Named(loggerName), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	// Progress events mirror into the log, so a large run emits long bursts
	// of near-identical per-filing lines; sampling would silently drop them.
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger.Named(loggerName), nil
}
