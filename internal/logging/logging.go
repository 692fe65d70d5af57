package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eugenenazirov/exemple-users/internal/config"
)

// New creates a structured logger for the given runtime mode and level.
// Production and test modes emit JSON; development mode emits coloured console output.
// The "silent" level returns a no-op logger.
func New(mode config.Mode, level string) (*zap.Logger, error) {
	lvl, silent, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if silent {
		return zap.NewNop(), nil
	}

	var cfg zap.Config
	if mode == config.ModeDevelopment {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.StacktraceKey = "stacktrace"
		cfg.DisableStacktrace = false
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.String("mode", string(mode))), nil
}

// NewBootstrap returns the logger used before configuration has been validated.
func NewBootstrap() (*zap.Logger, error) {
	return New(config.ModeProduction, "info")
}

// ParseLevel maps a LOG_LEVEL value onto a zap level. "trace" is folded into debug.
func ParseLevel(level string) (zapcore.Level, bool, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return zapcore.InfoLevel, true, nil
	case "trace":
		return zapcore.DebugLevel, false, nil
	case "":
		return zapcore.InfoLevel, false, nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, false, fmt.Errorf("parse log level: %w", err)
	}
	return lvl, false, nil
}
