package logging

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// NewLogger returns a zap logger configured for structured production logging.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	return cfg.Build()
}

// NewGormLogger routes gorm's SQL logging into the provided zap logger.
// Statements are only traced at debug level; slow queries and errors are
// reported at warn.
func NewGormLogger(logger *zap.Logger, level string) gormlogger.Interface {
	if logger == nil {
		return gormlogger.Discard
	}
	gormLevel := gormlogger.Warn
	if parseLevel(level) == zapcore.DebugLevel {
		gormLevel = gormlogger.Info
	}
	std := zap.NewStdLog(logger.Named("gorm"))
	return gormlogger.New(std, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormLevel,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
