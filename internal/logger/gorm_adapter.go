package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormAdapter bridges GORM's logger.Interface onto the structured logger, so
// query logs carry the same JSON shape and context fields (request id, sync
// run id) as the rest of the application.
type GormAdapter struct {
	logger             *Logger
	logLevel           gormlogger.LogLevel
	slowThreshold      time.Duration
	ignoreNotFoundErrs bool
}

// NewGormAdapter creates a GORM logger adapter at the given level
func NewGormAdapter(logger *Logger, level string) *GormAdapter {
	return &GormAdapter{
		logger:             logger,
		logLevel:           mapToGormLevel(level),
		slowThreshold:      200 * time.Millisecond,
		ignoreNotFoundErrs: true,
	}
}

// LogMode returns a copy of the adapter at the requested level
func (g *GormAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.logLevel = level
	return &clone
}

func (g *GormAdapter) Info(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Info {
		g.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g *GormAdapter) Warn(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Warn {
		g.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g *GormAdapter) Error(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Error {
		g.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...), nil)
	}
}

// Trace logs executed SQL with timing. Record-not-found is treated as a
// normal outcome, not an error.
func (g *GormAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if g.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := map[string]interface{}{
		"sql":        sql,
		"elapsed_ms": float64(elapsed.Nanoseconds()) / 1e6,
		"rows":       rows,
	}

	isNotFound := errors.Is(err, gorm.ErrRecordNotFound)
	switch {
	case err != nil && g.logLevel >= gormlogger.Error && !(isNotFound && g.ignoreNotFoundErrs):
		g.logger.WithFields(fields).ErrorContext(ctx, "database query error", err)

	case g.slowThreshold != 0 && elapsed > g.slowThreshold && g.logLevel >= gormlogger.Warn:
		fields["threshold_ms"] = float64(g.slowThreshold.Nanoseconds()) / 1e6
		g.logger.WithFields(fields).WarnContext(ctx, "slow SQL query")

	case g.logLevel >= gormlogger.Info:
		g.logger.WithFields(fields).DebugContext(ctx, "SQL query executed")
	}
}

// mapToGormLevel translates the application log level into GORM's coarser
// scale: debug surfaces every query, info and warn surface slow queries and
// errors, error surfaces errors only.
func mapToGormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}
