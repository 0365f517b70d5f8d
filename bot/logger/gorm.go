package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/liuran001/SongShare-Go/bot/telemetry"
	"gorm.io/gorm/logger"
)

// DefaultSlowQuery is the threshold above which statements are logged at warn.
const DefaultSlowQuery = 200 * time.Millisecond

// GormLogger adapts slog.Logger to gorm logger.Interface. Lines carry the
// statement kind, timings and the request correlation id when present.
type GormLogger struct {
	logger        *slog.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

// GormOption customizes a GormLogger.
type GormOption func(*GormLogger)

// WithSlowThreshold overrides DefaultSlowQuery. Zero disables slow logging.
func WithSlowThreshold(d time.Duration) GormOption {
	return func(l *GormLogger) {
		if d >= 0 {
			l.slowThreshold = d
		}
	}
}

// NewGormLogger creates a GORM logger with the given level.
func NewGormLogger(base *slog.Logger, level logger.LogLevel, opts ...GormOption) *GormLogger {
	if base == nil {
		base = slog.Default()
	}
	l := &GormLogger{
		logger:        base.With("component", "store"),
		level:         level,
		slowThreshold: DefaultSlowQuery,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...), corrAttr(ctx)...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...), corrAttr(ctx)...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...), corrAttr(ctx)...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, logger.ErrRecordNotFound)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	switch {
	case failed && l.level >= logger.Error:
		sql, rows := fc()
		attrs := append(queryAttrs(ctx, sql, rows, elapsed), "error", err)
		l.logger.ErrorContext(ctx, "store query failed", attrs...)
	case slow && l.level >= logger.Warn:
		sql, rows := fc()
		attrs := append(queryAttrs(ctx, sql, rows, elapsed), "threshold_ms", l.slowThreshold.Milliseconds())
		l.logger.WarnContext(ctx, "store query slow", attrs...)
	case l.level >= logger.Info:
		sql, rows := fc()
		l.logger.DebugContext(ctx, "store query", queryAttrs(ctx, sql, rows, elapsed)...)
	}
}

func queryAttrs(ctx context.Context, sql string, rows int64, elapsed time.Duration) []any {
	attrs := []any{
		"op", statementKind(sql),
		"elapsed_ms", float64(elapsed.Microseconds()) / 1000,
		"rows", rows,
		"sql", sql,
	}
	return append(attrs, corrAttr(ctx)...)
}

func corrAttr(ctx context.Context) []any {
	if corr := telemetry.GetCorrelation(ctx); corr != "" {
		return []any{"corr", corr}
	}
	return nil
}

// statementKind is the leading SQL keyword in lower case, e.g. "insert".
func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// GormLevel maps a config level name to a gorm log level.
func GormLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent", "off":
		return logger.Silent
	case "debug", "trace", "info":
		return logger.Info
	case "error", "fatal", "panic":
		return logger.Error
	case "warn", "warning":
		fallthrough
	default:
		return logger.Warn
	}
}
