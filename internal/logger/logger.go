package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"
)

// Level represents the severity of a log entry
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

func levelRank(level Level) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	default:
		return 3
	}
}

// contextKey is the type used for context keys
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	syncRunIDKey contextKey = "sync_run_id"
)

// Package singletons: one logger for application concerns, one for the
// database layer so query noise can be leveled independently.
var (
	mu             sync.RWMutex
	appLogger      *Logger
	databaseLogger *Logger
)

// Entry is one JSON log line
type Entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     Level                  `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Stack     []string               `json:"stack,omitempty"`
}

// Logger writes structured JSON log lines
type Logger struct {
	output    io.Writer
	minLevel  Level
	withStack bool
}

// Config holds logger configuration
type Config struct {
	Output    io.Writer
	MinLevel  Level
	WithStack bool
}

// New creates a logger with the given configuration
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.MinLevel == "" {
		cfg.MinLevel = LevelInfo
	}

	return &Logger{
		output:    cfg.Output,
		minLevel:  cfg.MinLevel,
		withStack: cfg.WithStack,
	}
}

// Default creates an info-level logger writing to stdout
func Default() *Logger {
	return New(Config{})
}

// NewWithLevel creates a logger from a level string. Debug level also turns
// on stack capture for error entries.
func NewWithLevel(level string) *Logger {
	logLevel := parseLevel(level)
	return New(Config{
		MinLevel:  logLevel,
		WithStack: logLevel == LevelDebug,
	})
}

// AppLogger returns the application logger singleton
func AppLogger() *Logger {
	mu.RLock()
	l := appLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if appLogger == nil {
		appLogger = Default()
	}
	return appLogger
}

// DatabaseLogger returns the database logger singleton
func DatabaseLogger() *Logger {
	mu.RLock()
	l := databaseLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if databaseLogger == nil {
		databaseLogger = Default()
	}
	return databaseLogger
}

// SetAppLogger replaces the application logger, primarily for testing
func SetAppLogger(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	appLogger = logger
}

// SetDatabaseLogger replaces the database logger, primarily for testing
func SetDatabaseLogger(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	databaseLogger = logger
}

// InitializeLoggers configures both singletons from level strings
func InitializeLoggers(appLevel, dbLevel string) {
	mu.Lock()
	defer mu.Unlock()
	appLogger = NewWithLevel(appLevel)
	databaseLogger = NewWithLevel(dbLevel)
}

func parseLevel(level string) Level {
	switch level {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.log(LevelDebug, msg, nil, nil)
}

// DebugContext logs a debug message with context correlation fields
func (l *Logger) DebugContext(ctx context.Context, msg string) {
	l.logContext(ctx, LevelDebug, msg, nil, nil)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.log(LevelInfo, msg, nil, nil)
}

// InfoContext logs an info message with context correlation fields
func (l *Logger) InfoContext(ctx context.Context, msg string) {
	l.logContext(ctx, LevelInfo, msg, nil, nil)
}

// Warn logs a warning
func (l *Logger) Warn(msg string) {
	l.log(LevelWarn, msg, nil, nil)
}

// WarnContext logs a warning with context correlation fields
func (l *Logger) WarnContext(ctx context.Context, msg string) {
	l.logContext(ctx, LevelWarn, msg, nil, nil)
}

// Error logs an error
func (l *Logger) Error(msg string, err error) {
	l.log(LevelError, msg, nil, err)
}

// ErrorContext logs an error with context correlation fields
func (l *Logger) ErrorContext(ctx context.Context, msg string, err error) {
	l.logContext(ctx, LevelError, msg, nil, err)
}

// WithFields returns a derived logger that attaches fields to every entry
func (l *Logger) WithFields(fields map[string]interface{}) *FieldLogger {
	return &FieldLogger{
		logger: l,
		fields: fields,
	}
}

func (l *Logger) log(level Level, msg string, context map[string]interface{}, err error) {
	if levelRank(level) < levelRank(l.minLevel) {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Context:   context,
	}
	if err != nil {
		entry.Error = err.Error()
		if l.withStack && level == LevelError {
			entry.Stack = stackTrace()
		}
	}

	data, _ := json.Marshal(entry)
	fmt.Fprintln(l.output, string(data))
}

// logContext lifts the correlation ids (request id, sync run id) out of the
// context and merges them with the entry fields
func (l *Logger) logContext(ctx context.Context, level Level, msg string, fields map[string]interface{}, err error) {
	if levelRank(level) < levelRank(l.minLevel) {
		return
	}

	context := make(map[string]interface{}, len(fields)+2)
	if requestID := ctx.Value(requestIDKey); requestID != nil {
		context["request_id"] = requestID
	}
	if runID := ctx.Value(syncRunIDKey); runID != nil {
		context["sync_run_id"] = runID
	}
	for k, v := range fields {
		context[k] = v
	}

	l.log(level, msg, context, err)
}

func stackTrace() []string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(3, pcs[:])

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}
	return stack
}

// FieldLogger is a logger with pre-set fields
type FieldLogger struct {
	logger *Logger
	fields map[string]interface{}
}

func (fl *FieldLogger) Debug(msg string) {
	fl.logger.log(LevelDebug, msg, fl.fields, nil)
}

func (fl *FieldLogger) DebugContext(ctx context.Context, msg string) {
	fl.logger.logContext(ctx, LevelDebug, msg, fl.fields, nil)
}

func (fl *FieldLogger) Info(msg string) {
	fl.logger.log(LevelInfo, msg, fl.fields, nil)
}

func (fl *FieldLogger) InfoContext(ctx context.Context, msg string) {
	fl.logger.logContext(ctx, LevelInfo, msg, fl.fields, nil)
}

func (fl *FieldLogger) Warn(msg string) {
	fl.logger.log(LevelWarn, msg, fl.fields, nil)
}

func (fl *FieldLogger) WarnContext(ctx context.Context, msg string) {
	fl.logger.logContext(ctx, LevelWarn, msg, fl.fields, nil)
}

func (fl *FieldLogger) Error(msg string, err error) {
	fl.logger.log(LevelError, msg, fl.fields, err)
}

func (fl *FieldLogger) ErrorContext(ctx context.Context, msg string, err error) {
	fl.logger.logContext(ctx, LevelError, msg, fl.fields, err)
}

// ContextWithRequestID tags the context with an HTTP request ID
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithSyncRunID tags the context with the pipeline run ID so every log
// line emitted during a sync or enrichment run can be correlated.
func ContextWithSyncRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, syncRunIDKey, runID)
}
