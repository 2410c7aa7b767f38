package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPStart logs the start of an HTTP request
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP)

	sl.logger.InfoContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs the completion of an HTTP request
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogStageCompleted logs the end of one pipeline stage
func (sl *StructuredLogger) LogStageCompleted(ctx context.Context, jobID, stage string, duration time.Duration, warned bool) {
	fields := NewFields().WithJobID(jobID)
	fields[FieldStage] = stage
	fields[FieldDuration] = duration.Milliseconds()

	level := slog.LevelInfo
	if warned {
		level = slog.LevelWarn
	}
	sl.logger.Logger.Log(ctx, level, "Pipeline stage completed", fields.ToSlice()...)
}

// LogNoteRecorded logs a note that reached the record store
func (sl *StructuredLogger) LogNoteRecorded(ctx context.Context, jobID, category string, amount *float64, externalID string, warnings int) {
	fields := NewFields().
		WithJobID(jobID).
		WithRecord(category, amount, externalID).
		WithOperation(OpPersist)
	fields[FieldWarningCount] = warnings

	sl.logger.InfoContext(ctx, "Voice note recorded", fields.ToSlice()...)
}
