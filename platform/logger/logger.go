// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// RuleIDKey is the context key for the rule being processed
	RuleIDKey contextKey = "rule_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and rule_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("request_id", requestID)),
		}
	}

	if ruleID, ok := ctx.Value(RuleIDKey).(string); ok && ruleID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("rule_id", ruleID)),
		}
	}

	return newLogger
}

// WithRule returns a logger bound to a rule ID.
func (l *Logger) WithRule(ruleID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("rule_id", ruleID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// RemoteCallFailed logs a failed call to an external partner endpoint.
func (l *Logger) RemoteCallFailed(endpoint string, attempt int, err error) {
	l.Warn("remote_call_failed",
		slog.String("endpoint", endpoint),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// DeliveryOutcome logs the outcome of a single lead delivery.
func (l *Logger) DeliveryOutcome(ruleID, leadSubid, status string, responseStatus int) {
	l.Info("lead_delivery",
		slog.String("rule_id", ruleID),
		slog.String("lead_subid", leadSubid),
		slog.String("status", status),
		slog.Int("response_status", responseStatus),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
