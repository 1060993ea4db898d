package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	JSONLoggingFormat = "json"

	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarn    = "warn"
	LogLevelWarning = "warning"
	LogLevelError   = "error"

	ContextKeyRequestID     contextKey = "requestID"
	ContextKeyCorrelationID contextKey = "correlationID"
	ContextKeyRunID         contextKey = "runID"
	ContextKeySubject       contextKey = "subject"
)

var levels = map[string]zerolog.Level{
	LogLevelDebug:   zerolog.DebugLevel,
	LogLevelInfo:    zerolog.InfoLevel,
	LogLevelWarn:    zerolog.WarnLevel,
	LogLevelWarning: zerolog.WarnLevel,
	LogLevelError:   zerolog.ErrorLevel,
}

// contextFields maps context keys to the log field they populate.
var contextFields = []struct {
	key   contextKey
	field string
}{
	{ContextKeyCorrelationID, "correlation_id"},
	{ContextKeyRequestID, "request_id"},
	{ContextKeyRunID, "run_id"},
	{ContextKeySubject, "subject"},
}

type Logger struct {
	zerolog.Logger
}

func New(level, format string) Logger {
	return NewWithWriter(level, format, os.Stdout)
}

func NewWithWriter(level, format string, w io.Writer) Logger {
	logLevel, ok := levels[strings.ToLower(level)]
	if !ok {
		logLevel = zerolog.InfoLevel
	}

	var logger zerolog.Logger

	if format == JSONLoggingFormat {
		logger = zerolog.New(w)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}

	return Logger{
		Logger: logger.Level(logLevel).With().Timestamp().Logger(),
	}
}

// Named returns a child logger tagged with the emitting component.
func (l Logger) Named(component string) Logger {
	return Logger{Logger: l.With().Str("component", component).Logger()}
}

// WithRunID stores the run identifier so WithContext can attach it to every entry.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

func (l Logger) WithContext(ctx context.Context) zerolog.Logger {
	logger := l.Logger

	for _, cf := range contextFields {
		if value, ok := ctx.Value(cf.key).(string); ok && value != "" {
			logger = logger.With().Str(cf.field, value).Logger()
		}
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return logger
}
