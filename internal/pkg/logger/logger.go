package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Logger wraps zerolog logger
type Logger struct {
	logger zerolog.Logger
}

// Config contains logger configuration
type Config struct {
	Level      string
	Format     string // json or console
	OutputPath string // empty or "stdout" writes to stdout
	Output     io.Writer
}

// New creates a new logger instance
func New(cfg Config) *Logger {
	output := resolveOutput(cfg)

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "fleetfix").
		Logger()

	return &Logger{logger: logger}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func resolveOutput(cfg Config) io.Writer {
	if cfg.Output != nil {
		return cfg.Output
	}
	switch cfg.OutputPath {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	f, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return os.Stdout
	}
	return f
}

// parseLevel converts string to zerolog level
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) Debug(msg string) { l.logger.Debug().Msg(msg) }

func (l *Logger) Info(msg string) { l.logger.Info().Msg(msg) }

func (l *Logger) Warn(msg string) { l.logger.Warn().Msg(msg) }

func (l *Logger) Error(msg string) { l.logger.Error().Msg(msg) }

// ErrorWithErr logs msg at error level with err attached.
func (l *Logger) ErrorWithErr(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// WithFields returns a logger with multiple fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{logger: ctx.Logger()}
}

// WithError returns a logger with error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// Init builds the process logger and routes the zerolog global through it, so
// libraries logging via zerolog/log share the same sink and level.
func Init(cfg Config) *Logger {
	l := New(cfg)
	log.Logger = l.logger
	return l
}

type ctxKey struct{}

// ContextWithRequestID returns ctx carrying the request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestIDFromContext returns the request id stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ctx returns a logger stamped with the request id and trace id found in ctx.
// Log lines written while handling a check-in or an API call can then be joined
// with the access log and the trace.
func (l *Logger) Ctx(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	c := l.logger.With()
	changed := false
	if id := RequestIDFromContext(ctx); id != "" {
		c = c.Str("request_id", id)
		changed = true
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		c = c.Str("trace_id", sc.TraceID().String())
		changed = true
	}
	if !changed {
		return l
	}
	return &Logger{logger: c.Logger()}
}
