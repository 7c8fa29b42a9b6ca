package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		logFn   func(l *Logger)
		wantOut bool
	}{
		{"debug suppressed at info", "info", func(l *Logger) { l.Debug("hidden") }, false},
		{"info emitted at info", "info", func(l *Logger) { l.Info("shown") }, true},
		{"warn suppressed at error", "error", func(l *Logger) { l.Warn("hidden") }, false},
		{"error emitted at error", "error", func(l *Logger) { l.Error("shown") }, true},
		{"unknown level defaults to info", "verbose", func(l *Logger) { l.Info("shown") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(Config{Level: tt.level, Format: "json", Output: &buf})
			tt.logFn(l)
			assert.Equal(t, tt.wantOut, buf.Len() > 0)
		})
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", Output: &buf})

	l.WithFields(map[string]interface{}{
		"action_id": "a-1",
		"host_id":   "h-1",
	}).WithError(errors.New("boom")).Info("transition applied")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "a-1", entry["action_id"])
	assert.Equal(t, "h-1", entry["host_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "transition applied", entry["message"])
	assert.Equal(t, "fleetfix", entry["service"])
}

func TestLogger_Ctx(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	tests := []struct {
		name        string
		ctx         context.Context
		wantRequest string
		wantTrace   string
	}{
		{name: "empty context", ctx: context.Background()},
		{
			name:        "request id",
			ctx:         ContextWithRequestID(context.Background(), "req-1"),
			wantRequest: "req-1",
		},
		{
			name: "request id and span",
			ctx: trace.ContextWithSpanContext(
				ContextWithRequestID(context.Background(), "req-2"),
				trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID}),
			),
			wantRequest: "req-2",
			wantTrace:   traceID.String(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(Config{Level: "info", Output: &buf})
			l.Ctx(tt.ctx).Info("check-in processed")

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			if tt.wantRequest == "" {
				assert.NotContains(t, entry, "request_id")
			} else {
				assert.Equal(t, tt.wantRequest, entry["request_id"])
			}
			if tt.wantTrace == "" {
				assert.NotContains(t, entry, "trace_id")
			} else {
				assert.Equal(t, tt.wantTrace, entry["trace_id"])
			}
		})
	}
}

func TestLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: "off", Output: &buf}).Error("dropped")
	assert.Zero(t, buf.Len())
}
