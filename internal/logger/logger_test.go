package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewWriter_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "prod")

	log.Info("stored tokens", "access_token", "eyJhbGciOi", "refresh_token", "R", "role", "admin")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, redacted, entry["access_token"])
	assert.Equal(t, redacted, entry["refresh_token"])
	assert.Equal(t, "admin", entry["role"])
}

func TestNewWriter_AddsTraceContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "prod")

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "refresh")
	defer span.End()

	log.InfoContext(ctx, "refreshing")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestNewWriter_LocalText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "local").With("component", "refresh")

	log.Info("refreshing")
	log.Error("refresh failed", "password", "hunter22")

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	assert.NotContains(t, lines[0], "\x1b[")
	assert.Contains(t, lines[0], "msg=refreshing")

	assert.True(t, strings.HasPrefix(lines[1], "\x1b[31m"), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], "\x1b[0m"), lines[1])
	assert.Contains(t, lines[1], `msg="refresh failed"`)
	assert.Contains(t, lines[1], "component=refresh")
	assert.NotContains(t, lines[1], `\x1b`)
	assert.NotContains(t, buf.String(), "hunter22")
}
