package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// secretKeys are attribute keys whose values never reach the output.
var secretKeys = map[string]struct{}{
	"access_token":   {},
	"refresh_token":  {},
	"token":          {},
	"password":       {},
	"passphrase":     {},
	"authorization":  {},
	"csrf_token":     {},
	"session_secret": {},
}

const redacted = "[REDACTED]"

// New creates the process logger.
// Kubernetes/production: JSON handler for log aggregation.
// Local: text handler with errors in red.
// Both add trace_id/span_id from the OTel span in ctx.
func New() *slog.Logger {
	return NewWriter(os.Stdout, os.Getenv("ENV"))
}

func NewWriter(w io.Writer, env string) *slog.Logger {
	_, inK8s := os.LookupEnv("KUBERNETES_SERVICE_HOST")
	useJSON := inK8s || env == "prod" || env == "dev"

	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       slog.LevelInfo,
			AddSource:   true,
			ReplaceAttr: redact,
		})
	} else {
		handler = newColorTextHandler(w, &slog.HandlerOptions{
			Level:       slog.LevelDebug,
			ReplaceAttr: redact,
		})
	}
	return slog.New(newTraceContextHandler(handler))
}

func NewWithServiceContext(serviceName, version string) *slog.Logger {
	return New().With(
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("environment", os.Getenv("ENV")),
	)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := secretKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

const (
	red   = "\x1b[31m"
	reset = "\x1b[0m"
)

// colorTextHandler prints records at error level and above in red. The
// escape codes wrap the formatted line so the text handler never quotes
// them.
type colorTextHandler struct {
	plain slog.Handler
	red   slog.Handler
}

func newColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *colorTextHandler {
	return &colorTextHandler{
		plain: slog.NewTextHandler(w, opts),
		red:   slog.NewTextHandler(colorWriter{w: w}, opts),
	}
}

func (h *colorTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.plain.Enabled(ctx, level)
}

func (h *colorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return h.red.Handle(ctx, r)
	}
	return h.plain.Handle(ctx, r)
}

func (h *colorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorTextHandler{plain: h.plain.WithAttrs(attrs), red: h.red.WithAttrs(attrs)}
}

func (h *colorTextHandler) WithGroup(name string) slog.Handler {
	return &colorTextHandler{plain: h.plain.WithGroup(name), red: h.red.WithGroup(name)}
}

// colorWriter wraps each line written by a text handler in red.
type colorWriter struct {
	w io.Writer
}

func (c colorWriter) Write(p []byte) (int, error) {
	line := bytes.TrimSuffix(p, []byte("\n"))
	buf := make([]byte, 0, len(line)+len(red)+len(reset)+1)
	buf = append(buf, red...)
	buf = append(buf, line...)
	buf = append(buf, reset...)
	buf = append(buf, '\n')
	if _, err := c.w.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

// traceContextHandler adds trace_id and span_id from the OTel context.
type traceContextHandler struct {
	handler slog.Handler
}

func newTraceContextHandler(h slog.Handler) *traceContextHandler {
	return &traceContextHandler{handler: h}
}

func (h *traceContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *traceContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}
	return h.handler.Handle(ctx, r)
}

func (h *traceContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceContextHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *traceContextHandler) WithGroup(name string) slog.Handler {
	return &traceContextHandler{handler: h.handler.WithGroup(name)}
}
