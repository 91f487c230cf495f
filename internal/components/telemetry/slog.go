package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// SlogAPI implements API using the log/slog package.
type SlogAPI struct{}

// SlogAPI params are key/value pairs when the first of each pair is a string,
// anything else is numbered positionally.
func (SlogAPI) formatParams(out *[]any, params []any) {
	for i := 0; i < len(params); i++ {
		key, ok := params[i].(string)
		if ok && i+1 < len(params) {
			*out = append(*out, key, params[i+1])
			i++
			continue
		}
		*out = append(
			*out,
			fmt.Sprintf("params.%d", i),
			params[i],
		)
	}
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Error("broken component", remainingPairs...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Warn("warning", remainingPairs...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Debug(message, remainingPairs...)
}

func (s SlogAPI) ReportInfo(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Info(message, remainingPairs...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", "id", id, "n", count)
}

// InitSlog installs the default slog logger, writing text logs to stderr.
func InitSlog(verbose bool) {
	slog.SetDefault(slog.New(NewLogHandler(os.Stderr, verbose)))
}

// NewLogHandler returns a text handler that masks credentials.
func NewLogHandler(w io.Writer, verbose bool) slog.Handler {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return redactingHandler{
		inner: slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}),
	}
}

const maskedValue = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"set-cookie":    true,
	"password":      true,
	"token":         true,
	"access_token":  true,
	"session":       true,
}

func isSensitive(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

func redactString(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return maskedValue
	}
	return s
}

func redactAttr(a slog.Attr) slog.Attr {
	if isSensitive(a.Key) {
		return slog.String(a.Key, maskedValue)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, redactString(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		attrs := make([]any, len(group))
		for i, g := range group {
			attrs[i] = redactAttr(g)
		}
		return slog.Group(a.Key, attrs...)
	}
	return a
}

type redactingHandler struct {
	inner slog.Handler
}

func (h redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return redactingHandler{inner: h.inner.WithAttrs(redacted)}
}

func (h redactingHandler) WithGroup(name string) slog.Handler {
	return redactingHandler{inner: h.inner.WithGroup(name)}
}
