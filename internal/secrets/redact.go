package secrets

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Placeholder replaces secret values in log output.
const Placeholder = "[redacted]"

// redactions is shared between a RedactHandler and the handlers derived
// from it through WithAttrs and WithGroup.
type redactions struct {
	mu       sync.RWMutex
	values   map[string]struct{}
	replacer *strings.Replacer
}

// RedactHandler wraps a slog handler and scrubs known secret values from
// messages and string attributes, including attributes inside groups.
type RedactHandler struct {
	inner slog.Handler
	r     *redactions
}

// NewRedactHandler wraps inner.
func NewRedactHandler(inner slog.Handler) *RedactHandler {
	return &RedactHandler{
		inner: inner,
		r:     &redactions{values: make(map[string]struct{})},
	}
}

// Add registers values to be scrubbed. Empty values are ignored.
func (h *RedactHandler) Add(values ...string) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()

	for _, v := range values {
		if v != "" {
			h.r.values[v] = struct{}{}
		}
	}

	pairs := make([]string, 0, 2*len(h.r.values))
	for v := range h.r.values {
		pairs = append(pairs, v, Placeholder)
	}
	h.r.replacer = strings.NewReplacer(pairs...)
}

// Redact scrubs known secret values from s.
func (h *RedactHandler) Redact(s string) string {
	h.r.mu.RLock()
	rep := h.r.replacer
	h.r.mu.RUnlock()

	if rep == nil {
		return s
	}
	return rep.Replace(s)
}

// Enabled delegates to the inner handler.
func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle scrubs the record and passes it on.
func (h *RedactHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, h.Redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs scrubs attrs before handing them to the inner handler. Values
// registered later are not applied to them.
func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = h.redactAttr(a)
	}
	return &RedactHandler{inner: h.inner.WithAttrs(scrubbed), r: h.r}
}

// WithGroup delegates to the inner handler.
func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{inner: h.inner.WithGroup(name), r: h.r}
}

func (h *RedactHandler) redactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.Redact(v.String()))
	case slog.KindGroup:
		group := v.Group()
		scrubbed := make([]any, len(group))
		for i, ga := range group {
			scrubbed[i] = h.redactAttr(ga)
		}
		return slog.Group(a.Key, scrubbed...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, h.Redact(err.Error()))
		}
	}
	return a
}
