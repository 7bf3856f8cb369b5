package logbuf

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
)

// componentKeys are the attributes that name the emitting component.
var componentKeys = []string{"cog", "component"}

// Handler tees records into a Buffer and passes them on to next.
// The buffer sees every level; next keeps its own level filter.
type Handler struct {
	next   slog.Handler
	buf    *Buffer
	attrs  map[string]any
	prefix string
}

// NewHandler wraps next so that records are also captured in buf.
func NewHandler(next slog.Handler, buf *Buffer) *Handler {
	return &Handler{next: next, buf: buf, attrs: map[string]any{}}
}

func (h *Handler) Enabled(context.Context, slog.Level) bool { return true }

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	attrs := maps.Clone(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, h.prefix, a)
		return true
	})

	e := Entry{Time: r.Time, Level: r.Level.String(), Message: r.Message}
	for _, k := range componentKeys {
		if v, ok := attrs[k].(string); ok {
			e.Component = v
			break
		}
	}
	if len(attrs) > 0 {
		e.Attrs = attrs
	}
	h.buf.Add(e)

	if h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *Handler) WithAttrs(as []slog.Attr) slog.Handler {
	attrs := maps.Clone(h.attrs)
	for _, a := range as {
		flatten(attrs, h.prefix, a)
	}
	return &Handler{next: h.next.WithAttrs(as), buf: h.buf, attrs: attrs, prefix: h.prefix}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{next: h.next.WithGroup(name), buf: h.buf, attrs: h.attrs, prefix: h.prefix + name + "."}
}

// flatten stores a under prefix, expanding groups into dotted keys.
func flatten(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(dst, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	dst[prefix+a.Key] = jsonSafe(v)
}

// jsonSafe renders errors and Stringers as text; they marshal to {} otherwise.
func jsonSafe(v slog.Value) any {
	switch x := v.Any().(type) {
	case error:
		return x.Error()
	case fmt.Stringer:
		if v.Kind() == slog.KindAny {
			return x.String()
		}
	}
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time()
	}
	return v.Any()
}
