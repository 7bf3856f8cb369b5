package logbuf

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func fill(buf *Buffer, n int, level string) time.Time {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range n {
		buf.Add(Entry{Time: base.Add(time.Duration(i) * time.Second), Level: level, Message: "msg", Attrs: map[string]any{"i": i}})
	}
	return base
}

func TestBufferKeepsNewest(t *testing.T) {
	buf := New(3)
	fill(buf, 5, "INFO")

	if buf.Len() != 3 {
		t.Fatalf("len = %d", buf.Len())
	}
	entries := buf.Query(Filter{})
	if len(entries) != 3 || entries[0].Attrs["i"] != 2 || entries[2].Attrs["i"] != 4 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestBufferEmpty(t *testing.T) {
	buf := New(0)
	if got := buf.Query(Filter{}); got == nil || len(got) != 0 {
		t.Errorf("empty query = %#v", got)
	}
	if len(buf.ring) != defaultSize {
		t.Errorf("size = %d", len(buf.ring))
	}
}

func TestBufferFilter(t *testing.T) {
	buf := New(10)
	base := fill(buf, 4, "INFO")
	buf.Add(Entry{Time: base.Add(time.Minute), Level: "WARN", Message: "slow", Component: "uptime"})
	buf.Add(Entry{Time: base.Add(time.Minute), Level: "ERROR", Message: "down", Component: "uptime"})
	buf.Add(Entry{Time: base.Add(time.Minute), Level: "DEBUG", Message: "noise", Component: "hiring"})

	if got := buf.Query(Filter{Since: base.Add(2 * time.Second)}); len(got) != 5 {
		t.Errorf("since = %d entries", len(got))
	}
	if got := buf.Query(Filter{MinLevel: slog.LevelWarn}); len(got) != 2 {
		t.Errorf("warn+ = %d entries", len(got))
	}
	if got := buf.Query(Filter{Component: "uptime", MinLevel: slog.LevelError}); len(got) != 1 || got[0].Message != "down" {
		t.Errorf("component = %+v", got)
	}
	got := buf.Query(Filter{Limit: 2})
	if len(got) != 2 || got[1].Message != "noise" {
		t.Errorf("limit = %+v", got)
	}
	if got := buf.Query(Filter{MinLevel: slog.LevelDebug}); len(got) != 7 {
		t.Errorf("debug+ = %d entries", len(got))
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "Warn": slog.LevelWarn, " ERROR ": slog.LevelError} {
		if got, ok := ParseLevel(in); !ok || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Error("accepted unknown level")
	}
}

func TestHandlerCapturesAllLevels(t *testing.T) {
	var out bytes.Buffer
	buf := New(10)
	logger := slog.New(NewHandler(slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}), buf))

	logger.Debug("hidden from stdout")
	logger.Info("visible")

	if buf.Len() != 2 {
		t.Fatalf("captured %d", buf.Len())
	}
	if strings.Contains(out.String(), "hidden") || !strings.Contains(out.String(), "visible") {
		t.Errorf("stdout = %s", out.String())
	}
}

func TestHandlerAttrs(t *testing.T) {
	var out bytes.Buffer
	buf := New(10)
	logger := slog.New(NewHandler(slog.NewJSONHandler(&out, nil), buf)).With("cog", "uptime")

	logger.WithGroup("req").Warn("ping failed",
		"error", errors.New("connection refused"),
		"latency", 1500*time.Millisecond,
		slog.Group("http", "status", 503),
	)

	e := buf.Query(Filter{})[0]
	if e.Component != "uptime" || e.Level != "WARN" {
		t.Errorf("entry = %+v", e)
	}
	want := map[string]any{
		"cog":             "uptime",
		"req.error":       "connection refused",
		"req.latency":     "1.5s",
		"req.http.status": int64(503),
	}
	for k, v := range want {
		if e.Attrs[k] != v {
			t.Errorf("attrs[%q] = %#v, want %#v", k, e.Attrs[k], v)
		}
	}
}
