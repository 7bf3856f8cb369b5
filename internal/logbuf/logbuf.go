// Package logbuf keeps the most recent log records in memory so the admin
// API can serve them.
package logbuf

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultSize = 1000

// Entry is one captured log record.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`

	level slog.Level
}

// Filter selects entries. The zero Filter matches INFO and above.
type Filter struct {
	Since     time.Time
	MinLevel  slog.Level
	Component string
	Limit     int // keep only the newest Limit matches
}

// Buffer is a fixed-size ring of entries, safe for concurrent use.
type Buffer struct {
	mu   sync.Mutex
	ring []Entry
	next int
	full bool
}

// New creates a buffer holding up to size entries.
func New(size int) *Buffer {
	if size <= 0 {
		size = defaultSize
	}
	return &Buffer{ring: make([]Entry, size)}
}

// Add stores e, evicting the oldest entry when the buffer is full.
func (b *Buffer) Add(e Entry) {
	if lvl, ok := ParseLevel(e.Level); ok {
		e.level = lvl
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ring[b.next] = e
	b.next = (b.next + 1) % len(b.ring)
	if b.next == 0 {
		b.full = true
	}
}

// Len returns the number of stored entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.ring)
	}
	return b.next
}

// Query returns matching entries, oldest first.
func (b *Buffer) Query(f Filter) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	start, n := 0, b.next
	if b.full {
		start, n = b.next, len(b.ring)
	}

	out := []Entry{}
	for i := range n {
		e := b.ring[(start+i)%len(b.ring)]
		if !f.Since.IsZero() && e.Time.Before(f.Since) {
			continue
		}
		if e.level < f.MinLevel {
			continue
		}
		if f.Component != "" && e.Component != f.Component {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// ParseLevel accepts slog level names in any case, such as "warn" or "ERROR".
func ParseLevel(s string) (slog.Level, bool) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelInfo, false
	}
	return lvl, true
}
