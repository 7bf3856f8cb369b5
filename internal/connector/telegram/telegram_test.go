package telegram

import (
	"testing"

	"github.com/h1v3-io/modcogs/internal/connector"
)

// Verify Connector implements connector.Connector at compile time.
var _ connector.Connector = (*Connector)(nil)

func TestContains(t *testing.T) {
	ids := []int64{100, 200, 300}

	if !contains(ids, 200) {
		t.Error("expected 200 to be found")
	}
	if contains(ids, 999) {
		t.Error("expected 999 to not be found")
	}
	if contains(nil, 100) {
		t.Error("expected nil slice to return false")
	}
}

func TestAllowed(t *testing.T) {
	c := &Connector{config: Config{ChatIDs: []int64{-1001}}}
	if !c.allowed(5, -1001) {
		t.Error("member of alert chat should be allowed")
	}
	if c.allowed(5, 42) {
		t.Error("other chat should be rejected")
	}

	c.config.AllowFrom = []int64{7}
	if c.allowed(5, -1001) {
		t.Error("AllowFrom should take precedence")
	}
	if !c.allowed(7, 42) {
		t.Error("listed user should be allowed anywhere")
	}
}

func TestNewRequiresChat(t *testing.T) {
	if _, err := New(Config{Token: "x"}, nil, nil); err == nil {
		t.Error("expected error without chat ids")
	}
}

func TestRenderHTML(t *testing.T) {
	e := &connector.Embed{Title: "HTTP Ping Failed <prod>", Description: "status 503 & retry"}
	e.AddField("URL", "https://example.com/?a=1&b=2", false)

	got := RenderHTML(connector.OutboundMessage{Embed: e})
	want := "<b>HTTP Ping Failed &lt;prod&gt;</b>\nstatus 503 &amp; retry\n<b>URL</b>: https://example.com/?a=1&amp;b=2"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderHTMLContentOnly(t *testing.T) {
	got := RenderHTML(connector.OutboundMessage{Content: "a < b"})
	if got != "a &lt; b" {
		t.Errorf("got %q", got)
	}
}
