package connector

import "testing"

func TestPlainText_ContentOnly(t *testing.T) {
	got := PlainText(OutboundMessage{Content: "hello"}, nil)
	if got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestPlainText_Embed(t *testing.T) {
	e := &Embed{Title: "HTTP Ping Failed", Description: "target down", Footer: "uptime"}
	e.AddField("URL", "https://example.com", false).AddField("Error", "timeout", false)

	got := PlainText(OutboundMessage{Embed: e}, func(s string) string { return "*" + s + "*" })
	want := "*HTTP Ping Failed*\ntarget down\n*URL*: https://example.com\n*Error*: timeout\nuptime"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPlainText_ContentAndEmbed(t *testing.T) {
	got := PlainText(OutboundMessage{Content: "alert", Embed: &Embed{Title: "T"}}, nil)
	if got != "alert\n\nT" {
		t.Errorf("got %q", got)
	}
}
