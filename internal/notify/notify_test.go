package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/h1v3-io/modcogs/internal/connector"
	slackconn "github.com/h1v3-io/modcogs/internal/connector/slack"
	"github.com/h1v3-io/modcogs/internal/connector/telegram"
)

var (
	_ Sink = (*slackconn.Connector)(nil)
	_ Sink = (*telegram.Connector)(nil)
)

type mockSink struct {
	name string
	err  error
	mu   sync.Mutex
	got  []connector.OutboundMessage
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Alert(_ context.Context, msg connector.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, msg)
	return m.err
}

func TestAlertFansOut(t *testing.T) {
	a, b := &mockSink{name: "slack"}, &mockSink{name: "telegram"}
	n := New(nil, a, b)

	msg := connector.OutboundMessage{Embed: &connector.Embed{Title: "HTTP Ping Failed"}}
	if err := n.Alert(context.Background(), msg); err != nil {
		t.Fatalf("Alert: %v", err)
	}
	for _, s := range []*mockSink{a, b} {
		if len(s.got) != 1 || s.got[0].Embed.Title != "HTTP Ping Failed" {
			t.Errorf("%s got %+v", s.name, s.got)
		}
	}
}

func TestAlertContinuesPastFailure(t *testing.T) {
	bad := &mockSink{name: "slack", err: errors.New("channel_not_found")}
	good := &mockSink{name: "telegram"}
	n := New(nil, bad, good)

	err := n.Alert(context.Background(), connector.OutboundMessage{Content: "down"})
	if err == nil || !strings.Contains(err.Error(), "slack: channel_not_found") {
		t.Errorf("err = %v", err)
	}
	if len(good.got) != 1 {
		t.Error("healthy sink did not receive alert")
	}
}

func TestNoSinks(t *testing.T) {
	n := New(nil)
	if n.Enabled() {
		t.Error("Enabled with no sinks")
	}
	if err := n.Alert(context.Background(), connector.OutboundMessage{Content: "x"}); err != nil {
		t.Errorf("Alert: %v", err)
	}

	var nilNotifier *Notifier
	if nilNotifier.Enabled() {
		t.Error("nil notifier enabled")
	}
	if err := nilNotifier.Alert(context.Background(), connector.OutboundMessage{}); err != nil {
		t.Errorf("nil Alert: %v", err)
	}
}
