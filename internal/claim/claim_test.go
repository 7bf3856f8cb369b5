package claim

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/h1v3-io/modcogs/internal/command"
	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/connector/chattest"
	"github.com/h1v3-io/modcogs/internal/store"
	"github.com/h1v3-io/modcogs/pkg/protocol"
)

var _ Channels = (*chattest.Platform)(nil)

type threads map[string]*protocol.Ticket

func (m threads) ForChannel(_ context.Context, id string) (*protocol.Ticket, error) {
	if t, ok := m[id]; ok {
		return t, nil
	}
	return nil, errors.New("no ticket")
}

func newTestCog(t *testing.T) (*Cog, *chattest.Platform, *store.SQLiteStore) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	p := chattest.NewPlatform()
	p.Names["chan-1"] = "alice"
	return New(p, s.Partition("claim"), nil), p, s
}

func TestClaimAndUnclaimCommands(t *testing.T) {
	c, p, _ := newTestCog(t)
	ctx := context.Background()
	r := command.NewRouter("?", p, threads{"chan-1": {ID: "t-1", ChannelID: "chan-1", Status: protocol.TicketOpen}}, command.Roles{Supporter: []string{"sup"}}, nil)
	if err := r.Register(c.Commands()...); err != nil {
		t.Fatal(err)
	}
	send := func(content string) string {
		t.Helper()
		r.HandleMessage(ctx, connector.InboundMessage{SenderID: "mod", SenderName: "Jane Doe", SenderRoles: []string{"sup"}, ChatID: "chan-1", Content: content})
		sent := p.SentTo("chan-1")
		return sent[len(sent)-1].Content
	}

	if got := send("?claim"); got != "Thread claimed as **Jane-Doe**" {
		t.Errorf("claim reply = %q", got)
	}
	if p.Names["chan-1"] != "alice-Jane-Doe" {
		t.Errorf("channel name = %q", p.Names["chan-1"])
	}
	if got := send("?claim Someone Else"); got != "This thread is already claimed." {
		t.Errorf("second claim = %q", got)
	}

	if got := send("?unclaim"); got != "Thread unclaimed." {
		t.Errorf("unclaim reply = %q", got)
	}
	if p.Names["chan-1"] != "alice" {
		t.Errorf("restored name = %q", p.Names["chan-1"])
	}
	if got := send("?clearclaim"); got != "This thread is not claimed." {
		t.Errorf("second unclaim = %q", got)
	}
}

func TestClaimWithName(t *testing.T) {
	c, p, _ := newTestCog(t)
	ctx := context.Background()

	got, err := c.Claim(ctx, "chan-1", "Team Blue")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Team-Blue" || p.Names["chan-1"] != "alice-Team-Blue" {
		t.Errorf("claimer=%q name=%q", got, p.Names["chan-1"])
	}
	rec, err := c.Get(ctx, "chan-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec != (Record{ThreadID: "chan-1", OriginalName: "alice", Claimer: "Team-Blue"}) {
		t.Errorf("record = %+v", rec)
	}
}

func TestClaimTruncatesName(t *testing.T) {
	c, p, _ := newTestCog(t)
	if _, err := c.Claim(context.Background(), "chan-1", strings.Repeat("x", 150)); err != nil {
		t.Fatal(err)
	}
	if n := len(p.Names["chan-1"]); n != maxChannelName {
		t.Errorf("name length = %d", n)
	}
}

func TestClaimSurvivesRestart(t *testing.T) {
	c, p, s := newTestCog(t)
	ctx := context.Background()
	if _, err := c.Claim(ctx, "chan-1", "bob"); err != nil {
		t.Fatal(err)
	}

	restarted := New(p, s.Partition("claim"), nil)
	if _, err := restarted.Claim(ctx, "chan-1", "carol"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("err = %v", err)
	}
	if err := restarted.Unclaim(ctx, "chan-1"); err != nil {
		t.Fatal(err)
	}
	if p.Names["chan-1"] != "alice" {
		t.Errorf("name = %q", p.Names["chan-1"])
	}
}

func TestClaimUnknownChannel(t *testing.T) {
	c, _, _ := newTestCog(t)
	if _, err := c.Claim(context.Background(), "missing", "bob"); err == nil {
		t.Error("expected error for unknown channel")
	}
	if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, ErrNotClaimed) {
		t.Errorf("Get err = %v", err)
	}
}
