package command

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/connector/chattest"
	"github.com/h1v3-io/modcogs/internal/thread"
	"github.com/h1v3-io/modcogs/internal/ticket"
	"github.com/h1v3-io/modcogs/pkg/protocol"
)

func TestReplyAndCloseCommands(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store, err := ticket.NewSQLiteStore(db)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	p := chattest.NewPlatform()
	threads := thread.NewManager(p, store, "cat", nil)
	r := NewRouter("?", p, threads, roles, nil)
	if err := r.Register(ThreadCommands(threads)...); err != nil {
		t.Fatal(err)
	}
	r.OnDirect(threads.HandleDirect)

	r.HandleMessage(ctx, connector.InboundMessage{SenderID: "u-1", SenderName: "Alice", ChatID: "dm-u-1", Content: "hi", Direct: true})
	tk, err := store.OpenForRecipient(ctx, "u-1")
	if err != nil {
		t.Fatalf("ticket not opened: %v", err)
	}

	r.HandleMessage(ctx, msg(tk.ChannelID, "?reply", "role-sup"))
	if got := lastContent(t, p, tk.ChannelID); got != "Usage: `?reply <message>`" {
		t.Errorf("usage = %q", got)
	}

	r.HandleMessage(ctx, msg(tk.ChannelID, "?r on our way", "role-sup"))
	if sent := p.SentTo("dm-u-1"); len(sent) != 1 || sent[0].Embed.Description != "on our way" {
		t.Errorf("dm = %+v", sent)
	}

	r.HandleMessage(ctx, msg(tk.ChannelID, "?close all done", "role-sup"))
	closed, _ := store.Get(ctx, tk.ID)
	if closed.Status != protocol.TicketClosed || closed.CloseMessage != "all done" || closed.ClosedBy != "mod-1" {
		t.Errorf("ticket = %+v", closed)
	}

	r.HandleMessage(ctx, msg(tk.ChannelID, "?close", "role-sup"))
	if got := lastContent(t, p, tk.ChannelID); got != MsgThreadOnly {
		t.Errorf("close on closed ticket = %q", got)
	}
}
