package closerequest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/h1v3-io/modcogs/internal/command"
	"github.com/h1v3-io/modcogs/internal/confirm"
	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/connector/chattest"
	"github.com/h1v3-io/modcogs/internal/store"
	"github.com/h1v3-io/modcogs/internal/thread"
	"github.com/h1v3-io/modcogs/internal/ticket"
	"github.com/h1v3-io/modcogs/pkg/protocol"
)

// manualClock hands out timers that fire only when the test says so.
type manualClock struct {
	created chan *manualTimer
}

type manualTimer struct {
	d    time.Duration
	c    chan time.Time
	once sync.Once
}

func (c *manualClock) Now() time.Time { return time.Now() }

func (c *manualClock) NewTimer(d time.Duration) confirm.Timer {
	t := &manualTimer{d: d, c: make(chan time.Time, 1)}
	c.created <- t
	return t
}

func (t *manualTimer) C() <-chan time.Time { return t.c }
func (t *manualTimer) Stop() bool          { return true }
func (t *manualTimer) fire()               { t.once.Do(func() { t.c <- time.Now() }) }

type fixture struct {
	cog      *Cog
	router   *command.Router
	platform *chattest.Platform
	tickets  *ticket.SQLiteStore
	workflow *confirm.Workflow
	clock    *manualClock
	ticket   *protocol.Ticket
	docs     *store.SQLiteStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	docs, err := store.Open(filepath.Join(t.TempDir(), "modcogs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { docs.Close() })
	tickets, err := ticket.NewSQLiteStore(docs.DB())
	if err != nil {
		t.Fatal(err)
	}

	p := chattest.NewPlatform()
	threads := thread.NewManager(p, tickets, "cat", nil)
	clock := &manualClock{created: make(chan *manualTimer, 4)}
	wf := confirm.New(nil, confirm.WithClock(clock))
	t.Cleanup(wf.Close)

	cog, err := New(ctx, wf, threads, p, docs.Partition("closerequest"), nil)
	if err != nil {
		t.Fatal(err)
	}
	router := command.NewRouter("?", p, threads, command.Roles{Supporter: []string{"sup"}, Administrator: []string{"admin"}}, nil)
	if err := router.Register(append(cog.Commands(), command.ThreadCommands(threads)...)...); err != nil {
		t.Fatal(err)
	}
	router.HandleInteraction("confirm:", cog.HandleInteraction)
	router.OnDirect(threads.HandleDirect)

	router.HandleMessage(ctx, connector.InboundMessage{SenderID: "user-1", SenderName: "Alice", ChatID: "dm-user-1", Content: "help", Direct: true})
	tk, err := tickets.OpenForRecipient(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}

	return &fixture{cog: cog, router: router, platform: p, tickets: tickets, workflow: wf, clock: clock, ticket: tk, docs: docs}
}

func (f *fixture) staff(t *testing.T, content string) {
	t.Helper()
	err := f.router.HandleMessage(context.Background(), connector.InboundMessage{
		SenderID: "mod-1", SenderName: "Mod", SenderRoles: []string{"sup", "admin"}, ChatID: f.ticket.ChannelID, Content: content,
	})
	if err != nil {
		t.Fatalf("%s: %v", content, err)
	}
}

func (f *fixture) press(t *testing.T, userID string, kind confirm.DecisionKind) *chattest.Responder {
	t.Helper()
	req, ok := f.workflow.ForThread(f.ticket.ID)
	id := ""
	if ok {
		id = req.ID
	} else if all := f.workflow.List(); len(all) > 0 {
		id = all[len(all)-1].ID
	}
	resp := &chattest.Responder{}
	err := f.router.Dispatch(context.Background(), connector.Interaction{
		Kind: connector.InteractionButton, CustomID: confirm.ButtonID(id, kind), SenderID: userID, Responder: resp,
	})
	if err != nil {
		t.Fatalf("press: %v", err)
	}
	return resp
}

func (f *fixture) pending(t *testing.T) *confirm.Request {
	t.Helper()
	req, ok := f.workflow.ForThread(f.ticket.ID)
	if !ok {
		t.Fatal("no pending close request")
	}
	return req
}

func wait(t *testing.T, req *confirm.Request) confirm.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o, err := req.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return o
}

func lastEmbed(t *testing.T, p *chattest.Platform, chat string) *connector.Embed {
	t.Helper()
	sent := p.SentTo(chat)
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].Embed != nil {
			return sent[i].Embed
		}
	}
	t.Fatalf("no embed sent to %s", chat)
	return nil
}

func TestCloseRequestPublishesPrompt(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "?closerequest 1h 30m all sorted?")

	prompt := lastEmbed(t, f.platform, "dm-user-1")
	if prompt.Title != "Close Request" || prompt.Description != "all sorted?" {
		t.Errorf("prompt = %+v", prompt)
	}
	if prompt.Footer != "This ticket will auto-close in 1 hour 30 minutes if no response is given." {
		t.Errorf("footer = %q", prompt.Footer)
	}
	dm := f.platform.SentTo("dm-user-1")
	buttons := dm[len(dm)-1].Buttons
	if len(buttons) != 2 || buttons[0].Label != "Close Ticket" || buttons[1].Label != "Keep Open" {
		t.Errorf("buttons = %+v", buttons)
	}

	staff := f.platform.SentTo(f.ticket.ChannelID)
	if got := staff[len(staff)-1].Content; got != "Close request sent to <@user-1>." {
		t.Errorf("staff reply = %q", got)
	}
	if req := f.pending(t); req.Timeout != 90*time.Minute || req.InitiatorID != "mod-1" {
		t.Errorf("request = %+v", req.Snapshot())
	}
}

func TestCloseRequestDefaultMessageNoTimer(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "?closerequest")

	prompt := lastEmbed(t, f.platform, "dm-user-1")
	if prompt.Description != DefaultConfig.DefaultMessage || prompt.Footer != "" {
		t.Errorf("prompt = %+v", prompt)
	}
	if req := f.pending(t); !req.Deadline().IsZero() {
		t.Error("request without duration has a deadline")
	}
	select {
	case <-f.clock.created:
		t.Error("timer created without duration")
	default:
	}
}

func TestCloseRequestRejectsSecondPending(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "?closerequest")
	f.staff(t, "?closerequest")

	staff := f.platform.SentTo(f.ticket.ChannelID)
	if got := staff[len(staff)-1].Content; got != "A close request is already pending for this ticket." {
		t.Errorf("reply = %q", got)
	}
}

func TestReservationIsPerTicket(t *testing.T) {
	f := newFixture(t)
	if !f.cog.reserve("t-a") {
		t.Fatal("first reserve failed")
	}
	if !f.cog.reserve("t-b") {
		t.Error("other ticket blocked by an in-flight start")
	}
	if f.cog.reserve("t-a") {
		t.Error("same ticket reserved twice")
	}
	f.cog.release("t-a")
	if !f.cog.reserve("t-a") {
		t.Error("reserve after release failed")
	}

	f.staff(t, "?closerequest")
	if f.cog.reserve(f.ticket.ID) {
		t.Error("reserved a ticket with a pending request")
	}
}

func TestRecipientAcceptsCloses(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "?closerequest")
	req := f.pending(t)

	resp := f.press(t, "user-1", confirm.Accept)
	if resp.Deferred != 1 || len(resp.Replies) != 0 {
		t.Errorf("responder = %+v", resp)
	}
	if o := wait(t, req); o != confirm.OutcomeAccepted {
		t.Fatalf("outcome = %s", o)
	}

	tk, _ := f.tickets.Get(context.Background(), f.ticket.ID)
	if tk.Status != protocol.TicketClosed || tk.ClosedBy != "mod-1" || tk.CloseMessage != "" {
		t.Errorf("ticket = %+v", tk)
	}
	for _, p := range req.Prompts() {
		edit, ok := f.platform.Edited(p.MessageID)
		if !ok || edit.Embed.Title != "Ticket Closed" || len(edit.Buttons) != 0 {
			t.Errorf("%s prompt = %+v", p.Surface, edit)
		}
	}
}

func TestRecipientDeclinesKeepsOpen(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "?closerequest 10m")
	req := f.pending(t)
	timer := <-f.clock.created

	f.press(t, "user-1", confirm.Decline)
	if o := wait(t, req); o != confirm.OutcomeDeclined {
		t.Fatalf("outcome = %s", o)
	}
	timer.fire()

	tk, _ := f.tickets.Get(context.Background(), f.ticket.ID)
	if !tk.IsOpen() {
		t.Error("declined request closed the ticket")
	}
	edit, _ := f.platform.Edited(req.Prompts()[0].MessageID)
	if edit.Embed.Title != "Close Request Cancelled" || edit.Embed.Description != "This ticket will remain open." {
		t.Errorf("edit = %+v", edit.Embed)
	}
}

func TestTimeoutAutoCloses(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "?closerequest 2h")
	req := f.pending(t)

	timer := <-f.clock.created
	if timer.d != 2*time.Hour {
		t.Errorf("timer = %v", timer.d)
	}
	timer.fire()
	if o := wait(t, req); o != confirm.OutcomeExpired {
		t.Fatalf("outcome = %s", o)
	}

	tk, _ := f.tickets.Get(context.Background(), f.ticket.ID)
	if tk.IsOpen() || tk.CloseMessage != DefaultConfig.AutoCloseMessage {
		t.Errorf("ticket = %+v", tk)
	}
	for _, p := range req.Prompts() {
		edit, _ := f.platform.Edited(p.MessageID)
		if edit.Embed == nil || edit.Embed.Title != "Ticket Auto-Closed" || edit.Embed.Color != connector.ColorOrange {
			t.Errorf("%s prompt = %+v", p.Surface, edit.Embed)
		}
	}

	resp := f.press(t, "user-1", confirm.Accept)
	if resp.LastReply().Content != MsgResolved {
		t.Errorf("late press reply = %q", resp.LastReply().Content)
	}
}

func TestStaffClosedBeforeTimeout(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "?closerequest 1h")
	req := f.pending(t)
	timer := <-f.clock.created

	f.staff(t, "?close")
	timer.fire()
	if o := wait(t, req); o != confirm.OutcomeExpired {
		t.Fatalf("outcome = %s", o)
	}
	tk, _ := f.tickets.Get(context.Background(), f.ticket.ID)
	if tk.CloseMessage != "" {
		t.Errorf("auto-close overwrote manual close: %+v", tk)
	}
}

func TestOtherUserCannotDecide(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "?closerequest")

	resp := f.press(t, "mod-1", confirm.Accept)
	if resp.LastReply().Content != MsgNotRecipient {
		t.Errorf("reply = %q", resp.LastReply().Content)
	}
	if req := f.pending(t); req.Outcome() != confirm.OutcomePending {
		t.Error("unauthorized press resolved the request")
	}
}

func TestUnknownRequest(t *testing.T) {
	f := newFixture(t)
	resp := &chattest.Responder{}
	f.cog.HandleInteraction(context.Background(), connector.Interaction{
		CustomID: confirm.ButtonID("from-before-restart", confirm.Accept), SenderID: "user-1", Responder: resp,
	})
	if resp.LastReply().Content != MsgInactive {
		t.Errorf("reply = %q", resp.LastReply().Content)
	}
}

func TestPublishFailureReported(t *testing.T) {
	f := newFixture(t)
	f.platform.FailDirect["user-1"] = errDMsClosed

	f.staff(t, "?closerequest")
	req, ok := f.workflow.ForThread(f.ticket.ID)
	if !ok {
		t.Fatal("thread surface alone should carry the request")
	}
	if prompts := req.Prompts(); len(prompts) != 1 || prompts[0].Surface != "thread" {
		t.Errorf("prompts = %+v", prompts)
	}
}

func TestConfigCommands(t *testing.T) {
	f := newFixture(t)
	f.staff(t, "?closerequestconfig setmessage Are we done here?")
	f.staff(t, "?closerequestconfig setautoclosemessage Closed, no reply.")

	if cfg := f.cog.Config(); cfg.DefaultMessage != "Are we done here?" || cfg.AutoCloseMessage != "Closed, no reply." {
		t.Errorf("config = %+v", cfg)
	}

	reloaded, err := New(context.Background(), f.workflow, nil, f.platform, f.docs.Partition("closerequest"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Config() != f.cog.Config() {
		t.Errorf("persisted = %+v", reloaded.Config())
	}

	f.staff(t, "?closerequestconfig view")
	view := lastEmbed(t, f.platform, f.ticket.ChannelID)
	if view.Title != "Close Request Configuration" || len(view.Fields) != 2 || view.Fields[0].Value != "Are we done here?" {
		t.Errorf("view = %+v", view)
	}

	f.staff(t, "?closerequestconfig setmessage")
	staff := f.platform.SentTo(f.ticket.ChannelID)
	if got := staff[len(staff)-1].Content; !strings.HasPrefix(got, "Usage:") {
		t.Errorf("reply = %q", got)
	}
}

type dmError string

func (e dmError) Error() string { return string(e) }

const errDMsClosed = dmError("cannot send messages to this user")
