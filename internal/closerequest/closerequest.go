// Package closerequest asks a ticket's recipient to confirm that the ticket
// can be closed, optionally closing it automatically when nobody answers.
package closerequest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/h1v3-io/modcogs/internal/command"
	"github.com/h1v3-io/modcogs/internal/confirm"
	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/store"
	"github.com/h1v3-io/modcogs/internal/thread"
	"github.com/h1v3-io/modcogs/pkg/protocol"
)

const configID = "closerequest-config"

// Notices shown to whoever presses a prompt button.
const (
	MsgNotRecipient = "Only the ticket creator can use these buttons."
	MsgResolved     = "This close request has already been resolved."
	MsgInactive     = "This close request is no longer active."
)

// Config is the persisted cog configuration.
type Config struct {
	DefaultMessage   string `json:"default_message"`
	AutoCloseMessage string `json:"auto_close_message"`
}

// DefaultConfig is written on first load.
var DefaultConfig = Config{
	DefaultMessage:   "Your support ticket appears to be resolved. Please click the checkmark below to close this ticket, or click the X if you need more support.",
	AutoCloseMessage: "This ticket has been automatically closed due to inactivity.",
}

// Threads is the part of the thread manager the cog needs.
type Threads interface {
	Get(ctx context.Context, id string) (*protocol.Ticket, error)
	Close(ctx context.Context, t *protocol.Ticket, closerID, message string) error
}

// Platform publishes prompts in channels and direct messages.
type Platform interface {
	connector.Messenger
	confirm.DirectOpener
}

// Cog sends close requests and handles their buttons.
type Cog struct {
	workflow *confirm.Workflow
	threads  Threads
	platform Platform
	db       *store.Partition
	logger   *slog.Logger

	startMu  sync.Mutex
	starting map[string]bool // tickets with a Start in flight

	mu  sync.RWMutex
	cfg Config
}

// New loads the cog configuration from db.
func New(ctx context.Context, workflow *confirm.Workflow, threads Threads, platform Platform, db *store.Partition, logger *slog.Logger) (*Cog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := store.LoadConfig(ctx, db, configID, DefaultConfig)
	if err != nil {
		return nil, fmt.Errorf("closerequest: load config: %w", err)
	}
	return &Cog{
		workflow: workflow,
		threads:  threads,
		platform: platform,
		db:       db,
		logger:   logger.With("cog", "closerequest"),
		cfg:      cfg,
		starting: make(map[string]bool),
	}, nil
}

// reserve claims threadID for one Start call. It fails while another Start
// for the same ticket is in flight or a request is already pending.
func (c *Cog) reserve(threadID string) bool {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.starting[threadID] {
		return false
	}
	if _, pending := c.workflow.ForThread(threadID); pending {
		return false
	}
	c.starting[threadID] = true
	return true
}

func (c *Cog) release(threadID string) {
	c.startMu.Lock()
	delete(c.starting, threadID)
	c.startMu.Unlock()
}

// Config returns the current configuration.
func (c *Cog) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Commands returns the cog's commands.
func (c *Cog) Commands() []*command.Command {
	return []*command.Command{
		{
			Name:       "closerequest",
			Usage:      "[duration] [message]",
			Help:       "Ask the recipient to confirm the ticket can be closed. With a duration, the ticket closes automatically if they do not answer.",
			Level:      command.Supporter,
			ThreadOnly: true,
			Run:        c.closeRequest,
		},
		{
			Name:  "closerequestconfig",
			Help:  "Configure close requests.",
			Level: command.Administrator,
			Subcommands: []*command.Command{
				{Name: "setmessage", Usage: "<message>", Help: "Set the default close request message.", Level: command.Administrator, Run: c.setMessage},
				{Name: "setautoclosemessage", Usage: "<message>", Help: "Set the auto-close message.", Level: command.Administrator, Run: c.setAutoCloseMessage},
				{Name: "view", Help: "View current configuration.", Level: command.Administrator, Run: c.view},
			},
		},
	}
}

func (c *Cog) closeRequest(ctx context.Context, call *command.Call) error {
	t := call.Ticket
	if !c.reserve(t.ID) {
		return command.Errorf("A close request is already pending for this ticket.")
	}
	defer c.release(t.ID)

	timeout, text := SplitArgs(call.Args)
	cfg := c.Config()
	if text == "" {
		text = cfg.DefaultMessage
	}
	closeMessage := ""
	if timeout > 0 {
		closeMessage = cfg.AutoCloseMessage
	}

	closerID := call.Message.SenderID
	_, err := c.workflow.Start(ctx, confirm.Params{
		ThreadID:     t.ID,
		RequesterID:  t.RecipientID,
		InitiatorID:  closerID,
		Text:         text,
		CloseMessage: closeMessage,
		Timeout:      timeout,
		Surfaces: []confirm.Surface{
			confirm.Direct(c.platform, c.platform, t.RecipientID),
			confirm.Channel("thread", c.platform, t.ChannelID),
		},
		Render:        render,
		AcceptButton:  connector.Button{Label: "Close Ticket", Style: connector.ButtonSuccess, Emoji: "✅"},
		DeclineButton: connector.Button{Label: "Keep Open", Style: connector.ButtonDanger, Emoji: "❌"},
		OnAccept:      c.closeTicket,
		OnTimeout:     c.closeTicket,
	})
	if errors.Is(err, confirm.ErrPublishFailed) {
		c.logger.Warn("close request not delivered", "ticket", t.ID, "error", err)
		return command.Errorf("Could not deliver the close request to <@%s>.", t.RecipientID)
	}
	if err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("Close request sent to <@%s>.", t.RecipientID))
}

// closeTicket closes the request's ticket on behalf of whoever sent the
// request. A ticket closed in the meantime is left alone.
func (c *Cog) closeTicket(ctx context.Context, r *confirm.Request) error {
	t, err := c.threads.Get(ctx, r.ThreadID)
	if err != nil {
		return fmt.Errorf("closerequest: load ticket: %w", err)
	}
	err = c.threads.Close(ctx, t, r.InitiatorID, r.CloseMessage)
	if errors.Is(err, thread.ErrClosed) {
		c.logger.Info("ticket already closed", "ticket", t.ID, "request", r.ID)
		return nil
	}
	return err
}

// HandleInteraction handles presses of the prompt buttons.
func (c *Cog) HandleInteraction(ctx context.Context, in connector.Interaction) error {
	id, kind, ok := confirm.ParseButtonID(in.CustomID)
	if !ok {
		return nil
	}

	err := c.workflow.Submit(ctx, id, confirm.Decision{Kind: kind, By: in.SenderID})
	switch {
	case err == nil:
		return in.Responder.Defer(ctx)
	case errors.Is(err, confirm.ErrUnauthorized):
		return connector.Notice(ctx, in.Responder, MsgNotRecipient)
	case errors.Is(err, confirm.ErrStaleDecision):
		return connector.Notice(ctx, in.Responder, MsgResolved)
	case errors.Is(err, confirm.ErrUnknown), errors.Is(err, confirm.ErrAbandoned):
		return connector.Notice(ctx, in.Responder, MsgInactive)
	}
	return err
}

// render draws the prompt embed for each state of a request.
func render(r *confirm.Request, o confirm.Outcome) connector.OutboundMessage {
	e := &connector.Embed{}
	switch o {
	case confirm.OutcomeAccepted:
		e.Title = "Ticket Closed"
		e.Description = "This ticket has been closed."
		e.Color = connector.ColorGreen
	case confirm.OutcomeDeclined:
		e.Title = "Close Request Cancelled"
		e.Description = "This ticket will remain open."
		e.Color = connector.ColorRed
	case confirm.OutcomeExpired:
		e.Title = "Ticket Auto-Closed"
		e.Description = r.CloseMessage
		e.Color = connector.ColorOrange
		e.Footer = "This ticket was automatically closed due to no response."
	default:
		e.Title = "Close Request"
		e.Description = r.Text
		e.Color = connector.ColorBlurple
		if r.Timeout > 0 {
			e.Footer = fmt.Sprintf("This ticket will auto-close in %s if no response is given.", FormatDuration(r.Timeout))
		}
	}
	return connector.OutboundMessage{Embed: e}
}

func (c *Cog) setMessage(ctx context.Context, call *command.Call) error {
	if call.Args == "" {
		return command.Errorf("Usage: `%scloserequestconfig setmessage <message>`", call.Prefix())
	}
	if err := c.update(ctx, func(cfg *Config) { cfg.DefaultMessage = call.Args }); err != nil {
		return err
	}
	return call.Reply(ctx, "Default close request message updated.")
}

func (c *Cog) setAutoCloseMessage(ctx context.Context, call *command.Call) error {
	if call.Args == "" {
		return command.Errorf("Usage: `%scloserequestconfig setautoclosemessage <message>`", call.Prefix())
	}
	if err := c.update(ctx, func(cfg *Config) { cfg.AutoCloseMessage = call.Args }); err != nil {
		return err
	}
	return call.Reply(ctx, "Auto-close message updated.")
}

func (c *Cog) view(ctx context.Context, call *command.Call) error {
	cfg := c.Config()
	e := &connector.Embed{Title: "Close Request Configuration", Color: connector.ColorBlurple}
	e.AddField("Default Message", cfg.DefaultMessage, false).
		AddField("Auto-Close Message", cfg.AutoCloseMessage, false)
	return call.ReplyEmbed(ctx, e)
}

func (c *Cog) update(ctx context.Context, fn func(*Config)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.cfg
	fn(&next)
	if err := c.db.Upsert(ctx, configID, next); err != nil {
		return fmt.Errorf("closerequest: save config: %w", err)
	}
	c.cfg = next
	return nil
}
