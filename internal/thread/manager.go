// Package thread relays modmail conversations between a user's direct
// messages and a staff channel, one ticket per conversation.
package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/ticket"
	"github.com/h1v3-io/modcogs/pkg/protocol"
)

// ErrClosed is returned when replying to or closing a closed ticket.
var ErrClosed = errors.New("thread: ticket is closed")

// Platform is the chat surface threads live on.
type Platform interface {
	connector.Messenger
	DirectChannel(ctx context.Context, userID string) (string, error)
	CreateChannel(ctx context.Context, parentID, name, topic string) (string, error)
}

// Author identifies who wrote a relayed message.
type Author struct {
	ID   string
	Name string
	Bot  bool
}

// ReadyFunc runs after a new ticket's channel is created and persisted.
type ReadyFunc func(ctx context.Context, t *protocol.Ticket)

// ReplyFunc runs after a message is relayed in either direction.
type ReplyFunc func(ctx context.Context, t *protocol.Ticket, msg protocol.Message)

// CloseFunc runs after a ticket is closed.
type CloseFunc func(ctx context.Context, t *protocol.Ticket)

// Manager tracks tickets and relays messages for them.
type Manager struct {
	platform   Platform
	store      ticket.Store
	categoryID string
	logger     *slog.Logger
	now        func() time.Time

	createMu sync.Mutex // serializes ticket creation so one user gets one ticket

	mu      sync.RWMutex
	ready   []ReadyFunc
	replies []ReplyFunc
	closes  []CloseFunc
}

// NewManager creates a Manager that opens ticket channels under categoryID.
func NewManager(platform Platform, store ticket.Store, categoryID string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		platform:   platform,
		store:      store,
		categoryID: categoryID,
		logger:     logger,
		now:        time.Now,
	}
}

// OnThreadReady registers a listener for new tickets.
func (m *Manager) OnThreadReady(fn ReadyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = append(m.ready, fn)
}

// OnThreadReply registers a listener for relayed messages.
func (m *Manager) OnThreadReply(fn ReplyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, fn)
}

// OnThreadClose registers a listener for closed tickets.
func (m *Manager) OnThreadClose(fn CloseFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes = append(m.closes, fn)
}

// HandleDirect relays a user's direct message into their ticket channel,
// opening a ticket first if they have none.
func (m *Manager) HandleDirect(ctx context.Context, msg connector.InboundMessage) error {
	t, err := m.getOrCreate(ctx, msg)
	if err != nil {
		return err
	}

	_, err = m.platform.SendMessage(ctx, connector.OutboundMessage{
		ChatID: t.ChannelID,
		Embed: &connector.Embed{
			Title:       msg.SenderName,
			Description: msg.Content,
			Color:       connector.ColorGreen,
			Footer:      "User ID: " + msg.SenderID,
			Timestamp:   m.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("thread: relay to channel: %w", err)
	}

	rec := m.record(ctx, t, Author{ID: msg.SenderID, Name: msg.SenderName}, msg.Content, false)
	m.fireReply(ctx, t, rec)
	return nil
}

// ForChannel returns the ticket bound to a staff channel.
func (m *Manager) ForChannel(ctx context.Context, channelID string) (*protocol.Ticket, error) {
	return m.store.GetByChannel(ctx, channelID)
}

// Get returns a ticket by id.
func (m *Manager) Get(ctx context.Context, id string) (*protocol.Ticket, error) {
	return m.store.Get(ctx, id)
}

// Reply sends a staff message to the recipient and echoes it in the channel.
func (m *Manager) Reply(ctx context.Context, t *protocol.Ticket, from Author, content string) error {
	if !t.IsOpen() {
		return ErrClosed
	}

	dm, err := m.platform.DirectChannel(ctx, t.RecipientID)
	if err != nil {
		return fmt.Errorf("thread: reply: %w", err)
	}
	embed := &connector.Embed{
		Title:       from.Name,
		Description: content,
		Color:       connector.ColorBlue,
		Footer:      "Staff",
		Timestamp:   m.now(),
	}
	if _, err := m.platform.SendMessage(ctx, connector.OutboundMessage{ChatID: dm, Embed: embed}); err != nil {
		return fmt.Errorf("thread: reply: %w", err)
	}
	if _, err := m.platform.SendMessage(ctx, connector.OutboundMessage{ChatID: t.ChannelID, Embed: embed}); err != nil {
		m.logger.Warn("reply echo failed", "ticket", t.ID, "error", err)
	}

	rec := m.record(ctx, t, from, content, true)
	m.fireReply(ctx, t, rec)
	return nil
}

// Close marks the ticket closed, sends message (if any) to the recipient and
// posts a notice in the staff channel. The channel itself is kept.
func (m *Manager) Close(ctx context.Context, t *protocol.Ticket, closerID, message string) error {
	at := m.now()
	if err := m.store.Close(ctx, t.ID, closerID, message, at); err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			return ErrClosed
		}
		return fmt.Errorf("thread: close: %w", err)
	}
	t.Status = protocol.TicketClosed
	t.ClosedAt = &at
	t.ClosedBy = closerID
	t.CloseMessage = message

	closedEmbed := &connector.Embed{Title: "Ticket Closed", Description: message, Color: connector.ColorRed, Timestamp: at}
	if message != "" {
		if dm, err := m.platform.DirectChannel(ctx, t.RecipientID); err != nil {
			m.logger.Warn("close message not delivered", "ticket", t.ID, "error", err)
		} else if _, err := m.platform.SendMessage(ctx, connector.OutboundMessage{ChatID: dm, Embed: closedEmbed}); err != nil {
			m.logger.Warn("close message not delivered", "ticket", t.ID, "error", err)
		}
	}

	notice := fmt.Sprintf("Ticket closed by <@%s>.", closerID)
	if closerID == "" {
		notice = "Ticket closed."
	}
	if _, err := m.platform.SendMessage(ctx, connector.OutboundMessage{ChatID: t.ChannelID, Content: notice, Embed: embedOrNil(message, closedEmbed)}); err != nil {
		m.logger.Warn("close notice failed", "ticket", t.ID, "error", err)
	}

	m.logger.Info("ticket closed", "ticket", t.ID, "by", closerID)

	m.mu.RLock()
	listeners := append([]CloseFunc(nil), m.closes...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, t)
	}
	return nil
}

func embedOrNil(message string, e *connector.Embed) *connector.Embed {
	if message == "" {
		return nil
	}
	return e
}

func (m *Manager) getOrCreate(ctx context.Context, msg connector.InboundMessage) (*protocol.Ticket, error) {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	t, err := m.store.OpenForRecipient(ctx, msg.SenderID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ticket.ErrNotFound) {
		return nil, err
	}

	channelID, err := m.platform.CreateChannel(ctx, m.categoryID, msg.SenderName, "User ID: "+msg.SenderID)
	if err != nil {
		return nil, fmt.Errorf("thread: create channel: %w", err)
	}

	t = &protocol.Ticket{
		ID:            uuid.NewString(),
		ChannelID:     channelID,
		RecipientID:   msg.SenderID,
		RecipientName: msg.SenderName,
		Status:        protocol.TicketOpen,
		CreatedAt:     m.now(),
	}
	if err := m.store.Save(ctx, t); err != nil {
		return nil, err
	}

	m.logger.Info("ticket created", "ticket", t.ID, "recipient", t.RecipientID, "channel", channelID)

	m.mu.RLock()
	listeners := append([]ReadyFunc(nil), m.ready...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, t)
	}
	return t, nil
}

func (m *Manager) record(ctx context.Context, t *protocol.Ticket, from Author, content string, fromMod bool) protocol.Message {
	rec := protocol.Message{
		ID:        uuid.NewString(),
		TicketID:  t.ID,
		AuthorID:  from.ID,
		Author:    from.Name,
		FromMod:   fromMod,
		Bot:       from.Bot,
		Content:   content,
		Timestamp: m.now(),
	}
	if err := m.store.AppendMessage(ctx, t.ID, rec); err != nil {
		m.logger.Error("failed to record message", "ticket", t.ID, "error", err)
	}
	return rec
}

func (m *Manager) fireReply(ctx context.Context, t *protocol.Ticket, msg protocol.Message) {
	m.mu.RLock()
	listeners := append([]ReplyFunc(nil), m.replies...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, t, msg)
	}
}
