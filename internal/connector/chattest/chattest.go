// Package chattest provides an in-memory chat platform and interaction
// responder for tests.
package chattest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/h1v3-io/modcogs/internal/connector"
)

// Platform records every message operation. Direct channels are named
// "dm-<user>" and created channels "chan-<n>".
type Platform struct {
	mu       sync.Mutex
	seq      int
	Sent     []connector.OutboundMessage
	Edits    map[string]connector.OutboundMessage // message id -> last edit
	Deleted  []string
	Names    map[string]string // channel id -> name
	Parents  map[string]string // channel id -> parent id
	messages map[string]connector.OutboundMessage

	// Failure injection, keyed by chat id.
	FailSend map[string]error
	FailEdit map[string]error
	// FailDirect makes DirectChannel fail for the listed users.
	FailDirect map[string]error
}

// NewPlatform returns an empty platform.
func NewPlatform() *Platform {
	return &Platform{
		Edits:      make(map[string]connector.OutboundMessage),
		Names:      make(map[string]string),
		Parents:    make(map[string]string),
		messages:   make(map[string]connector.OutboundMessage),
		FailSend:   make(map[string]error),
		FailEdit:   make(map[string]error),
		FailDirect: make(map[string]error),
	}
}

func (p *Platform) Name() string { return "chattest" }

func (p *Platform) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *Platform) Stop() error { return nil }

func (p *Platform) Send(ctx context.Context, msg connector.OutboundMessage) error {
	_, err := p.SendMessage(ctx, msg)
	return err
}

func (p *Platform) SendMessage(_ context.Context, msg connector.OutboundMessage) (connector.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailSend[msg.ChatID]; err != nil {
		return connector.MessageRef{}, err
	}
	p.seq++
	id := fmt.Sprintf("msg-%d", p.seq)
	p.Sent = append(p.Sent, msg)
	p.messages[id] = msg
	return connector.MessageRef{ChatID: msg.ChatID, MessageID: id}, nil
}

func (p *Platform) EditMessage(_ context.Context, ref connector.MessageRef, msg connector.OutboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailEdit[ref.ChatID]; err != nil {
		return err
	}
	if _, ok := p.messages[ref.MessageID]; !ok {
		return errors.New("chattest: unknown message")
	}
	p.Edits[ref.MessageID] = msg
	p.messages[ref.MessageID] = msg
	return nil
}

func (p *Platform) DeleteMessage(_ context.Context, ref connector.MessageRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.messages[ref.MessageID]; !ok {
		return errors.New("chattest: unknown message")
	}
	delete(p.messages, ref.MessageID)
	p.Deleted = append(p.Deleted, ref.MessageID)
	return nil
}

func (p *Platform) DirectChannel(_ context.Context, userID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailDirect[userID]; err != nil {
		return "", err
	}
	return "dm-" + userID, nil
}

func (p *Platform) CreateChannel(_ context.Context, parentID, name, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("chan-%d", p.seq)
	p.Names[id] = name
	p.Parents[id] = parentID
	return id, nil
}

func (p *Platform) RenameChannel(_ context.Context, channelID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Names[channelID] = name
	return nil
}

func (p *Platform) ChannelName(_ context.Context, channelID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, ok := p.Names[channelID]
	if !ok {
		return "", errors.New("chattest: unknown channel")
	}
	return name, nil
}

// SentTo returns the messages sent to chatID, in order.
func (p *Platform) SentTo(chatID string) []connector.OutboundMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []connector.OutboundMessage
	for _, m := range p.Sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Message returns the current state of a live message.
func (p *Platform) Message(id string) (connector.OutboundMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.messages[id]
	return m, ok
}

// Edited returns the last edit of a message.
func (p *Platform) Edited(id string) (connector.OutboundMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.Edits[id]
	return m, ok
}

// WasDeleted reports whether a message was deleted.
func (p *Platform) WasDeleted(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.Deleted {
		if d == id {
			return true
		}
	}
	return false
}

// Responder records interaction responses.
type Responder struct {
	mu       sync.Mutex
	Deferred int
	Replies  []connector.Reply
	Modals   []connector.Modal
}

func (r *Responder) Defer(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Deferred++
	return nil
}

func (r *Responder) DeferReply(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Deferred++
	return nil
}

func (r *Responder) Reply(_ context.Context, msg connector.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Replies = append(r.Replies, msg)
	return nil
}

func (r *Responder) OpenModal(_ context.Context, m connector.Modal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Modals = append(r.Modals, m)
	return nil
}

// LastReply returns the most recent reply, or a zero Reply.
func (r *Responder) LastReply() connector.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Replies) == 0 {
		return connector.Reply{}
	}
	return r.Replies[len(r.Replies)-1]
}

var (
	_ connector.Connector = (*Platform)(nil)
	_ connector.Messenger = (*Platform)(nil)
	_ connector.Responder = (*Responder)(nil)
)
