package confirm

import (
	"context"
	"fmt"

	"github.com/h1v3-io/modcogs/internal/connector"
)

// Surface is a place a prompt can be published to and later edited.
type Surface interface {
	// Name identifies the surface in logs and snapshots (e.g. "thread", "dm").
	Name() string
	Publish(ctx context.Context, msg connector.OutboundMessage) (connector.MessageRef, error)
	Update(ctx context.Context, ref connector.MessageRef, msg connector.OutboundMessage) error
}

// DirectOpener resolves the direct-message channel for a user.
type DirectOpener interface {
	DirectChannel(ctx context.Context, userID string) (string, error)
}

// ChannelSurface publishes into a fixed chat.
type ChannelSurface struct {
	name   string
	m      connector.Messenger
	chatID string
}

// Channel returns a surface bound to chatID.
func Channel(name string, m connector.Messenger, chatID string) *ChannelSurface {
	return &ChannelSurface{name: name, m: m, chatID: chatID}
}

func (s *ChannelSurface) Name() string { return s.name }

func (s *ChannelSurface) Publish(ctx context.Context, msg connector.OutboundMessage) (connector.MessageRef, error) {
	msg.ChatID = s.chatID
	return s.m.SendMessage(ctx, msg)
}

func (s *ChannelSurface) Update(ctx context.Context, ref connector.MessageRef, msg connector.OutboundMessage) error {
	msg.ChatID = ref.ChatID
	return s.m.EditMessage(ctx, ref, msg)
}

// DirectSurface publishes into a user's direct messages. The channel is
// opened on publish, so a user with closed DMs fails here and not earlier.
type DirectSurface struct {
	m      connector.Messenger
	opener DirectOpener
	userID string
}

// Direct returns a surface addressing userID's direct messages.
func Direct(m connector.Messenger, opener DirectOpener, userID string) *DirectSurface {
	return &DirectSurface{m: m, opener: opener, userID: userID}
}

func (s *DirectSurface) Name() string { return "dm" }

func (s *DirectSurface) Publish(ctx context.Context, msg connector.OutboundMessage) (connector.MessageRef, error) {
	chatID, err := s.opener.DirectChannel(ctx, s.userID)
	if err != nil {
		return connector.MessageRef{}, fmt.Errorf("open direct channel: %w", err)
	}
	msg.ChatID = chatID
	return s.m.SendMessage(ctx, msg)
}

func (s *DirectSurface) Update(ctx context.Context, ref connector.MessageRef, msg connector.OutboundMessage) error {
	msg.ChatID = ref.ChatID
	return s.m.EditMessage(ctx, ref, msg)
}
