package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/h1v3-io/modcogs/internal/connector"
)

// Config holds Discord connector configuration.
type Config struct {
	Token   string // Bot token
	GuildID string // Guild the bot serves; messages from other guilds are ignored
}

// Connector implements connector.Connector and connector.Messenger for Discord.
type Connector struct {
	session      *discordgo.Session
	config       Config
	handler      connector.InboundHandler
	interactions connector.InteractionHandler
	logger       *slog.Logger
	ctx          context.Context
	cancel       context.CancelFunc
}

// New creates a Discord connector. The gateway is not opened until Start.
func New(cfg Config, handler connector.InboundHandler, interactions connector.InteractionHandler, logger *slog.Logger) (*Connector, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: init session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	c := &Connector{
		session:      session,
		config:       cfg,
		handler:      handler,
		interactions: interactions,
		logger:       logger,
		ctx:          context.Background(),
	}
	session.AddHandler(c.onMessageCreate)
	session.AddHandler(c.onInteractionCreate)
	return c, nil
}

func (c *Connector) Name() string { return "discord" }

// Start opens the gateway. Blocks until context is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	c.logger.Info("discord connector started", "bot", c.session.State.User.Username)

	<-c.ctx.Done()
	if err := c.session.Close(); err != nil {
		c.logger.Warn("discord close failed", "error", err)
	}
	c.logger.Info("discord connector stopped")
	return ctx.Err()
}

// Stop gracefully shuts down the connector.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Send delivers a message to a channel.
func (c *Connector) Send(ctx context.Context, msg connector.OutboundMessage) error {
	_, err := c.SendMessage(ctx, msg)
	return err
}

// SendMessage delivers a message and returns its reference for later edits.
func (c *Connector) SendMessage(ctx context.Context, msg connector.OutboundMessage) (connector.MessageRef, error) {
	if strings.TrimSpace(msg.Content) == "" && msg.Embed == nil {
		return connector.MessageRef{}, errors.New("discord: empty message")
	}
	send := &discordgo.MessageSend{
		Content:    msg.Content,
		Components: toComponents(msg.Buttons, nil),
	}
	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toEmbed(msg.Embed)}
	}

	m, err := c.session.ChannelMessageSendComplex(msg.ChatID, send, discordgo.WithContext(ctx))
	if err != nil {
		return connector.MessageRef{}, fmt.Errorf("discord: send message: %w", err)
	}
	return connector.MessageRef{ChatID: m.ChannelID, MessageID: m.ID}, nil
}

// EditMessage replaces a message's content, embed and buttons.
func (c *Connector) EditMessage(ctx context.Context, ref connector.MessageRef, msg connector.OutboundMessage) error {
	edit := discordgo.NewMessageEdit(ref.ChatID, ref.MessageID)
	content := msg.Content
	edit.Content = &content
	embeds := []*discordgo.MessageEmbed{}
	if msg.Embed != nil {
		embeds = append(embeds, toEmbed(msg.Embed))
	}
	edit.Embeds = &embeds
	components := toComponents(msg.Buttons, nil)
	edit.Components = &components

	if _, err := c.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: edit message: %w", err)
	}
	return nil
}

// DeleteMessage removes a message.
func (c *Connector) DeleteMessage(ctx context.Context, ref connector.MessageRef) error {
	if err := c.session.ChannelMessageDelete(ref.ChatID, ref.MessageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: delete message: %w", err)
	}
	return nil
}

// DirectChannel opens (or reuses) the DM channel with a user.
func (c *Connector) DirectChannel(ctx context.Context, userID string) (string, error) {
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: open dm: %w", err)
	}
	return ch.ID, nil
}

// CreateChannel creates a text channel under parentID in the configured guild.
func (c *Connector) CreateChannel(ctx context.Context, parentID, name, topic string) (string, error) {
	ch, err := c.session.GuildChannelCreateComplex(c.config.GuildID, discordgo.GuildChannelCreateData{
		Name:     ChannelSlug(name),
		Type:     discordgo.ChannelTypeGuildText,
		Topic:    topic,
		ParentID: parentID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: create channel: %w", err)
	}
	return ch.ID, nil
}

// RenameChannel changes a channel's name.
func (c *Connector) RenameChannel(ctx context.Context, channelID, name string) error {
	if _, err := c.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: rename channel: %w", err)
	}
	return nil
}

// ChannelName returns a channel's current name.
func (c *Connector) ChannelName(ctx context.Context, channelID string) (string, error) {
	if ch, err := c.session.State.Channel(channelID); err == nil {
		return ch.Name, nil
	}
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: get channel: %w", err)
	}
	return ch.Name, nil
}

// BotID returns the bot's own user id once the gateway is open.
func (c *Connector) BotID() string {
	if c.session.State == nil || c.session.State.User == nil {
		return ""
	}
	return c.session.State.User.ID
}

func (c *Connector) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == c.BotID() {
		return
	}
	if m.GuildID != "" && c.config.GuildID != "" && m.GuildID != c.config.GuildID {
		return
	}

	inbound := toInbound(m.Message)
	if inbound.Content == "" {
		return
	}
	if err := c.handler(c.ctx, inbound); err != nil {
		c.logger.Error("discord inbound handler error",
			"channel", m.ChannelID,
			"user", m.Author.ID,
			"error", err,
		)
	}
}

func (c *Connector) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if c.interactions == nil {
		return
	}

	in, ok := toInteraction(i.Interaction)
	if !ok {
		return
	}
	if g, err := s.State.Guild(i.GuildID); err == nil {
		in.GuildName = g.Name
	}
	in.Responder = &responder{session: s, interaction: i.Interaction}

	if err := c.interactions(c.ctx, in); err != nil {
		c.logger.Error("discord interaction handler error",
			"custom_id", in.CustomID,
			"user", in.SenderID,
			"error", err,
		)
	}
}

// ChannelSlug lowercases a name and replaces characters Discord rejects in
// text channel names.
func ChannelSlug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteByte('-')
		}
	}
	s := b.String()
	if s == "" {
		s = "ticket"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
