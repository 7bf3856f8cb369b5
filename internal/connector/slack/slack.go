package slackconn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/h1v3-io/modcogs/internal/connector"
)

// Config holds Slack alert connector configuration.
type Config struct {
	BotToken     string // xoxb-... Bot User OAuth Token
	AppToken     string // xapp-... App-Level Token; enables slash commands via Socket Mode
	AlertChannel string // Channel that receives alerts
}

// Connector delivers alerts to a Slack channel and, with an app token,
// answers slash commands.
type Connector struct {
	api     *slack.Client
	socket  *socketmode.Client
	config  Config
	handler connector.InboundHandler
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// New creates a new Slack connector.
func New(cfg Config, handler connector.InboundHandler, logger *slog.Logger) (*Connector, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("slack: bot_token is required")
	}
	if cfg.AlertChannel == "" {
		return nil, errors.New("slack: alert_channel is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	var opts []slack.Option
	if cfg.AppToken != "" {
		opts = append(opts, slack.OptionAppLevelToken(cfg.AppToken))
	}
	api := slack.New(cfg.BotToken, opts...)

	authResp, err := api.AuthTest()
	if err != nil {
		return nil, fmt.Errorf("slack: auth test: %w", err)
	}

	logger.Info("slack bot authorized", "user", authResp.User, "team", authResp.Team)

	c := &Connector{
		api:     api,
		config:  cfg,
		handler: handler,
		logger:  logger,
	}
	if cfg.AppToken != "" {
		c.socket = socketmode.New(api)
	}
	return c, nil
}

func (c *Connector) Name() string { return "slack" }

// Start listens for slash commands via Socket Mode. Without an app token it
// only waits. Blocks until context is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	if c.socket == nil {
		c.logger.Info("slack connector started (alerts only)")
		<-ctx.Done()
		return ctx.Err()
	}

	go c.handleEvents(ctx)

	c.logger.Info("slack connector started (socket mode)")
	return c.socket.RunContext(ctx)
}

// Stop gracefully shuts down the connector.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Alert posts msg to the configured alert channel.
func (c *Connector) Alert(ctx context.Context, msg connector.OutboundMessage) error {
	msg.ChatID = c.config.AlertChannel
	return c.Send(ctx, msg)
}

// Send delivers a message to a Slack channel. An embed becomes an attachment.
func (c *Connector) Send(ctx context.Context, msg connector.OutboundMessage) error {
	var opts []slack.MsgOption
	if msg.Content != "" {
		opts = append(opts, slack.MsgOptionText(Mrkdwn(msg.Content), false))
	}
	if msg.Embed != nil {
		opts = append(opts, slack.MsgOptionAttachments(toAttachment(msg.Embed)))
	}
	if len(opts) == 0 {
		return nil
	}

	if _, _, err := c.api.PostMessageContext(ctx, msg.ChatID, opts...); err != nil {
		return fmt.Errorf("slack: send message: %w", err)
	}
	return nil
}

func (c *Connector) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.socket.Events:
			if event.Type == socketmode.EventTypeSlashCommand {
				c.handleSlashCommand(ctx, event)
			}
		}
	}
}

func (c *Connector) handleSlashCommand(ctx context.Context, event socketmode.Event) {
	cmd, ok := event.Data.(slack.SlashCommand)
	if !ok {
		return
	}

	c.socket.Ack(*event.Request)

	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		text = "status"
	}

	inbound := connector.InboundMessage{
		Channel:    "slack",
		SenderID:   cmd.UserID,
		SenderName: cmd.UserName,
		ChatID:     cmd.ChannelID,
		Content:    "/" + text,
	}

	if err := c.handler(ctx, inbound); err != nil {
		c.logger.Error("slack slash command error",
			"command", cmd.Command,
			"user", cmd.UserID,
			"error", err,
		)
	}
}

func toAttachment(e *connector.Embed) slack.Attachment {
	a := slack.Attachment{
		Color:  fmt.Sprintf("#%06X", e.Color),
		Title:  e.Title,
		Text:   Mrkdwn(e.Description),
		Footer: e.Footer,
	}
	for _, f := range e.Fields {
		a.Fields = append(a.Fields, slack.AttachmentField{Title: f.Name, Value: Mrkdwn(f.Value), Short: f.Inline})
	}
	return a
}

var (
	boldRe    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	linkRe    = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	mentionRe = regexp.MustCompile(`<@!?(\d+)>`)
)

// Mrkdwn converts Discord-flavoured Markdown to Slack mrkdwn. Discord user
// mentions have no Slack equivalent and are shown as plain ids.
func Mrkdwn(s string) string {
	s = mentionRe.ReplaceAllString(s, "@$1")
	s = boldRe.ReplaceAllString(s, "*$1*")
	s = linkRe.ReplaceAllString(s, "<$2|$1>")
	return strings.ReplaceAll(s, "~~", "~")
}
