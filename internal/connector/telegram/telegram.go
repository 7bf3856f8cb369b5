package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/h1v3-io/modcogs/internal/connector"
)

// Config holds Telegram alert connector configuration.
type Config struct {
	Token     string  // Bot token from @BotFather
	ChatIDs   []int64 // Chats that receive alerts
	AllowFrom []int64 // Users allowed to run /status (empty = members of ChatIDs only)
}

// Connector delivers alerts to Telegram chats and answers status commands.
type Connector struct {
	bot     *tgbotapi.BotAPI
	config  Config
	handler connector.InboundHandler
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// New creates a new Telegram connector.
func New(cfg Config, handler connector.InboundHandler, logger *slog.Logger) (*Connector, error) {
	if len(cfg.ChatIDs) == 0 {
		return nil, errors.New("telegram: at least one chat id is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Connector{
		bot:     bot,
		config:  cfg,
		handler: handler,
		logger:  logger,
	}, nil
}

func (c *Connector) Name() string { return "telegram" }

// Start long-polls for commands. Blocks until context is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := c.bot.GetUpdatesChan(u)

	c.logger.Info("telegram connector started", "bot", c.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			c.handleCommand(ctx, update.Message)

		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.logger.Info("telegram connector stopped")
			return ctx.Err()
		}
	}
}

// Stop gracefully shuts down the connector.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Alert sends msg to every configured chat.
func (c *Connector) Alert(ctx context.Context, msg connector.OutboundMessage) error {
	var errs []error
	for _, id := range c.config.ChatIDs {
		msg.ChatID = strconv.FormatInt(id, 10)
		if err := c.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send delivers a message to a Telegram chat.
func (c *Connector) Send(_ context.Context, msg connector.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat_id %q: %w", msg.ChatID, err)
	}

	text := RenderHTML(msg)
	if strings.TrimSpace(text) == "" {
		c.logger.Warn("skipping empty message", "chat_id", msg.ChatID)
		return nil
	}

	tgMsg := tgbotapi.NewMessage(chatID, text)
	tgMsg.ParseMode = tgbotapi.ModeHTML
	tgMsg.DisableWebPagePreview = true

	_, err = c.bot.Send(tgMsg)
	if err != nil {
		c.logger.Warn("HTML send failed, falling back to plain text",
			"chat_id", msg.ChatID,
			"error", err,
		)
		tgMsg.Text = connector.PlainText(msg, nil)
		tgMsg.ParseMode = ""
		_, err = c.bot.Send(tgMsg)
	}
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

func (c *Connector) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID
	if !c.allowed(msg.From.ID, chatID) {
		c.logger.Warn("unauthorized user", "user_id", msg.From.ID, "username", msg.From.UserName)
		return
	}

	if msg.Command() == "help" {
		help := strings.Join([]string{
			"Available commands:",
			"/status - Uptime and ticket summary",
			"/help - Show this help message",
		}, "\n")
		c.bot.Send(tgbotapi.NewMessage(chatID, help))
		return
	}

	text := "/" + msg.Command()
	if msg.CommandArguments() != "" {
		text += " " + msg.CommandArguments()
	}
	inbound := connector.InboundMessage{
		Channel:    "telegram",
		SenderID:   strconv.FormatInt(msg.From.ID, 10),
		SenderName: msg.From.UserName,
		ChatID:     strconv.FormatInt(chatID, 10),
		Content:    text,
	}
	if err := c.handler(ctx, inbound); err != nil {
		c.logger.Error("inbound handler error",
			"chat_id", chatID,
			"error", err,
		)
	}
}

func (c *Connector) allowed(userID, chatID int64) bool {
	if len(c.config.AllowFrom) > 0 {
		return contains(c.config.AllowFrom, userID)
	}
	return contains(c.config.ChatIDs, chatID)
}

// RenderHTML flattens a message into Telegram's HTML subset with the embed
// title and field names in bold.
func RenderHTML(msg connector.OutboundMessage) string {
	escaped := connector.OutboundMessage{Content: html.EscapeString(msg.Content)}
	if e := msg.Embed; e != nil {
		esc := &connector.Embed{
			Title:       e.Title,
			Description: html.EscapeString(e.Description),
			Footer:      html.EscapeString(e.Footer),
		}
		for _, f := range e.Fields {
			esc.AddField(f.Name, html.EscapeString(f.Value), f.Inline)
		}
		escaped.Embed = esc
	}
	return connector.PlainText(escaped, func(s string) string {
		return "<b>" + html.EscapeString(s) + "</b>"
	})
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
