package connector

import (
	"context"
	"time"
)

// Connector is the interface for external messaging platforms (Discord, Slack, Telegram).
type Connector interface {
	// Name returns the connector type (e.g., "discord", "slack").
	Name() string
	// Start begins listening for inbound events. Blocks until context is cancelled.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the connector.
	Stop() error
	// Send delivers an outbound message to the external platform.
	Send(ctx context.Context, msg OutboundMessage) error
}

// Messenger is a platform that can address messages after sending them.
type Messenger interface {
	SendMessage(ctx context.Context, msg OutboundMessage) (MessageRef, error)
	EditMessage(ctx context.Context, ref MessageRef, msg OutboundMessage) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
}

// MessageRef identifies one sent message.
type MessageRef struct {
	ChatID    string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// ButtonStyle selects how a button is rendered.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is an interactive affordance attached to a message.
type Button struct {
	ID    string
	Label string
	Style ButtonStyle
	Emoji string
}

// EmbedField is one name/value row of an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message card.
type Embed struct {
	Title       string
	Description string
	Color       int
	Footer      string
	Fields      []EmbedField
	Timestamp   time.Time
}

// AddField appends a field and returns the embed for chaining.
func (e *Embed) AddField(name, value string, inline bool) *Embed {
	e.Fields = append(e.Fields, EmbedField{Name: name, Value: value, Inline: inline})
	return e
}

// Embed colors shared by the cogs.
const (
	ColorBlurple = 0x5865F2
	ColorBlue    = 0x3498DB
	ColorGreen   = 0x2ECC71
	ColorRed     = 0xE74C3C
	ColorOrange  = 0xE67E22
)

// OutboundMessage is a message sent to an external platform.
// A nil Buttons slice on an edit removes existing buttons.
type OutboundMessage struct {
	ChatID  string // Platform-specific chat identifier
	Content string // Message text (Markdown)
	Embed   *Embed
	Buttons []Button
}

// InboundMessage is a message received from an external platform.
type InboundMessage struct {
	Channel     string   // Connector name (e.g., "discord")
	SenderID    string   // Platform-specific sender identifier
	SenderName  string   // Display name of the sender
	SenderRoles []string // Guild role ids of the sender, if any
	SenderBot   bool
	ChatID      string // Platform-specific chat identifier
	GuildID     string // Empty for direct messages
	MessageID   string
	Content     string
	Direct      bool
}

// InboundHandler processes messages received from external platforms.
type InboundHandler func(ctx context.Context, msg InboundMessage) error

// InteractionKind distinguishes component and form submissions.
type InteractionKind int

const (
	InteractionButton InteractionKind = iota
	InteractionSelect
	InteractionModal
)

// Interaction is a button press, select choice or modal submission.
type Interaction struct {
	Kind       InteractionKind
	CustomID   string
	SenderID   string
	SenderName string
	ChatID     string
	GuildID    string
	GuildName  string
	MessageID  string
	Values     []string          // selected option values
	Fields     map[string]string // modal input id -> value
	Responder  Responder
}

// InteractionHandler processes interactions received from external platforms.
type InteractionHandler func(ctx context.Context, in Interaction) error

// Responder answers an interaction. Replies are visible to the acting user only.
type Responder interface {
	// Defer acknowledges the interaction without changing the source message.
	Defer(ctx context.Context) error
	// DeferReply acknowledges the interaction; a later Reply becomes a followup.
	DeferReply(ctx context.Context) error
	// Reply sends a private response (or followup, if already acknowledged).
	Reply(ctx context.Context, msg Reply) error
	// OpenModal answers the interaction with a form.
	OpenModal(ctx context.Context, m Modal) error
}

// Reply is a private interaction response.
type Reply struct {
	Content string
	Embed   *Embed
	Buttons []Button
	Select  *Select
}

// Notice sends a private plain-text reply.
func Notice(ctx context.Context, r Responder, text string) error {
	return r.Reply(ctx, Reply{Content: text})
}

// Select is a single-choice dropdown.
type Select struct {
	ID          string
	Placeholder string
	Options     []SelectOption
}

// SelectOption is one entry of a Select.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// Modal is a form shown to the acting user.
type Modal struct {
	ID     string
	Title  string
	Inputs []TextInput
}

// TextInput is one field of a Modal.
type TextInput struct {
	ID          string
	Label       string
	Placeholder string
	Value       string
	Paragraph   bool
	Required    bool
	MaxLength   int
}
