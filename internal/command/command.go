// Package command routes prefix commands and interaction custom ids to cog
// handlers.
package command

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/thread"
	"github.com/h1v3-io/modcogs/pkg/protocol"
)

// Level is a permission level. Higher levels include lower ones.
type Level int

const (
	Regular Level = iota
	Supporter
	Administrator
)

func (l Level) String() string {
	switch l {
	case Regular:
		return "regular"
	case Supporter:
		return "supporter"
	case Administrator:
		return "administrator"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Roles maps guild role ids to permission levels.
type Roles struct {
	Supporter     []string
	Administrator []string
	Owners        []string // user ids with Administrator everywhere
}

// LevelOf returns the highest level a member qualifies for.
func (r Roles) LevelOf(userID string, roles []string) Level {
	if contains(r.Owners, userID) {
		return Administrator
	}
	level := Regular
	for _, role := range roles {
		if contains(r.Administrator, role) {
			return Administrator
		}
		if contains(r.Supporter, role) {
			level = Supporter
		}
	}
	return level
}

// Handler runs a command.
type Handler func(ctx context.Context, call *Call) error

// Command is a prefix command, or a group of subcommands when Subcommands
// is set. A group with no Run prints its help when called bare.
type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Help        string
	Level       Level
	ThreadOnly  bool
	Run         Handler
	Subcommands []*Command
}

func (c *Command) find(name string) *Command {
	for _, sub := range c.Subcommands {
		if sub.Name == name || contains(sub.Aliases, name) {
			return sub
		}
	}
	return nil
}

// Call is one invocation of a command.
type Call struct {
	Message connector.InboundMessage
	Command *Command
	Path    string // "closerequestconfig setmessage"
	Args    string // text after the command path
	Level   Level
	Ticket  *protocol.Ticket // set for ThreadOnly commands

	sender connector.Messenger
	prefix string
}

// Reply posts text in the channel the command came from.
func (c *Call) Reply(ctx context.Context, text string) error {
	_, err := c.sender.SendMessage(ctx, connector.OutboundMessage{ChatID: c.Message.ChatID, Content: text})
	return err
}

// ReplyEmbed posts an embed in the channel the command came from.
func (c *Call) ReplyEmbed(ctx context.Context, e *connector.Embed) error {
	_, err := c.sender.SendMessage(ctx, connector.OutboundMessage{ChatID: c.Message.ChatID, Embed: e})
	return err
}

// Author returns the caller as a thread author.
func (c *Call) Author() thread.Author {
	return thread.Author{ID: c.Message.SenderID, Name: c.Message.SenderName, Bot: c.Message.SenderBot}
}

// Fields splits Args on whitespace.
func (c *Call) Fields() []string { return strings.Fields(c.Args) }

// Prefix returns the command prefix in use.
func (c *Call) Prefix() string { return c.prefix }

// UserError is shown to the caller verbatim.
type UserError struct{ Msg string }

func (e *UserError) Error() string { return e.Msg }

// Errorf returns a UserError.
func Errorf(format string, args ...any) error {
	return &UserError{Msg: fmt.Sprintf(format, args...)}
}

// IsUserError reports whether err carries a caller-facing message.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

var (
	channelMention = regexp.MustCompile(`^<#(\d+)>$`)
	userMention    = regexp.MustCompile(`^<@!?(\d+)>$`)
	snowflake      = regexp.MustCompile(`^\d{5,20}$`)
)

// ParseChannel accepts a channel mention or a raw id.
func ParseChannel(arg string) (string, bool) {
	if m := channelMention.FindStringSubmatch(arg); m != nil {
		return m[1], true
	}
	if snowflake.MatchString(arg) {
		return arg, true
	}
	return "", false
}

// ParseUser accepts a user mention or a raw id.
func ParseUser(arg string) (string, bool) {
	if m := userMention.FindStringSubmatch(arg); m != nil {
		return m[1], true
	}
	if snowflake.MatchString(arg) {
		return arg, true
	}
	return "", false
}

// OnOff renders a toggle state.
func OnOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
