package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/pkg/protocol"
)

// Messages shown by the router.
const (
	MsgThreadOnly   = "This command can only be used in a thread."
	MsgNoPermission = "You do not have permission to use this command."
	MsgFailed       = "Something went wrong while running that command."
)

// ThreadLookup resolves the ticket bound to a channel.
type ThreadLookup interface {
	ForChannel(ctx context.Context, channelID string) (*protocol.Ticket, error)
}

// Router dispatches inbound messages and interactions.
type Router struct {
	prefix  string
	sender  connector.Messenger
	threads ThreadLookup
	roles   Roles
	logger  *slog.Logger

	mu           sync.RWMutex
	commands     map[string]*Command
	top          []*Command
	interactions map[string]connector.InteractionHandler // custom id prefix -> handler
	direct       connector.InboundHandler
}

// NewRouter creates a router for commands starting with prefix.
func NewRouter(prefix string, sender connector.Messenger, threads ThreadLookup, roles Roles, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "?"
	}
	return &Router{
		prefix:       prefix,
		sender:       sender,
		threads:      threads,
		roles:        roles,
		logger:       logger,
		commands:     make(map[string]*Command),
		interactions: make(map[string]connector.InteractionHandler),
	}
}

// Register adds top-level commands. Names and aliases must be unique.
func (r *Router) Register(cmds ...*Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cmds {
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			name = strings.ToLower(name)
			if _, dup := r.commands[name]; dup {
				return fmt.Errorf("command: %q already registered", name)
			}
			r.commands[name] = c
		}
		r.top = append(r.top, c)
	}
	return nil
}

// HandleInteraction registers fn for interactions whose custom id starts
// with prefix. The longest matching prefix wins.
func (r *Router) HandleInteraction(prefix string, fn connector.InteractionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactions[prefix] = fn
}

// OnDirect sets the handler for direct messages (modmail relay).
func (r *Router) OnDirect(fn connector.InboundHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct = fn
}

// Commands returns the registered top-level commands sorted by name.
func (r *Router) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]*Command(nil), r.top...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HandleMessage is the connector.InboundHandler for chat messages.
func (r *Router) HandleMessage(ctx context.Context, msg connector.InboundMessage) error {
	if msg.SenderBot {
		return nil
	}
	if msg.Direct {
		r.mu.RLock()
		direct := r.direct
		r.mu.RUnlock()
		if direct == nil {
			return nil
		}
		return direct(ctx, msg)
	}

	body, ok := strings.CutPrefix(msg.Content, r.prefix)
	if !ok {
		return nil
	}
	name, rest := nextWord(body)
	if name == "" {
		return nil
	}

	r.mu.RLock()
	cmd := r.commands[strings.ToLower(name)]
	r.mu.RUnlock()
	if cmd == nil {
		return nil
	}

	path := cmd.Name
	for len(cmd.Subcommands) > 0 {
		word, after := nextWord(rest)
		sub := cmd.find(strings.ToLower(word))
		if sub == nil {
			break
		}
		cmd, rest, path = sub, after, path+" "+sub.Name
	}

	call := &Call{
		Message: msg,
		Command: cmd,
		Path:    path,
		Args:    strings.TrimSpace(rest),
		Level:   r.roles.LevelOf(msg.SenderID, msg.SenderRoles),
		sender:  r.sender,
		prefix:  r.prefix,
	}
	return r.run(ctx, call)
}

func (r *Router) run(ctx context.Context, call *Call) error {
	cmd := call.Command
	if call.Level < cmd.Level {
		return call.Reply(ctx, MsgNoPermission)
	}

	if cmd.ThreadOnly {
		t, err := r.threads.ForChannel(ctx, call.Message.ChatID)
		if err != nil || !t.IsOpen() {
			return call.Reply(ctx, MsgThreadOnly)
		}
		call.Ticket = t
	}

	if cmd.Run == nil {
		return call.Reply(ctx, r.Help(cmd, call.Path))
	}

	r.logger.Debug("command", "path", call.Path, "user", call.Message.SenderID, "channel", call.Message.ChatID)
	err := cmd.Run(ctx, call)
	if err == nil {
		return nil
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return call.Reply(ctx, ue.Msg)
	}
	r.logger.Error("command failed", "path", call.Path, "user", call.Message.SenderID, "error", err)
	call.Reply(ctx, MsgFailed)
	return err
}

// Dispatch is the connector.InteractionHandler for components and modals.
func (r *Router) Dispatch(ctx context.Context, in connector.Interaction) error {
	r.mu.RLock()
	var best string
	var fn connector.InteractionHandler
	for prefix, h := range r.interactions {
		if strings.HasPrefix(in.CustomID, prefix) && len(prefix) > len(best) {
			best, fn = prefix, h
		}
	}
	r.mu.RUnlock()

	if fn == nil {
		r.logger.Debug("unhandled interaction", "custom_id", in.CustomID)
		return nil
	}
	return fn(ctx, in)
}

// Help renders usage for a command and its subcommands.
func (r *Router) Help(cmd *Command, path string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s%s**", r.prefix, path)
	if cmd.Usage != "" {
		b.WriteString(" " + cmd.Usage)
	}
	if cmd.Help != "" {
		b.WriteString("\n" + cmd.Help)
	}
	if len(cmd.Aliases) > 0 {
		b.WriteString("\nAliases: " + strings.Join(cmd.Aliases, ", "))
	}
	if len(cmd.Subcommands) > 0 {
		b.WriteString("\n\nSubcommands:")
		for _, sub := range cmd.Subcommands {
			fmt.Fprintf(&b, "\n`%s%s %s", r.prefix, path, sub.Name)
			if sub.Usage != "" {
				b.WriteString(" " + sub.Usage)
			}
			b.WriteString("`")
			if sub.Help != "" {
				b.WriteString(" - " + sub.Help)
			}
		}
	}
	return b.String()
}

// nextWord splits off the first whitespace-delimited word.
func nextWord(s string) (word, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}
