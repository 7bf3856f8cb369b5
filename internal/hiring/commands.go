package hiring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/h1v3-io/modcogs/internal/command"
	"github.com/h1v3-io/modcogs/internal/connector"
)

// Commands returns the hiringconfig command group.
func (c *Cog) Commands() []*command.Command {
	sub := func(name, usage, help string, run command.Handler) *command.Command {
		return &command.Command{Name: name, Usage: usage, Help: help, Level: command.Administrator, Run: run}
	}
	return []*command.Command{{
		Name:  "hiringconfig",
		Help:  "Configure the hiring panel.",
		Level: command.Administrator,
		Subcommands: []*command.Command{
			sub("setpanelchannel", "<channel>", "Set the channel where the hiring button panel should be posted.", c.setPanelChannel),
			sub("setpanelmessage", "<message>", "Set the message content used for the hiring panel.", c.setPanelMessage),
			sub("sendpanel", "", "Send the hiring panel to the configured channel.", c.sendPanelCmd),
			sub("setoutputchannel", "<channel>", "Set the channel where hiring embeds are posted.", c.setOutputChannel),
			sub("usepaneloutput", "<on|off>", "Post hiring embeds in the panel channel instead of the output channel.", c.usePanelOutput),
			sub("setsupabase", "<url> <key> [table]", "Set the Supabase URL, API key and optional table name.", c.setSupabase),
			sub("settable", "<table>", "Set the Supabase table used for submissions.", c.setTable),
			sub("setblocked", "[term, term, ...]", "Set comma separated terms that reject a submission. Omit to clear.", c.setBlocked),
			sub("setexpiry", "<days>", "Remove requests older than this many days. 0 disables expiry.", c.setExpiry),
			sub("view", "", "View current hiring configuration.", c.view),
		},
	}}
}

func (c *Cog) setPanelChannel(ctx context.Context, call *command.Call) error {
	id, ok := command.ParseChannel(call.Args)
	if !ok {
		return command.Errorf("Usage: `%shiringconfig setpanelchannel <#channel>`", call.Prefix())
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.PanelChannelID = id }); err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Hiring panel channel set to <#%s>", id))
}

func (c *Cog) setPanelMessage(ctx context.Context, call *command.Call) error {
	if call.Args == "" {
		return command.Errorf("Usage: `%shiringconfig setpanelmessage <message>`", call.Prefix())
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.PanelMessage = call.Args }); err != nil {
		return err
	}
	return call.Reply(ctx, "✅ Hiring panel message updated.")
}

func (c *Cog) sendPanelCmd(ctx context.Context, call *command.Call) error {
	err := c.SendPanel(ctx)
	if errors.Is(err, ErrNoPanelChannel) {
		return command.Errorf("❌ Failed to send hiring panel: Panel channel not set. Use `%shiringconfig setpanelchannel <#channel>`.", call.Prefix())
	}
	if err != nil {
		return command.Errorf("❌ Failed to send hiring panel: %v", err)
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Hiring panel sent to <#%s>", c.Config().PanelChannelID))
}

func (c *Cog) setOutputChannel(ctx context.Context, call *command.Call) error {
	id, ok := command.ParseChannel(call.Args)
	if !ok {
		return command.Errorf("Usage: `%shiringconfig setoutputchannel <#channel>`", call.Prefix())
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.OutputChannelID = id }); err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Hiring submissions will be posted in <#%s>", id))
}

func (c *Cog) usePanelOutput(ctx context.Context, call *command.Call) error {
	enabled, ok := parseBool(call.Args)
	if !ok {
		return command.Errorf("Usage: `%shiringconfig usepaneloutput <on|off>`", call.Prefix())
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.UsePanelChannelForOutput = enabled }); err != nil {
		return err
	}
	if enabled {
		return call.Reply(ctx, "✅ Hiring embeds will post in the panel channel and repost to stay at the bottom.")
	}
	return call.Reply(ctx, "✅ Hiring embeds will use the configured output channel.")
}

func (c *Cog) setSupabase(ctx context.Context, call *command.Call) error {
	args := call.Fields()
	if len(args) < 2 || len(args) > 3 {
		return command.Errorf("Usage: `%shiringconfig setsupabase <url> <key> [table]`", call.Prefix())
	}
	rawURL, key := args[0], args[1]
	if !strings.HasPrefix(rawURL, "https://") && !strings.HasPrefix(rawURL, "http://") {
		return command.Errorf("❌ Supabase URL must start with http:// or https://")
	}
	table := DefaultConfig.SupabaseTable
	if len(args) == 3 {
		table = args[2]
	}
	_, err := c.update(ctx, func(cfg *Config) {
		cfg.SupabaseURL = strings.TrimRight(rawURL, "/")
		cfg.SupabaseKey = key
		cfg.SupabaseTable = table
	})
	if err != nil {
		return err
	}
	c.lists.Clear()
	return call.Reply(ctx, "✅ Supabase configuration updated.")
}

func (c *Cog) setTable(ctx context.Context, call *command.Call) error {
	table := strings.TrimSpace(call.Args)
	if table == "" {
		return command.Errorf("Usage: `%shiringconfig settable <table>`", call.Prefix())
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.SupabaseTable = table }); err != nil {
		return err
	}
	c.lists.Clear()
	return call.Reply(ctx, fmt.Sprintf("✅ Supabase table set to `%s`", table))
}

func (c *Cog) setBlocked(ctx context.Context, call *command.Call) error {
	var terms []string
	for _, t := range strings.Split(call.Args, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.BlockedTerms = terms }); err != nil {
		return err
	}
	if len(terms) == 0 {
		return call.Reply(ctx, "✅ Blocked terms cleared.")
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Blocked terms set: `%s`", strings.Join(terms, "`, `")))
}

func (c *Cog) setExpiry(ctx context.Context, call *command.Call) error {
	days, err := strconv.Atoi(strings.TrimSpace(call.Args))
	if err != nil || days < 0 {
		return command.Errorf("Usage: `%shiringconfig setexpiry <days>`", call.Prefix())
	}
	if days > MaxExpireDays {
		return command.Errorf("Expiry can be at most %d days.", MaxExpireDays)
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.ExpireAfterDays = days }); err != nil {
		return err
	}
	if days == 0 {
		return call.Reply(ctx, "✅ Hiring requests no longer expire.")
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Hiring requests will be removed after **%d days**.", days))
}

func (c *Cog) view(ctx context.Context, call *command.Call) error {
	cfg := c.Config()
	channel := func(id string) string {
		if id == "" {
			return "Not set"
		}
		return "<#" + id + ">"
	}
	orNotSet := func(s string) string {
		if s == "" {
			return "Not set"
		}
		return s
	}
	panelMessage := truncate(orNotSet(cfg.PanelMessage), 1024)
	usePanel := "Disabled"
	if cfg.UsePanelChannelForOutput {
		usePanel = "Enabled"
	}
	key := "Not set"
	if cfg.SupabaseKey != "" {
		key = "Configured"
	}
	blocked := "None"
	if len(cfg.BlockedTerms) > 0 {
		blocked = truncate(strings.Join(cfg.BlockedTerms, ", "), 1024)
	}
	expiry := "Never"
	if cfg.ExpireAfterDays > 0 {
		expiry = fmt.Sprintf("%d days", cfg.ExpireAfterDays)
	}

	e := &connector.Embed{Title: "Hiring Plugin Configuration", Color: connector.ColorBlurple}
	e.AddField("Panel Channel", channel(cfg.PanelChannelID), false).
		AddField("Panel Message", panelMessage, false).
		AddField("Output Channel", channel(cfg.OutputChannelID), false).
		AddField("Use Panel as Output", usePanel, true).
		AddField("Supabase URL", orNotSet(cfg.SupabaseURL), false).
		AddField("Supabase Key", key, true).
		AddField("Supabase Table", orNotSet(cfg.SupabaseTable), true).
		AddField("Blocked Terms", blocked, false).
		AddField("Expire After", expiry, true)
	return call.ReplyEmbed(ctx, e)
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "y", "true", "t", "1", "enable", "enabled":
		return true, true
	case "off", "no", "n", "false", "f", "0", "disable", "disabled":
		return false, true
	}
	return false, false
}
