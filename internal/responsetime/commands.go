package responsetime

import (
	"context"
	"fmt"
	"strconv"

	"github.com/h1v3-io/modcogs/internal/command"
	"github.com/h1v3-io/modcogs/internal/connector"
)

// Commands returns the responsetime command group.
func (c *Cog) Commands() []*command.Command {
	admin := func(name, usage, help string, run command.Handler) *command.Command {
		return &command.Command{Name: name, Usage: usage, Help: help, Level: command.Administrator, Run: run}
	}
	return []*command.Command{{
		Name:  "responsetime",
		Help:  "Configure the response time logger.",
		Level: command.Administrator,
		Subcommands: []*command.Command{
			admin("setchannel", "<channel>", "Set the channel where response times will be logged.", c.setChannel),
			admin("toggle", "", "Enable or disable response time logging.", c.toggle),
			admin("togglestats", "", "Toggle average response time statistics in logs.", c.toggleStats),
			admin("stats", "", "View response time statistics.", c.stats),
			admin("resetstats", "", "Reset response time statistics.", c.resetStats),
			admin("config", "", "View current configuration.", c.viewConfig),
		},
	}}
}

func (c *Cog) setChannel(ctx context.Context, call *command.Call) error {
	id, ok := command.ParseChannel(call.Args)
	if !ok {
		return command.Errorf("Usage: `%sresponsetime setchannel <#channel>`", call.Prefix())
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.LogChannelID = id }); err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Response time logs will be sent to <#%s>", id))
}

func (c *Cog) toggle(ctx context.Context, call *command.Call) error {
	cfg, err := c.update(ctx, func(cfg *Config) { cfg.Enabled = !cfg.Enabled })
	if err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Response time logging is now **%s**.", command.OnOff(cfg.Enabled)))
}

func (c *Cog) toggleStats(ctx context.Context, call *command.Call) error {
	cfg, err := c.update(ctx, func(cfg *Config) { cfg.IncludeStats = !cfg.IncludeStats })
	if err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Average response time statistics are now **%s**.", command.OnOff(cfg.IncludeStats)))
}

func (c *Cog) stats(ctx context.Context, call *command.Call) error {
	s := c.Stats()
	if s.Tracked == 0 {
		return call.Reply(ctx, "❌ No response time data available yet.")
	}
	e := &connector.Embed{Title: "📊 Response Time Statistics", Color: connector.ColorBlurple, Timestamp: c.now()}
	e.AddField("Total Tickets Tracked", strconv.Itoa(s.Tracked), true).
		AddField("Average Response Time", Format(seconds(s.Average)), true).
		AddField("Awaiting Response", strconv.Itoa(s.Pending), true).
		AddField("Fastest Response", Format(seconds(s.Fastest)), true).
		AddField("Slowest Response", Format(seconds(s.Slowest)), true)
	return call.ReplyEmbed(ctx, e)
}

func (c *Cog) resetStats(ctx context.Context, call *command.Call) error {
	c.mu.Lock()
	c.state.ResponseTimes = nil
	c.saveLocked(ctx)
	c.mu.Unlock()
	return call.Reply(ctx, "✅ Response time statistics have been reset.")
}

func (c *Cog) viewConfig(ctx context.Context, call *command.Call) error {
	cfg := c.Config()
	s := c.Stats()
	channel := "Not set"
	if cfg.LogChannelID != "" {
		channel = channelMention(cfg.LogChannelID)
	}
	e := &connector.Embed{Title: "Response Time Logger Configuration", Color: connector.ColorBlurple}
	e.AddField("Log Channel", channel, false).
		AddField("Logging Enabled", yesNo(cfg.Enabled), true).
		AddField("Include Statistics", yesNo(cfg.IncludeStats), true).
		AddField("Tickets Tracked", strconv.Itoa(s.Tracked), true)
	return call.ReplyEmbed(ctx, e)
}

func yesNo(b bool) string {
	if b {
		return "✅ Yes"
	}
	return "❌ No"
}
