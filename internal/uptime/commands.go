package uptime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/h1v3-io/modcogs/internal/command"
	"github.com/h1v3-io/modcogs/internal/connector"
)

// Commands returns the httpping command group.
func (c *Cog) Commands() []*command.Command {
	sub := func(name, usage, help string, run command.Handler) *command.Command {
		return &command.Command{Name: name, Usage: usage, Help: help, Level: command.Administrator, Run: run}
	}
	return []*command.Command{{
		Name:  "httpping",
		Help:  "Configure the HTTP uptime ping.",
		Level: command.Administrator,
		Subcommands: []*command.Command{
			sub("seturl", "<url>", "Set the URL to ping.", c.setURL),
			sub("setmethod", "<HEAD|GET|POST>", "Set the HTTP method.", c.setMethod),
			sub("setinterval", "<seconds>", "Set the interval between pings (minimum 10 seconds).", c.setInterval),
			sub("setchannel", "<channel>", "Set the channel where ping logs will be sent.", c.setChannel),
			sub("setkeyword", "[keyword]", "Require the page text to contain a keyword. Omit to clear.", c.setKeyword),
			sub("toggle", "", "Enable or disable pinging.", c.toggle),
			sub("togglefailures", "", "Toggle logging of failed requests.", c.toggleFailures),
			sub("togglesuccesses", "", "Toggle logging of successful requests.", c.toggleSuccesses),
			sub("stats", "", "View ping statistics.", c.viewStats),
			sub("resetstats", "", "Reset ping statistics.", c.resetStats),
			sub("config", "", "View current configuration.", c.viewConfig),
			sub("test", "", "Ping the URL now.", c.test),
		},
	}}
}

func (c *Cog) setURL(ctx context.Context, call *command.Call) error {
	raw := call.Args
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return command.Errorf("❌ URL must start with http:// or https://")
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.URL = raw }); err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ URL set to: `%s`", raw))
}

func (c *Cog) setMethod(ctx context.Context, call *command.Call) error {
	method := strings.ToUpper(call.Args)
	switch method {
	case http.MethodHead, http.MethodGet, http.MethodPost:
	default:
		return command.Errorf("❌ Method must be HEAD, GET, or POST")
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.Method = method }); err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ HTTP method set to: **%s**", method))
}

func (c *Cog) setInterval(ctx context.Context, call *command.Call) error {
	secs, err := strconv.Atoi(call.Args)
	if err != nil {
		return command.Errorf("Usage: `%shttpping setinterval <seconds>`", call.Prefix())
	}
	if secs < minInterval {
		return command.Errorf("❌ Interval must be at least %d seconds", minInterval)
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.Interval = secs }); err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Ping interval set to: **%d seconds**", secs))
}

func (c *Cog) setChannel(ctx context.Context, call *command.Call) error {
	id, ok := command.ParseChannel(call.Args)
	if !ok {
		return command.Errorf("Usage: `%shttpping setchannel <#channel>`", call.Prefix())
	}
	if _, err := c.update(ctx, func(cfg *Config) { cfg.LogChannelID = id }); err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Ping logs will be sent to <#%s>", id))
}

func (c *Cog) setKeyword(ctx context.Context, call *command.Call) error {
	cfg, err := c.update(ctx, func(cfg *Config) { cfg.ExpectKeyword = call.Args })
	if err != nil {
		return err
	}
	if cfg.ExpectKeyword == "" {
		return call.Reply(ctx, "✅ Keyword check disabled.")
	}
	msg := fmt.Sprintf("✅ Responses must now contain **%s**.", cfg.ExpectKeyword)
	if cfg.Method == http.MethodHead {
		msg += " HEAD requests have no body, so the check is skipped until the method changes."
	}
	return call.Reply(ctx, msg)
}

func (c *Cog) toggle(ctx context.Context, call *command.Call) error {
	if c.Config().URL == "" {
		return command.Errorf("❌ Please set a URL first using `%shttpping seturl <url>`", call.Prefix())
	}
	cfg, err := c.update(ctx, func(cfg *Config) { cfg.Enabled = !cfg.Enabled })
	if err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ HTTP pinging is now **%s**.", command.OnOff(cfg.Enabled)))
}

func (c *Cog) toggleFailures(ctx context.Context, call *command.Call) error {
	cfg, err := c.update(ctx, func(cfg *Config) { cfg.LogFailures = !cfg.LogFailures })
	if err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Failure logging is now **%s**.", command.OnOff(cfg.LogFailures)))
}

func (c *Cog) toggleSuccesses(ctx context.Context, call *command.Call) error {
	cfg, err := c.update(ctx, func(cfg *Config) { cfg.LogSuccesses = !cfg.LogSuccesses })
	if err != nil {
		return err
	}
	return call.Reply(ctx, fmt.Sprintf("✅ Success logging is now **%s**.", command.OnOff(cfg.LogSuccesses)))
}

func (c *Cog) viewStats(ctx context.Context, call *command.Call) error {
	s := c.Stats()
	e := &connector.Embed{Title: "📊 HTTP Ping Statistics", Color: connector.ColorBlurple, Timestamp: c.now()}
	e.AddField("Total Requests", strconv.Itoa(s.TotalRequests), true).
		AddField("Successful", fmt.Sprintf("✅ %d", s.SuccessfulRequests), true).
		AddField("Failed", fmt.Sprintf("❌ %d", s.FailedRequests), true)
	if s.LastStatusCode > 0 {
		e.AddField("Last Status Code", strconv.Itoa(s.LastStatusCode), true)
	}
	if s.LastSuccess != nil {
		e.AddField("Last Success", fmt.Sprintf("<t:%d:R>", s.LastSuccess.Unix()), true)
	}
	if s.LastFailure != nil {
		e.AddField("Last Failure", fmt.Sprintf("<t:%d:R>", s.LastFailure.Unix()), true)
	}
	return call.ReplyEmbed(ctx, e)
}

func (c *Cog) resetStats(ctx context.Context, call *command.Call) error {
	if err := c.ResetStats(ctx); err != nil {
		return err
	}
	return call.Reply(ctx, "✅ HTTP ping statistics have been reset.")
}

func (c *Cog) viewConfig(ctx context.Context, call *command.Call) error {
	cfg := c.Config()
	e := &connector.Embed{Title: "HTTP Ping Configuration", Color: connector.ColorBlurple}
	e.AddField("URL", orNotSet(cfg.URL), false).
		AddField("Method", cfg.Method, true).
		AddField("Interval", fmt.Sprintf("%d seconds", cfg.Interval), true).
		AddField("Timeout", fmt.Sprintf("%d seconds", cfg.Timeout), true).
		AddField("Enabled", yesNo(cfg.Enabled), true).
		AddField("Log Failures", yesNo(cfg.LogFailures), true).
		AddField("Log Successes", yesNo(cfg.LogSuccesses), true).
		AddField("Expected Keyword", orNotSet(cfg.ExpectKeyword), true)
	channel := "Not set"
	if cfg.LogChannelID != "" {
		channel = "<#" + cfg.LogChannelID + ">"
	}
	e.AddField("Log Channel", channel, false)
	return call.ReplyEmbed(ctx, e)
}

func (c *Cog) test(ctx context.Context, call *command.Call) error {
	if c.Config().URL == "" {
		return command.Errorf("❌ Please set a URL first using `%shttpping seturl <url>`", call.Prefix())
	}
	if err := call.Reply(ctx, "🔄 Testing HTTP ping..."); err != nil {
		return err
	}
	res := c.Ping(ctx)
	switch {
	case res.OK():
		return call.Reply(ctx, fmt.Sprintf("✅ Test successful! Status code: %d", res.StatusCode))
	case res.StatusCode >= 400:
		return call.Reply(ctx, fmt.Sprintf("❌ Test failed with status code: %d", res.StatusCode))
	}
	return call.Reply(ctx, "❌ Test failed - "+res.Error)
}

func yesNo(b bool) string {
	if b {
		return "✅ Yes"
	}
	return "❌ No"
}

func orNotSet(s string) string {
	if s == "" {
		return "Not set"
	}
	return s
}
