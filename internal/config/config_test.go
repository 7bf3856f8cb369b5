package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validJSON = `{
  "bot": {
    "token": "discord-token",
    "guild_id": "100000000000000001",
    "modmail_category_id": "100000000000000002",
    "supporter_roles": ["200000000000000001"],
    "admin_roles": ["200000000000000002"]
  },
  "api": {
    "port": 9090,
    "api_key": "dashboard-key"
  },
  "alerts": {
    "telegram": {
      "token": "123456:ABC",
      "chat_ids": [-1001],
      "allow_from": [100, 200]
    }
  }
}`

const validYAML = `
bot:
  token: discord-token
  guild_id: "100000000000000001"
  modmail_category_id: "100000000000000002"
  prefix: "!"
  data_dir: /srv/modcogs
alerts:
  slack:
    bot_token: xoxb-1
    channel: C123
webhooks:
  statuspage:
    secret: whsec
    log_channel_id: "300000000000000001"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.json", validJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Bot.Token != "discord-token" || cfg.Bot.GuildID != "100000000000000001" {
		t.Errorf("bot = %+v", cfg.Bot)
	}
	if cfg.Bot.Prefix != "?" || cfg.Bot.DataDir != "/data" {
		t.Errorf("defaults not applied: prefix=%q data_dir=%q", cfg.Bot.Prefix, cfg.Bot.DataDir)
	}
	if len(cfg.Bot.SupporterRoles) != 1 || len(cfg.Bot.AdminRoles) != 1 {
		t.Errorf("roles = %v / %v", cfg.Bot.SupporterRoles, cfg.Bot.AdminRoles)
	}
	if cfg.API.Port != 9090 || cfg.API.Host != "0.0.0.0" || cfg.API.Key != "dashboard-key" {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Alerts.Telegram == nil || len(cfg.Alerts.Telegram.AllowFrom) != 2 {
		t.Fatalf("telegram = %+v", cfg.Alerts.Telegram)
	}
	if cfg.Alerts.Slack != nil {
		t.Error("slack should be nil")
	}
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bot.Prefix != "!" || cfg.Bot.DataDir != "/srv/modcogs" {
		t.Errorf("bot = %+v", cfg.Bot)
	}
	if cfg.Alerts.Slack == nil || cfg.Alerts.Slack.Channel != "C123" {
		t.Errorf("slack = %+v", cfg.Alerts.Slack)
	}
	if w := cfg.Webhooks["statuspage"]; w.Secret != "whsec" || w.LogChannelID != "300000000000000001" {
		t.Errorf("webhooks = %+v", cfg.Webhooks)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("api.port = %d", cfg.API.Port)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/config.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	if _, err := Load(writeFile(t, "bad.json", "not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := Load(writeFile(t, "bad.yml", "bot: [unclosed")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Alerts: AlertsConfig{
			Slack:    &SlackConfig{},
			Telegram: &TelegramConfig{Token: "t"},
		},
		Webhooks: map[string]WebhookConfig{"ci": {Secret: "s", BearerToken: "b"}},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{
		"bot.token",
		"bot.guild_id",
		"bot.modmail_category_id",
		"bot.data_dir",
		"alerts.slack.bot_token",
		"alerts.slack.channel",
		"alerts.telegram.chat_ids",
		"webhooks.ci",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidate_PrefixWhitespace(t *testing.T) {
	cfg := &Config{Bot: BotConfig{Token: "t", GuildID: "g", CategoryID: "c", DataDir: "/d", Prefix: "mod "}}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "bot.prefix") {
		t.Errorf("expected prefix error, got %v", err)
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := &Config{Bot: BotConfig{Token: "t", GuildID: "g", CategoryID: "c", DataDir: "/d", Prefix: "?"}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MODCOGS_DISCORD_TOKEN", "env-token")
	t.Setenv("MODCOGS_GUILD_ID", "g-env")
	t.Setenv("MODCOGS_MODMAIL_CATEGORY_ID", "cat-env")
	t.Setenv("MODCOGS_DATA_DIR", "/env/data")
	t.Setenv("MODCOGS_ADMIN_ROLES", "r1, r2,")
	t.Setenv("MODCOGS_API_PORT", "9191")
	t.Setenv("MODCOGS_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("MODCOGS_TELEGRAM_CHAT_IDS", "-100,200")
	t.Setenv("MODCOGS_TELEGRAM_ALLOW_FROM", "100,200,300")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Bot.Token != "env-token" || cfg.Bot.DataDir != "/env/data" || cfg.Bot.Prefix != "?" {
		t.Errorf("bot = %+v", cfg.Bot)
	}
	if len(cfg.Bot.AdminRoles) != 2 || cfg.Bot.AdminRoles[1] != "r2" {
		t.Errorf("admin roles = %v", cfg.Bot.AdminRoles)
	}
	if cfg.API.Port != 9191 {
		t.Errorf("api.port = %d", cfg.API.Port)
	}
	tg := cfg.Alerts.Telegram
	if tg == nil || len(tg.ChatIDs) != 2 || tg.ChatIDs[0] != -100 || len(tg.AllowFrom) != 3 {
		t.Errorf("telegram = %+v", tg)
	}
}

func TestLoadFromEnv_BadList(t *testing.T) {
	t.Setenv("MODCOGS_DISCORD_TOKEN", "env-token")
	t.Setenv("MODCOGS_GUILD_ID", "g")
	t.Setenv("MODCOGS_MODMAIL_CATEGORY_ID", "c")
	t.Setenv("MODCOGS_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("MODCOGS_TELEGRAM_CHAT_IDS", "abc")
	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "MODCOGS_TELEGRAM_CHAT_IDS") {
		t.Errorf("expected chat id error, got %v", err)
	}
}
