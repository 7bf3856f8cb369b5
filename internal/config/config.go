package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level modcogs process configuration. Cog settings live
// in the document store and are changed with admin commands.
type Config struct {
	Bot      BotConfig                `json:"bot" yaml:"bot"`
	API      APIConfig                `json:"api" yaml:"api"`
	Alerts   AlertsConfig             `json:"alerts" yaml:"alerts"`
	Webhooks map[string]WebhookConfig `json:"webhooks,omitempty" yaml:"webhooks,omitempty"`
}

// BotConfig holds the Discord bot settings.
type BotConfig struct {
	Token          string   `json:"token" yaml:"token"`
	GuildID        string   `json:"guild_id" yaml:"guild_id"`
	CategoryID     string   `json:"modmail_category_id" yaml:"modmail_category_id"`
	Prefix         string   `json:"prefix" yaml:"prefix"`
	DataDir        string   `json:"data_dir" yaml:"data_dir"`
	SupporterRoles []string `json:"supporter_roles,omitempty" yaml:"supporter_roles,omitempty"`
	AdminRoles     []string `json:"admin_roles,omitempty" yaml:"admin_roles,omitempty"`
	Owners         []string `json:"owners,omitempty" yaml:"owners,omitempty"`
}

// APIConfig holds admin REST API settings.
type APIConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	Key  string `json:"api_key" yaml:"api_key"`
}

// AlertsConfig holds the optional operator alert sinks.
type AlertsConfig struct {
	Slack    *SlackConfig    `json:"slack,omitempty" yaml:"slack,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty" yaml:"telegram,omitempty"`
}

// SlackConfig holds Slack sink settings. AppToken enables /status.
type SlackConfig struct {
	BotToken string `json:"bot_token" yaml:"bot_token"`
	AppToken string `json:"app_token,omitempty" yaml:"app_token,omitempty"`
	Channel  string `json:"channel" yaml:"channel"`
}

// TelegramConfig holds Telegram sink settings.
type TelegramConfig struct {
	Token     string  `json:"token" yaml:"token"`
	ChatIDs   []int64 `json:"chat_ids" yaml:"chat_ids"`
	AllowFrom []int64 `json:"allow_from,omitempty" yaml:"allow_from,omitempty"`
}

// WebhookConfig authenticates one inbound alert webhook. With neither field
// set the endpoint is open.
type WebhookConfig struct {
	Secret      string `json:"secret,omitempty" yaml:"secret,omitempty"`
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`
	// LogChannelID, when set, also posts the alert in that Discord channel.
	LogChannelID string `json:"log_channel_id,omitempty" yaml:"log_channel_id,omitempty"`
}

// Load reads configuration from a JSON or YAML file, chosen by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bot.Prefix == "" {
		c.Bot.Prefix = "?"
	}
	if c.Bot.DataDir == "" {
		c.Bot.DataDir = "/data"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// LoadFromEnv builds a config from environment variables with MODCOGS_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Bot: BotConfig{
			Token:          os.Getenv("MODCOGS_DISCORD_TOKEN"),
			GuildID:        os.Getenv("MODCOGS_GUILD_ID"),
			CategoryID:     os.Getenv("MODCOGS_MODMAIL_CATEGORY_ID"),
			Prefix:         getenv("MODCOGS_PREFIX", "?"),
			DataDir:        getenv("MODCOGS_DATA_DIR", "/data"),
			SupporterRoles: parseList(os.Getenv("MODCOGS_SUPPORTER_ROLES")),
			AdminRoles:     parseList(os.Getenv("MODCOGS_ADMIN_ROLES")),
			Owners:         parseList(os.Getenv("MODCOGS_OWNERS")),
		},
		API: APIConfig{
			Host: getenv("MODCOGS_API_HOST", "0.0.0.0"),
			Port: getenvInt("MODCOGS_API_PORT", 8080),
			Key:  os.Getenv("MODCOGS_API_KEY"),
		},
	}

	if token := os.Getenv("MODCOGS_SLACK_BOT_TOKEN"); token != "" {
		cfg.Alerts.Slack = &SlackConfig{
			BotToken: token,
			AppToken: os.Getenv("MODCOGS_SLACK_APP_TOKEN"),
			Channel:  os.Getenv("MODCOGS_SLACK_CHANNEL"),
		}
	}

	if token := os.Getenv("MODCOGS_TELEGRAM_TOKEN"); token != "" {
		cfg.Alerts.Telegram = &TelegramConfig{Token: token}
		chats, err := parseInt64List(os.Getenv("MODCOGS_TELEGRAM_CHAT_IDS"))
		if err != nil {
			return nil, fmt.Errorf("config: MODCOGS_TELEGRAM_CHAT_IDS: %w", err)
		}
		cfg.Alerts.Telegram.ChatIDs = chats
		if ids := os.Getenv("MODCOGS_TELEGRAM_ALLOW_FROM"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: MODCOGS_TELEGRAM_ALLOW_FROM: %w", err)
			}
			cfg.Alerts.Telegram.AllowFrom = parsed
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Bot.Token == "" {
		errs = append(errs, "bot.token is required")
	}
	if c.Bot.GuildID == "" {
		errs = append(errs, "bot.guild_id is required")
	}
	if c.Bot.CategoryID == "" {
		errs = append(errs, "bot.modmail_category_id is required")
	}
	if c.Bot.DataDir == "" {
		errs = append(errs, "bot.data_dir is required")
	}
	if strings.ContainsAny(c.Bot.Prefix, " \t\n") {
		errs = append(errs, "bot.prefix must not contain whitespace")
	}

	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port %d is out of range", c.API.Port))
	}

	if s := c.Alerts.Slack; s != nil {
		if s.BotToken == "" {
			errs = append(errs, "alerts.slack.bot_token is required")
		}
		if s.Channel == "" {
			errs = append(errs, "alerts.slack.channel is required")
		}
	}
	if tg := c.Alerts.Telegram; tg != nil {
		if tg.Token == "" {
			errs = append(errs, "alerts.telegram.token is required")
		}
		if len(tg.ChatIDs) == 0 {
			errs = append(errs, "alerts.telegram.chat_ids needs at least one chat")
		}
	}

	for name, w := range c.Webhooks {
		if w.Secret != "" && w.BearerToken != "" {
			errs = append(errs, fmt.Sprintf("webhooks.%s: set either secret or bearer_token, not both", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt64List(s string) ([]int64, error) {
	parts := parseList(s)
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
