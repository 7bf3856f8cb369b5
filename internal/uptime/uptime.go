// Package uptime pings a configured URL on an interval, keeps success and
// failure counts, and reports results to a log channel and alert sinks.
package uptime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/metrics"
	"github.com/h1v3-io/modcogs/internal/notify"
	"github.com/h1v3-io/modcogs/internal/scheduler"
	"github.com/h1v3-io/modcogs/internal/store"
)

const (
	configID    = "httpping-config"
	statsID     = "httpping-stats"
	jobOwner    = "uptime"
	minInterval = 10
)

// Config is the persisted cog configuration. Interval and Timeout are seconds.
type Config struct {
	URL           string            `json:"url"`
	Method        string            `json:"method"`
	Enabled       bool              `json:"enabled"`
	Interval      int               `json:"interval"`
	LogChannelID  string            `json:"log_channel_id"`
	LogFailures   bool              `json:"log_failures"`
	LogSuccesses  bool              `json:"log_successes"`
	Timeout       int               `json:"timeout"`
	Headers       map[string]string `json:"headers"`
	Body          any               `json:"body"`
	ExpectKeyword string            `json:"expect_keyword"`
}

var DefaultConfig = Config{
	Method:      http.MethodGet,
	Interval:    60,
	LogFailures: true,
	Timeout:     10,
	Headers:     map[string]string{},
}

// Stats counts pings since the last reset.
type Stats struct {
	TotalRequests      int        `json:"total_requests"`
	SuccessfulRequests int        `json:"successful_requests"`
	FailedRequests     int        `json:"failed_requests"`
	LastSuccess        *time.Time `json:"last_success"`
	LastFailure        *time.Time `json:"last_failure"`
	LastStatusCode     int        `json:"last_status_code"`
}

// Cog runs the uptime check.
type Cog struct {
	sender    connector.Messenger
	scheduler *scheduler.Scheduler
	alerts    *notify.Notifier
	client    *http.Client
	db        *store.Partition
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	pingMu sync.Mutex // one ping at a time, scheduled or manual

	mu     sync.Mutex
	cfg    Config
	stats  Stats
	lastOK *bool
}

// Deps are the collaborators of the cog. Alerts and Metrics may be nil.
type Deps struct {
	Sender    connector.Messenger
	Scheduler *scheduler.Scheduler
	Alerts    *notify.Notifier
	Client    *http.Client
	Store     *store.Partition
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// New loads configuration and stats and schedules the ping job when enabled.
func New(ctx context.Context, d Deps) (*Cog, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Client == nil {
		d.Client = http.DefaultClient
	}
	cfg, err := store.LoadConfig(ctx, d.Store, configID, DefaultConfig)
	if err != nil {
		return nil, fmt.Errorf("uptime: load config: %w", err)
	}
	var stats Stats
	if err := d.Store.FindOne(ctx, statsID, &stats); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("uptime: load stats: %w", err)
	}

	c := &Cog{
		sender:    d.Sender,
		scheduler: d.Scheduler,
		alerts:    d.Alerts,
		client:    d.Client,
		db:        d.Store,
		metrics:   d.Metrics,
		logger:    d.Logger.With("cog", "uptime"),
		now:       time.Now,
		cfg:       cfg,
		stats:     stats,
	}
	if err := c.reschedule(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// reschedule installs or removes the ping job to match cfg.
func (c *Cog) reschedule(cfg Config) error {
	if c.scheduler == nil {
		return nil
	}
	if !cfg.Enabled || cfg.URL == "" {
		c.scheduler.RemoveOwner(jobOwner)
		return nil
	}
	_, err := c.scheduler.Replace(jobOwner, fmt.Sprintf("@every %ds", cfg.Interval), func(ctx context.Context) {
		c.Ping(ctx)
	})
	return err
}

// Ping checks the URL once and records the result.
func (c *Cog) Ping(ctx context.Context) Result {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()

	cfg := c.Config()
	if cfg.URL == "" {
		return Result{Error: "no URL configured"}
	}
	res := probe(ctx, c.client, cfg)
	ok := res.OK()
	at := c.now().UTC()

	c.mu.Lock()
	c.stats.TotalRequests++
	c.stats.LastStatusCode = res.StatusCode
	if ok {
		c.stats.SuccessfulRequests++
		c.stats.LastSuccess = &at
	} else {
		c.stats.FailedRequests++
		c.stats.LastFailure = &at
	}
	changed := c.lastOK == nil || *c.lastOK != ok
	wasDown := c.lastOK != nil && !*c.lastOK
	c.lastOK = &ok
	stats := c.stats
	c.mu.Unlock()

	if err := c.db.Upsert(ctx, statsID, stats); err != nil {
		c.logger.Error("failed to save stats", "error", err)
	}
	c.metrics.Ping(ctx, ok, res.Latency)

	if ok {
		c.logger.Debug("ping ok", "url", cfg.URL, "status", res.StatusCode, "latency", res.Latency)
	} else {
		c.logger.Warn("ping failed", "url", cfg.URL, "status", res.StatusCode, "error", res.Error)
	}

	if (ok && cfg.LogSuccesses) || (!ok && cfg.LogFailures) {
		c.logResult(ctx, cfg, res)
	}
	// Alert sinks only hear about transitions: first failure and recovery.
	if changed && (!ok || wasDown) {
		if err := c.alerts.Alert(ctx, connector.OutboundMessage{Embed: resultEmbed(cfg, res, at)}); err != nil {
			c.logger.Warn("uptime alert failed", "error", err)
		}
	}
	return res
}

func (c *Cog) logResult(ctx context.Context, cfg Config, res Result) {
	if cfg.LogChannelID == "" {
		return
	}
	msg := connector.OutboundMessage{ChatID: cfg.LogChannelID, Embed: resultEmbed(cfg, res, c.now())}
	if _, err := c.sender.SendMessage(ctx, msg); err != nil {
		c.logger.Warn("ping log failed", "channel", cfg.LogChannelID, "error", err)
	}
}

func resultEmbed(cfg Config, res Result, at time.Time) *connector.Embed {
	if res.OK() {
		e := &connector.Embed{Title: "✅ HTTP Ping Success", Color: connector.ColorGreen, Timestamp: at}
		return e.AddField("URL", cfg.URL, false).
			AddField("Method", cfg.Method, true).
			AddField("Status Code", strconv.Itoa(res.StatusCode), true)
	}
	e := &connector.Embed{Title: "❌ HTTP Ping Failed", Color: connector.ColorRed, Timestamp: at}
	e.AddField("URL", cfg.URL, false).AddField("Method", cfg.Method, true)
	if res.StatusCode > 0 {
		e.AddField("Status Code", strconv.Itoa(res.StatusCode), true)
	}
	if res.Error != "" {
		e.AddField("Error", res.Error, false)
	}
	return e
}

// Config returns the current configuration.
func (c *Cog) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Stats returns the current counters.
func (c *Cog) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ResetStats zeroes the counters.
func (c *Cog) ResetStats(ctx context.Context) error {
	c.mu.Lock()
	c.stats = Stats{}
	c.mu.Unlock()
	if err := c.db.Upsert(ctx, statsID, Stats{}); err != nil {
		return fmt.Errorf("uptime: save stats: %w", err)
	}
	return nil
}

// update persists a config change and reschedules the job.
func (c *Cog) update(ctx context.Context, fn func(*Config)) (Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.cfg
	next.Headers = maps.Clone(c.cfg.Headers)
	fn(&next)
	if err := c.db.Upsert(ctx, configID, next); err != nil {
		return c.cfg, fmt.Errorf("uptime: save config: %w", err)
	}
	if err := c.reschedule(next); err != nil {
		return c.cfg, err
	}
	c.cfg = next
	return next, nil
}
