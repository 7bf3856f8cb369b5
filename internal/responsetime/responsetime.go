// Package responsetime measures how long new tickets wait for their first
// staff reply and logs each measurement to a channel.
package responsetime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/h1v3-io/modcogs/internal/command"
	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/metrics"
	"github.com/h1v3-io/modcogs/internal/store"
	"github.com/h1v3-io/modcogs/pkg/protocol"
)

const (
	configID = "responsetime-config"
	stateID  = "responsetime-state"
)

// Config is the persisted cog configuration.
type Config struct {
	LogChannelID string `json:"log_channel_id"`
	Enabled      bool   `json:"enabled"`
	IncludeStats bool   `json:"include_stats"`
}

var DefaultConfig = Config{Enabled: true, IncludeStats: true}

// state survives restarts: tickets still waiting and past measurements.
type state struct {
	Pending       map[string]time.Time `json:"pending"`
	ResponseTimes []float64            `json:"response_times"` // seconds
}

// Stats summarizes recorded response times.
type Stats struct {
	Tracked int     `json:"tracked"`
	Pending int     `json:"pending"`
	Average float64 `json:"average_seconds"`
	Fastest float64 `json:"fastest_seconds"`
	Slowest float64 `json:"slowest_seconds"`
}

// Cog tracks first response times.
type Cog struct {
	sender  connector.Messenger
	db      *store.Partition
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	cfg   Config
	state state
}

// New loads configuration and saved measurements from db.
func New(ctx context.Context, sender connector.Messenger, db *store.Partition, m *metrics.Metrics, logger *slog.Logger) (*Cog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := store.LoadConfig(ctx, db, configID, DefaultConfig)
	if err != nil {
		return nil, fmt.Errorf("responsetime: load config: %w", err)
	}
	st := state{Pending: make(map[string]time.Time)}
	if err := db.FindOne(ctx, stateID, &st); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("responsetime: load state: %w", err)
	}
	if st.Pending == nil {
		st.Pending = make(map[string]time.Time)
	}
	return &Cog{
		sender:  sender,
		db:      db,
		metrics: m,
		logger:  logger.With("cog", "responsetime"),
		now:     time.Now,
		cfg:     cfg,
		state:   st,
	}, nil
}

// OnThreadReady starts the clock for a new ticket.
func (c *Cog) OnThreadReady(ctx context.Context, t *protocol.Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cfg.Enabled {
		return
	}
	c.state.Pending[t.ID] = c.now().UTC()
	c.saveLocked(ctx)
}

// OnThreadReply stops the clock on the first human staff reply.
func (c *Cog) OnThreadReply(ctx context.Context, t *protocol.Ticket, msg protocol.Message) {
	if !msg.FromMod || msg.Bot {
		return
	}

	c.mu.Lock()
	if !c.cfg.Enabled {
		c.mu.Unlock()
		return
	}
	created, ok := c.state.Pending[t.ID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delta := c.now().Sub(created)
	delete(c.state.Pending, t.ID)
	c.state.ResponseTimes = append(c.state.ResponseTimes, delta.Seconds())
	c.saveLocked(ctx)
	cfg := c.cfg
	stats := c.statsLocked()
	c.mu.Unlock()

	c.metrics.FirstResponse(ctx, delta)
	c.logger.Info("first response", "ticket", t.ID, "response_time", delta)
	c.log(ctx, cfg, stats, t, delta)
}

// OnThreadClose forgets tickets closed before anyone answered.
func (c *Cog) OnThreadClose(ctx context.Context, t *protocol.Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.Pending[t.ID]; ok {
		delete(c.state.Pending, t.ID)
		c.saveLocked(ctx)
	}
}

func (c *Cog) log(ctx context.Context, cfg Config, stats Stats, t *protocol.Ticket, delta time.Duration) {
	if cfg.LogChannelID == "" {
		c.logger.Debug("no log channel configured")
		return
	}

	e := &connector.Embed{Title: "📊 Response Time Logged", Color: connector.ColorBlue, Timestamp: c.now()}
	e.AddField("Ticket Creator", fmt.Sprintf("<@%s> (%s)", t.RecipientID, t.RecipientName), true).
		AddField("Ticket ID", "`"+t.ID+"`", true).
		AddField("Response Time", "⏱️ **"+Format(delta)+"**", true).
		AddField("Thread Channel", channelMention(t.ChannelID), false)
	if cfg.IncludeStats && stats.Tracked > 0 {
		e.AddField("Average Response Time",
			fmt.Sprintf("📈 %s (based on %d tickets)", formatAverage(seconds(stats.Average)), stats.Tracked), false)
	}

	if _, err := c.sender.SendMessage(ctx, connector.OutboundMessage{ChatID: cfg.LogChannelID, Embed: e}); err != nil {
		c.logger.Warn("response time log failed", "channel", cfg.LogChannelID, "error", err)
	}
}

// Stats returns the current statistics.
func (c *Cog) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Cog) statsLocked() Stats {
	s := Stats{Tracked: len(c.state.ResponseTimes), Pending: len(c.state.Pending)}
	if s.Tracked == 0 {
		return s
	}
	var sum float64
	for _, v := range c.state.ResponseTimes {
		sum += v
	}
	s.Average = sum / float64(s.Tracked)
	s.Fastest = slices.Min(c.state.ResponseTimes)
	s.Slowest = slices.Max(c.state.ResponseTimes)
	return s
}

// Config returns the current configuration.
func (c *Cog) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *Cog) saveLocked(ctx context.Context) {
	if err := c.db.Upsert(ctx, stateID, c.state); err != nil {
		c.logger.Error("failed to save state", "error", err)
	}
}

func (c *Cog) update(ctx context.Context, fn func(*Config)) (Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.cfg
	fn(&next)
	if err := c.db.Upsert(ctx, configID, next); err != nil {
		return c.cfg, fmt.Errorf("responsetime: save config: %w", err)
	}
	c.cfg = next
	return next, nil
}

// Format renders d as "1h 2m 3s", "2m 3s" or "3s".
func Format(d time.Duration) string {
	total := int64(d / time.Second)
	h, m, s := total/3600, total%3600/60, total%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatAverage drops seconds once the average passes an hour.
func formatAverage(d time.Duration) string {
	total := int64(d / time.Second)
	if h := total / 3600; h > 0 {
		return fmt.Sprintf("%dh %dm", h, total%3600/60)
	}
	return Format(d)
}

func seconds(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

func channelMention(id string) string {
	if id == "" {
		return "N/A"
	}
	return "<#" + id + ">"
}
