// Package hiring collects hiring posts through a button panel, stores them in
// a Supabase table and mirrors each one as an embed in an output channel.
package hiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/metrics"
	"github.com/h1v3-io/modcogs/internal/scheduler"
	"github.com/h1v3-io/modcogs/internal/store"
)

const (
	configID     = "hiring-config"
	messageMapID = "hiring-request-message-map"
	expiryOwner  = "hiring-expiry"
	listTTL      = 30 * time.Second

	// MaxOpenRequests is how many requests one user may have per guild.
	MaxOpenRequests = 3
	// MaxExpireDays bounds ExpireAfterDays.
	MaxExpireDays = 3650
)

var (
	ErrLimitReached   = errors.New("hiring: open request limit reached")
	ErrRejected       = errors.New("hiring: submission rejected")
	ErrNotConfigured  = errors.New("hiring: supabase is not configured")
	ErrNoOutput       = errors.New("hiring: output channel is not configured")
	ErrNoPanelChannel = errors.New("hiring: panel channel is not configured")

	// ErrRequestNotFound means no row owned by the user matched.
	ErrRequestNotFound = errors.New("request not found")
)

// rejection is a moderation failure whose text is shown to the submitter.
type rejection string

func (r rejection) Error() string        { return string(r) }
func (r rejection) Is(target error) bool { return target == ErrRejected }

const (
	msgBadInvite = "Please provide a valid Discord server invite link (discord.gg or discord.com/invite)."
	msgBlocked   = "Your submission contains content that is not allowed here."
)

// Config is the persisted cog configuration.
type Config struct {
	PanelChannelID           string   `json:"panel_channel_id"`
	PanelMessage             string   `json:"panel_message"`
	PanelMessageID           string   `json:"panel_message_id"`
	OutputChannelID          string   `json:"output_channel_id"`
	UsePanelChannelForOutput bool     `json:"use_panel_channel_for_output"`
	SupabaseURL              string   `json:"supabase_url"`
	SupabaseKey              string   `json:"supabase_key"`
	SupabaseTable            string   `json:"supabase_table"`
	BlockedTerms             []string `json:"blocked_terms"`
	ExpireAfterDays          int      `json:"expire_after_days"`
}

const defaultPanelMessage = "Click the button below to submit a hiring post."

var DefaultConfig = Config{
	PanelMessage:  defaultPanelMessage,
	SupabaseTable: "hiring_submissions",
	BlockedTerms:  []string{},
}

type messageMap struct {
	Map map[string]connector.MessageRef `json:"map"`
}

// Author identifies who is acting on a request.
type Author struct {
	GuildID   string
	GuildName string
	UserID    string
	Username  string
}

// Deps are the collaborators of the cog. Scheduler and Metrics may be nil.
// GuildID, when set, limits expiry to that guild's rows.
type Deps struct {
	Sender    connector.Messenger
	Scheduler *scheduler.Scheduler
	Client    *http.Client
	Store     *store.Partition
	Metrics   *metrics.Metrics
	GuildID   string
	Logger    *slog.Logger
}

// Cog owns the hiring panel and the request lifecycle.
type Cog struct {
	sender    connector.Messenger
	scheduler *scheduler.Scheduler
	client    *http.Client
	db        *store.Partition
	metrics   *metrics.Metrics
	guildID   string
	logger    *slog.Logger
	now       func() time.Time
	lists     *ristretto.Cache[string, []Request]

	postMu sync.Mutex // posting and panel reposts

	mu     sync.Mutex
	cfg    Config
	posted map[string]connector.MessageRef
}

// New loads configuration and the posted-message map.
func New(ctx context.Context, d Deps) (*Cog, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Client == nil {
		d.Client = http.DefaultClient
	}
	cfg, err := store.LoadConfig(ctx, d.Store, configID, DefaultConfig)
	if err != nil {
		return nil, fmt.Errorf("hiring: load config: %w", err)
	}
	var mm messageMap
	if err := d.Store.FindOne(ctx, messageMapID, &mm); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("hiring: load message map: %w", err)
	}
	if mm.Map == nil {
		mm.Map = make(map[string]connector.MessageRef)
	}

	lists, err := ristretto.NewCache(&ristretto.Config[string, []Request]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("hiring: create cache: %w", err)
	}

	c := &Cog{
		sender:    d.Sender,
		scheduler: d.Scheduler,
		client:    d.Client,
		db:        d.Store,
		metrics:   d.Metrics,
		guildID:   d.GuildID,
		logger:    d.Logger.With("cog", "hiring"),
		now:       time.Now,
		lists:     lists,
		cfg:       cfg,
		posted:    mm.Map,
	}
	if err := c.reschedule(cfg); err != nil {
		lists.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the list cache.
func (c *Cog) Close() { c.lists.Close() }

// Config returns the current configuration.
func (c *Cog) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Ready reports whether the remote table is configured.
func (c *Cog) Ready() bool {
	cfg := c.Config()
	return cfg.SupabaseURL != "" && cfg.SupabaseKey != "" && cfg.SupabaseTable != ""
}

func (c *Cog) remote() (*remote, error) {
	if !c.Ready() {
		return nil, ErrNotConfigured
	}
	return newRemote(c.client, c.Config()), nil
}

// outputChannel is the panel channel when it doubles as output, else the
// output channel. Empty when neither is set.
func (c *Cog) outputChannel() string {
	cfg := c.Config()
	if cfg.UsePanelChannelForOutput && cfg.PanelChannelID != "" {
		return cfg.PanelChannelID
	}
	return cfg.OutputChannelID
}

func listKey(guildID, userID string) string { return guildID + "/" + userID }

// List returns the user's open requests, newest first. Results are cached
// briefly per guild and user.
func (c *Cog) List(ctx context.Context, guildID, userID string) ([]Request, error) {
	key := listKey(guildID, userID)
	if rows, ok := c.lists.Get(key); ok {
		return slices.Clone(rows), nil
	}
	r, err := c.remote()
	if err != nil {
		return nil, err
	}
	rows, err := r.List(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	c.lists.SetWithTTL(key, rows, 1, listTTL)
	c.lists.Wait()
	return slices.Clone(rows), nil
}

// OpenCount returns how many requests the user has. A failed lookup counts
// as the limit so nobody can exceed it while the table is unreachable.
func (c *Cog) OpenCount(ctx context.Context, guildID, userID string) int {
	rows, err := c.List(ctx, guildID, userID)
	if err != nil {
		c.logger.Warn("failed to count requests", "guild", guildID, "user", userID, "error", err)
		return MaxOpenRequests
	}
	return len(rows)
}

func (c *Cog) invalidate(guildID, userID string) {
	c.lists.Del(listKey(guildID, userID))
}

func (c *Cog) validate(sub Submission) error {
	if !IsDiscordInvite(sub.DiscordServerLink) {
		return rejection(msgBadInvite)
	}
	if term, found := blockedTerm(sub, c.Config().BlockedTerms); found {
		c.logger.Info("submission blocked", "term", term)
		return rejection(msgBlocked)
	}
	return nil
}

// Create stores a new request and returns its id.
func (c *Cog) Create(ctx context.Context, a Author, sub Submission) (int64, error) {
	if err := c.validate(sub); err != nil {
		return 0, err
	}
	r, err := c.remote()
	if err != nil {
		return 0, err
	}
	if c.OpenCount(ctx, a.GuildID, a.UserID) >= MaxOpenRequests {
		return 0, ErrLimitReached
	}
	id, err := r.Create(ctx, Request{
		GuildID:     a.GuildID,
		GuildName:   a.GuildName,
		UserID:      a.UserID,
		Username:    a.Username,
		Submission:  sub,
		SubmittedAt: c.now().UTC(),
	})
	if err != nil {
		return 0, err
	}
	c.invalidate(a.GuildID, a.UserID)
	c.metrics.HiringWrite(ctx, "create")
	c.logger.Info("request created", "id", id, "guild", a.GuildID, "user", a.UserID)
	return id, nil
}

// Update rewrites a request the author owns.
func (c *Cog) Update(ctx context.Context, a Author, id int64, sub Submission) error {
	if err := c.validate(sub); err != nil {
		return err
	}
	r, err := c.remote()
	if err != nil {
		return err
	}
	if err := r.Update(ctx, id, a.GuildID, a.UserID, sub); err != nil {
		return err
	}
	c.invalidate(a.GuildID, a.UserID)
	c.metrics.HiringWrite(ctx, "update")
	c.logger.Info("request updated", "id", id, "user", a.UserID)
	return nil
}

// Delete removes a request the author owns along with its posted embed.
func (c *Cog) Delete(ctx context.Context, a Author, id int64) error {
	r, err := c.remote()
	if err != nil {
		return err
	}
	if err := r.Delete(ctx, id, a.GuildID, a.UserID); err != nil {
		return err
	}
	c.invalidate(a.GuildID, a.UserID)
	c.metrics.HiringWrite(ctx, "delete")
	c.removePosted(ctx, id)
	c.logger.Info("request deleted", "id", id, "user", a.UserID)
	return nil
}

// Expire deletes requests older than the configured age and their embeds.
func (c *Cog) Expire(ctx context.Context) (int, error) {
	days := c.Config().ExpireAfterDays
	if days <= 0 {
		return 0, nil
	}
	r, err := c.remote()
	if err != nil {
		return 0, err
	}
	days = min(days, MaxExpireDays)
	cutoff := c.now().Add(-time.Duration(days) * 24 * time.Hour)
	rows, err := r.DeleteBefore(ctx, c.guildID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("hiring: expire: %w", err)
	}
	for _, row := range rows {
		c.invalidate(row.GuildID, row.UserID)
		c.removePosted(ctx, row.ID)
		c.metrics.HiringWrite(ctx, "expire")
	}
	return len(rows), nil
}

// Post publishes the request embed, replacing the one posted earlier for
// the same id, and moves the panel below it when they share a channel.
func (c *Cog) Post(ctx context.Context, a Author, id int64, sub Submission) error {
	c.postMu.Lock()
	defer c.postMu.Unlock()

	channel := c.outputChannel()
	if channel == "" {
		return ErrNoOutput
	}
	if id != 0 {
		c.removePosted(ctx, id)
	}
	ref, err := c.sender.SendMessage(ctx, connector.OutboundMessage{ChatID: channel, Embed: hiringEmbed(a, sub, c.now())})
	if err != nil {
		return err
	}
	if id != 0 {
		c.mu.Lock()
		c.posted[strconv.FormatInt(id, 10)] = ref
		c.mu.Unlock()
		c.savePosted(ctx)
	}
	if c.Config().UsePanelChannelForOutput {
		if err := c.sendPanel(ctx); err != nil {
			c.logger.Warn("failed to repost panel", "error", err)
		}
	}
	return nil
}

// PostedMessage returns where a request's embed was posted.
func (c *Cog) PostedMessage(id int64) (connector.MessageRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.posted[strconv.FormatInt(id, 10)]
	return ref, ok
}

func (c *Cog) removePosted(ctx context.Context, id int64) {
	key := strconv.FormatInt(id, 10)
	c.mu.Lock()
	ref, ok := c.posted[key]
	delete(c.posted, key)
	c.mu.Unlock()
	if !ok {
		return
	}
	if err := c.sender.DeleteMessage(ctx, ref); err != nil {
		c.logger.Debug("posted request already gone", "id", id, "error", err)
	}
	c.savePosted(ctx)
}

func (c *Cog) savePosted(ctx context.Context) {
	c.mu.Lock()
	doc := messageMap{Map: maps.Clone(c.posted)}
	c.mu.Unlock()
	if err := c.db.Upsert(ctx, messageMapID, doc); err != nil {
		c.logger.Error("failed to save message map", "error", err)
	}
}

// SendPanel posts the panel, deleting the previous one.
func (c *Cog) SendPanel(ctx context.Context) error {
	c.postMu.Lock()
	defer c.postMu.Unlock()
	return c.sendPanel(ctx)
}

func (c *Cog) sendPanel(ctx context.Context) error {
	cfg := c.Config()
	if cfg.PanelChannelID == "" {
		return ErrNoPanelChannel
	}
	if cfg.PanelMessageID != "" {
		old := connector.MessageRef{ChatID: cfg.PanelChannelID, MessageID: cfg.PanelMessageID}
		if err := c.sender.DeleteMessage(ctx, old); err != nil {
			c.logger.Debug("old panel already gone", "error", err)
		}
	}
	text := cfg.PanelMessage
	if text == "" {
		text = defaultPanelMessage
	}
	ref, err := c.sender.SendMessage(ctx, connector.OutboundMessage{
		ChatID:  cfg.PanelChannelID,
		Embed:   &connector.Embed{Title: "Hiring Request Menu", Description: text, Color: connector.ColorBlurple},
		Buttons: []connector.Button{{ID: PanelButtonID, Label: "Hiring Request Menu", Style: connector.ButtonPrimary}},
	})
	if err != nil {
		return fmt.Errorf("hiring: send panel: %w", err)
	}
	_, err = c.update(ctx, func(cfg *Config) { cfg.PanelMessageID = ref.MessageID })
	return err
}

func hiringEmbed(a Author, sub Submission, at time.Time) *connector.Embed {
	e := &connector.Embed{Title: "Now Hiring", Color: connector.ColorBlue, Timestamp: at}
	return e.AddField("Submitted By", fmt.Sprintf("<@%s> (%s)", a.UserID, a.Username), false).
		AddField("Company Name", sub.CompanyName, false).
		AddField("Position", sub.Position, false).
		AddField("Description", sub.Description, false).
		AddField("Discord Server Link", sub.DiscordServerLink, false)
}

// reschedule installs or removes the expiry job to match cfg.
func (c *Cog) reschedule(cfg Config) error {
	if c.scheduler == nil {
		return nil
	}
	if cfg.ExpireAfterDays <= 0 {
		c.scheduler.RemoveOwner(expiryOwner)
		return nil
	}
	_, err := c.scheduler.Replace(expiryOwner, "@hourly", func(ctx context.Context) {
		n, err := c.Expire(ctx)
		if err != nil {
			c.logger.Error("expiry failed", "error", err)
			return
		}
		if n > 0 {
			c.logger.Info("expired requests", "count", n)
		}
	})
	return err
}

// update persists a config change and reschedules expiry.
func (c *Cog) update(ctx context.Context, fn func(*Config)) (Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.cfg
	next.BlockedTerms = slices.Clone(c.cfg.BlockedTerms)
	fn(&next)
	if err := c.db.Upsert(ctx, configID, next); err != nil {
		return c.cfg, fmt.Errorf("hiring: save config: %w", err)
	}
	if err := c.reschedule(next); err != nil {
		return c.cfg, err
	}
	c.cfg = next
	return next, nil
}
