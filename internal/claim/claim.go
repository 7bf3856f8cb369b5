// Package claim lets staff mark a ticket as theirs by appending their name to
// the ticket channel's name.
package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/h1v3-io/modcogs/internal/command"
	"github.com/h1v3-io/modcogs/internal/store"
)

const maxChannelName = 100

var (
	ErrAlreadyClaimed = errors.New("claim: thread already claimed")
	ErrNotClaimed     = errors.New("claim: thread not claimed")
)

// Record is the persisted claim of one ticket channel.
type Record struct {
	ThreadID     string `json:"thread_id"`
	OriginalName string `json:"original_name"`
	Claimer      string `json:"claimer"`
}

// Channels renames ticket channels.
type Channels interface {
	ChannelName(ctx context.Context, channelID string) (string, error)
	RenameChannel(ctx context.Context, channelID, name string) error
}

// Cog implements claim and clearclaim.
type Cog struct {
	channels Channels
	db       *store.Partition
	logger   *slog.Logger

	mu sync.Mutex
}

func New(channels Channels, db *store.Partition, logger *slog.Logger) *Cog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cog{channels: channels, db: db, logger: logger.With("cog", "claim")}
}

// Commands returns the cog's commands.
func (c *Cog) Commands() []*command.Command {
	return []*command.Command{
		{
			Name:       "claim",
			Usage:      "[name]",
			Help:       "Claim the thread, appending your name (or the given one) to the channel name.",
			Level:      command.Supporter,
			ThreadOnly: true,
			Run: func(ctx context.Context, call *command.Call) error {
				name := call.Args
				if name == "" {
					name = call.Message.SenderName
				}
				claimer, err := c.Claim(ctx, call.Ticket.ChannelID, name)
				if errors.Is(err, ErrAlreadyClaimed) {
					return call.Reply(ctx, "This thread is already claimed.")
				}
				if err != nil {
					return err
				}
				return call.Reply(ctx, fmt.Sprintf("Thread claimed as **%s**", claimer))
			},
		},
		{
			Name:       "clearclaim",
			Aliases:    []string{"unclaim"},
			Help:       "Remove the claim and restore the channel name.",
			Level:      command.Supporter,
			ThreadOnly: true,
			Run: func(ctx context.Context, call *command.Call) error {
				err := c.Unclaim(ctx, call.Ticket.ChannelID)
				if errors.Is(err, ErrNotClaimed) {
					return call.Reply(ctx, "This thread is not claimed.")
				}
				if err != nil {
					return err
				}
				return call.Reply(ctx, "Thread unclaimed.")
			},
		},
	}
}

// Claim renames channelID to "<name>-<claimer>" and records the claim. It
// returns the claimer name as written into the channel name.
func (c *Cog) Claim(ctx context.Context, channelID, claimer string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.get(ctx, channelID); err == nil {
		return "", ErrAlreadyClaimed
	} else if !errors.Is(err, ErrNotClaimed) {
		return "", err
	}

	claimer = strings.ReplaceAll(claimer, " ", "-")
	original, err := c.channels.ChannelName(ctx, channelID)
	if err != nil {
		return "", fmt.Errorf("claim: channel name: %w", err)
	}
	if err := c.channels.RenameChannel(ctx, channelID, truncate(original+"-"+claimer, maxChannelName)); err != nil {
		return "", fmt.Errorf("claim: rename: %w", err)
	}

	rec := Record{ThreadID: channelID, OriginalName: original, Claimer: claimer}
	if err := c.db.Upsert(ctx, channelID, rec); err != nil {
		return "", fmt.Errorf("claim: save: %w", err)
	}
	c.logger.Info("thread claimed", "channel", channelID, "claimer", claimer)
	return claimer, nil
}

// Unclaim restores the original channel name and forgets the claim.
func (c *Cog) Unclaim(ctx context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.get(ctx, channelID)
	if err != nil {
		return err
	}
	if err := c.channels.RenameChannel(ctx, channelID, rec.OriginalName); err != nil {
		return fmt.Errorf("claim: rename: %w", err)
	}
	if err := c.db.Delete(ctx, channelID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("claim: delete: %w", err)
	}
	c.logger.Info("thread unclaimed", "channel", channelID, "claimer", rec.Claimer)
	return nil
}

// Get returns the claim on channelID, or ErrNotClaimed.
func (c *Cog) Get(ctx context.Context, channelID string) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(ctx, channelID)
}

func (c *Cog) get(ctx context.Context, channelID string) (Record, error) {
	var rec Record
	err := c.db.FindOne(ctx, channelID, &rec)
	if errors.Is(err, store.ErrNotFound) {
		return rec, ErrNotClaimed
	}
	return rec, err
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
