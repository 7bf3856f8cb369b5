// Package notify fans operator alerts out to external chat sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/h1v3-io/modcogs/internal/connector"
)

// Sink receives alerts. The Slack and Telegram connectors implement it.
type Sink interface {
	Name() string
	Alert(ctx context.Context, msg connector.OutboundMessage) error
}

// Notifier delivers each alert to every sink concurrently.
type Notifier struct {
	sinks  []Sink
	logger *slog.Logger
}

// New creates a notifier. A notifier without sinks drops alerts.
func New(logger *slog.Logger, sinks ...Sink) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sinks: sinks, logger: logger}
}

// Enabled reports whether any sink is configured.
func (n *Notifier) Enabled() bool { return n != nil && len(n.sinks) > 0 }

// Alert sends msg to all sinks. One sink failing does not stop the others;
// the returned error joins every failure.
func (n *Notifier) Alert(ctx context.Context, msg connector.OutboundMessage) error {
	if !n.Enabled() {
		return nil
	}

	errs := make([]error, len(n.sinks))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range n.sinks {
		g.Go(func() error {
			if err := s.Alert(gctx, msg); err != nil {
				n.logger.Warn("alert delivery failed", "sink", s.Name(), "error", err)
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
			}
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}
