// Package confirm runs timed confirmation prompts: a prompt is published to
// one or more surfaces and resolves exactly once, on the requester's accept
// or decline or when its timeout elapses.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/metrics"
)

// Authorizer decides whether actorID may decide a request made for requesterID.
type Authorizer func(actorID, requesterID string) bool

// RequesterOnly allows only the requester.
func RequesterOnly(actorID, requesterID string) bool { return actorID == requesterID }

// Params describes one confirmation.
type Params struct {
	ThreadID     string
	RequesterID  string
	InitiatorID  string
	Text         string
	CloseMessage string
	// Timeout of zero disables auto-expiry.
	Timeout  time.Duration
	Surfaces []Surface
	Render   Renderer

	AcceptButton  connector.Button
	DeclineButton connector.Button

	OnAccept  Action
	OnDecline Action
	OnTimeout Action
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(w *Workflow) { w.clock = c } }

// WithAuthorizer replaces RequesterOnly.
func WithAuthorizer(a Authorizer) Option { return func(w *Workflow) { w.authorize = a } }

// WithMetrics records started and resolved counts.
func WithMetrics(m *metrics.Metrics) Option { return func(w *Workflow) { w.metrics = m } }

// WithRetention sets how long resolved requests stay queryable.
func WithRetention(d time.Duration) Option { return func(w *Workflow) { w.retention = d } }

// Workflow owns all in-flight confirmation requests. Requests live only in
// memory; a restart drops pending ones without notifying anybody.
type Workflow struct {
	clock     Clock
	authorize Authorizer
	metrics   *metrics.Metrics
	retention time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	requests map[string]*Request
}

// New creates a workflow. Request goroutines run until resolution or Close.
func New(logger *slog.Logger, opts ...Option) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Workflow{
		clock:     SystemClock{},
		authorize: RequesterOnly,
		retention: 15 * time.Minute,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		requests:  make(map[string]*Request),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start publishes the prompt to every surface and starts the decision/timeout
// race. Surfaces that fail to publish are dropped; if none succeed Start
// returns ErrPublishFailed and nothing is scheduled.
func (w *Workflow) Start(ctx context.Context, p Params) (*Request, error) {
	if p.RequesterID == "" {
		return nil, errors.New("confirm: requester is required")
	}
	if len(p.Surfaces) == 0 {
		return nil, fmt.Errorf("%w: no surfaces", ErrPublishFailed)
	}
	if p.Timeout < 0 {
		p.Timeout = 0
	}
	render := p.Render
	if render == nil {
		render = DefaultRender
	}

	r := &Request{
		ID:           uuid.NewString(),
		ThreadID:     p.ThreadID,
		RequesterID:  p.RequesterID,
		InitiatorID:  p.InitiatorID,
		Text:         p.Text,
		CloseMessage: p.CloseMessage,
		CreatedAt:    w.clock.Now(),
		Timeout:      p.Timeout,
		decisions:    make(chan decisionEvent),
		resolved:     make(chan struct{}),
		done:         make(chan struct{}),
		render:       render,
		buttons:      [2]connector.Button{withDefaults(p.AcceptButton, "Accept", connector.ButtonSuccess), withDefaults(p.DeclineButton, "Decline", connector.ButtonDanger)},
		onAccept:     p.OnAccept,
		onDecline:    p.OnDecline,
		onTimeout:    p.OnTimeout,
		outcome:      OutcomePending,
	}

	prompts, err := w.publish(ctx, r, p.Surfaces)
	if err != nil {
		return nil, err
	}
	r.prompts = prompts

	w.mu.Lock()
	w.pruneLocked()
	w.requests[r.ID] = r
	w.mu.Unlock()

	w.metrics.ConfirmationStarted(ctx)
	w.logger.Info("confirmation started",
		"request", r.ID, "thread", r.ThreadID, "requester", r.RequesterID,
		"timeout", r.Timeout, "surfaces", len(prompts))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(r)
	}()
	return r, nil
}

func withDefaults(b connector.Button, label string, style connector.ButtonStyle) connector.Button {
	if b.Label == "" {
		b.Label = label
		b.Style = style
	}
	return b
}

func (w *Workflow) publish(ctx context.Context, r *Request, surfaces []Surface) ([]PublishedPrompt, error) {
	msg := r.message(OutcomePending)

	refs := make([]connector.MessageRef, len(surfaces))
	errs := make([]error, len(surfaces))
	var g errgroup.Group
	for i, s := range surfaces {
		g.Go(func() error {
			refs[i], errs[i] = s.Publish(ctx, msg)
			return nil
		})
	}
	g.Wait()

	var prompts []PublishedPrompt
	var failed []error
	for i, s := range surfaces {
		if errs[i] != nil {
			failed = append(failed, fmt.Errorf("%s: %w", s.Name(), errs[i]))
			continue
		}
		prompts = append(prompts, PublishedPrompt{Surface: s.Name(), MessageRef: refs[i], surface: s})
	}

	if len(prompts) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, errors.Join(failed...))
	}
	if len(failed) > 0 {
		w.logger.Warn("confirmation partially published",
			"published", len(prompts), "failed", len(failed), "error", errors.Join(failed...))
	}
	return prompts, nil
}

// run races the requester's decision against the timeout.
func (w *Workflow) run(r *Request) {
	defer close(r.done)

	var expire <-chan time.Time
	if r.Timeout > 0 {
		t := w.clock.NewTimer(r.Timeout)
		defer t.Stop()
		expire = t.C()
	}

	var outcome Outcome
	for outcome == "" {
		select {
		case ev := <-r.decisions:
			o := OutcomeAccepted
			if ev.Kind == Decline {
				o = OutcomeDeclined
			}
			if !r.commit(o, ev.By, w.clock.Now()) {
				ev.reply <- ErrStaleDecision
				continue
			}
			ev.reply <- nil
			outcome = o
		case <-expire:
			if r.commit(OutcomeExpired, "", w.clock.Now()) {
				outcome = OutcomeExpired
			}
		case <-w.ctx.Done():
			w.logger.Warn("confirmation abandoned", "request", r.ID, "thread", r.ThreadID)
			return
		}
	}

	w.logger.Info("confirmation resolved", "request", r.ID, "outcome", outcome, "by", r.DecidedBy())
	w.metrics.ConfirmationResolved(w.ctx, string(outcome))
	w.finish(r, outcome)
}

// finish runs the terminal action, then syncs every prompt to the outcome.
// Failures are logged and never undo the resolution.
func (w *Workflow) finish(r *Request, o Outcome) {
	ctx := w.ctx

	if action := r.action(o); action != nil {
		if err := action(ctx, r); err != nil {
			w.logger.Error("confirmation action failed", "request", r.ID, "outcome", o, "error", err)
		}
	}

	msg := r.message(o)
	var g errgroup.Group
	for _, p := range r.Prompts() {
		g.Go(func() error {
			if err := p.surface.Update(ctx, p.MessageRef, msg); err != nil {
				w.logger.Warn("confirmation prompt update failed",
					"request", r.ID, "surface", p.Surface, "message", p.MessageID, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

// Submit delivers a decision to request id. It returns ErrUnauthorized for
// anyone the authorizer rejects, ErrStaleDecision once the request has
// resolved, and ErrUnknown for ids this process never started.
func (w *Workflow) Submit(ctx context.Context, id string, d Decision) error {
	r, ok := w.Get(id)
	if !ok {
		return ErrUnknown
	}
	return r.submit(ctx, d, w.authorize)
}

// Get returns request id if it is pending or recently resolved.
func (w *Workflow) Get(id string) (*Request, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.requests[id]
	return r, ok
}

// ForThread returns the pending request for a thread, if any.
func (w *Workflow) ForThread(threadID string) (*Request, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.requests {
		if r.ThreadID == threadID && !r.Outcome().Terminal() {
			return r, true
		}
	}
	return nil, false
}

// List returns snapshots of all tracked requests, oldest first.
func (w *Workflow) List() []Snapshot {
	w.mu.Lock()
	reqs := make([]*Request, 0, len(w.requests))
	for _, r := range w.requests {
		reqs = append(reqs, r)
	}
	w.mu.Unlock()

	out := make([]Snapshot, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Pending returns the number of unresolved requests.
func (w *Workflow) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, r := range w.requests {
		if !r.Outcome().Terminal() {
			n++
		}
	}
	return n
}

// pruneLocked drops requests resolved longer ago than the retention window.
func (w *Workflow) pruneLocked() {
	cutoff := w.clock.Now().Add(-w.retention)
	for id, r := range w.requests {
		r.mu.Lock()
		stale := r.outcome.Terminal() && r.resolvedAt.Before(cutoff)
		r.mu.Unlock()
		if stale {
			select {
			case <-r.done:
				delete(w.requests, id)
			default:
			}
		}
	}
}

// Close abandons pending requests and waits for in-progress terminal
// actions to finish.
func (w *Workflow) Close() {
	w.cancel()
	w.wg.Wait()
}

// DefaultRender shows the prompt text and, once resolved, the outcome.
func DefaultRender(r *Request, o Outcome) connector.OutboundMessage {
	if !o.Terminal() {
		return connector.OutboundMessage{Content: r.Text}
	}
	return connector.OutboundMessage{Content: fmt.Sprintf("%s\n\n(%s)", r.Text, o)}
}
