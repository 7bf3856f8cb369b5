package confirm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/h1v3-io/modcogs/internal/connector"
)

// Outcome is the state of a confirmation request.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeAccepted Outcome = "accepted"
	OutcomeDeclined Outcome = "declined"
	OutcomeExpired  Outcome = "expired"
)

// Terminal reports whether no further transitions can apply.
func (o Outcome) Terminal() bool { return o != OutcomePending }

// DecisionKind is the choice carried by a Decision.
type DecisionKind int

const (
	Accept DecisionKind = iota + 1
	Decline
)

func (k DecisionKind) String() string {
	switch k {
	case Accept:
		return "accept"
	case Decline:
		return "decline"
	}
	return fmt.Sprintf("DecisionKind(%d)", int(k))
}

// Decision is one button press on a prompt.
type Decision struct {
	Kind DecisionKind
	By   string
}

// ButtonID returns the custom id for a decision button on request id.
func ButtonID(requestID string, kind DecisionKind) string {
	return ButtonPrefix + requestID + ":" + kind.String()
}

// ParseButtonID reverses ButtonID.
func ParseButtonID(customID string) (requestID string, kind DecisionKind, ok bool) {
	rest, found := strings.CutPrefix(customID, ButtonPrefix)
	if !found {
		return "", 0, false
	}
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 {
		return "", 0, false
	}
	switch rest[i+1:] {
	case "accept":
		kind = Accept
	case "decline":
		kind = Decline
	default:
		return "", 0, false
	}
	return rest[:i], kind, true
}

// ButtonPrefix starts the custom id of every prompt button.
const ButtonPrefix = "confirm:"

// PublishedPrompt is one rendered copy of a request.
type PublishedPrompt struct {
	Surface string `json:"surface"`
	connector.MessageRef

	surface Surface
}

// Action is a terminal side effect supplied by the caller.
type Action func(ctx context.Context, r *Request) error

// Renderer produces the prompt body for an outcome. Decision buttons are
// attached by the workflow while the request is pending.
type Renderer func(r *Request, o Outcome) connector.OutboundMessage

// Request is one in-flight confirmation. Its identity fields are immutable
// after Start; outcome state is read through accessors.
type Request struct {
	ID           string
	ThreadID     string
	RequesterID  string
	InitiatorID  string
	Text         string
	CloseMessage string
	CreatedAt    time.Time
	Timeout      time.Duration

	decisions chan decisionEvent
	resolved  chan struct{}
	done      chan struct{}

	render    Renderer
	buttons   [2]connector.Button
	onAccept  Action
	onDecline Action
	onTimeout Action

	mu         sync.Mutex
	outcome    Outcome
	decidedBy  string
	resolvedAt time.Time
	prompts    []PublishedPrompt
}

type decisionEvent struct {
	Decision
	reply chan error
}

// Outcome returns the current state.
func (r *Request) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// DecidedBy returns who resolved the request; empty when pending or expired.
func (r *Request) DecidedBy() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decidedBy
}

// Prompts returns the prompts that were published successfully.
func (r *Request) Prompts() []PublishedPrompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PublishedPrompt(nil), r.prompts...)
}

// Deadline is when the request expires; zero when it never does.
func (r *Request) Deadline() time.Time {
	if r.Timeout <= 0 {
		return time.Time{}
	}
	return r.CreatedAt.Add(r.Timeout)
}

// Done is closed once the terminal action has run and prompts are updated,
// or when the workflow shut down with the request still pending.
func (r *Request) Done() <-chan struct{} { return r.done }

// Wait blocks until Done and returns the final outcome.
func (r *Request) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return OutcomePending, ctx.Err()
	}
	o := r.Outcome()
	if !o.Terminal() {
		return o, ErrAbandoned
	}
	return o, nil
}

// commit applies the single terminal transition. It reports false if the
// request was already resolved.
func (r *Request) commit(o Outcome, by string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcome.Terminal() {
		return false
	}
	r.outcome = o
	r.decidedBy = by
	r.resolvedAt = at
	close(r.resolved)
	return true
}

func (r *Request) submit(ctx context.Context, d Decision, authorize Authorizer) error {
	if d.Kind != Accept && d.Kind != Decline {
		return fmt.Errorf("confirm: invalid decision %v", d.Kind)
	}
	if r.Outcome().Terminal() {
		return ErrStaleDecision
	}
	if !authorize(d.By, r.RequesterID) {
		return ErrUnauthorized
	}

	ev := decisionEvent{Decision: d, reply: make(chan error, 1)}
	select {
	case r.decisions <- ev:
	case <-r.resolved:
		return ErrStaleDecision
	case <-r.done:
		return ErrAbandoned
	case <-ctx.Done():
		return ctx.Err()
	}
	// The run loop replies right after receiving.
	return <-ev.reply
}

func (r *Request) action(o Outcome) Action {
	switch o {
	case OutcomeAccepted:
		return r.onAccept
	case OutcomeDeclined:
		return r.onDecline
	case OutcomeExpired:
		return r.onTimeout
	}
	return nil
}

// message renders the prompt for o, with decision buttons while pending.
func (r *Request) message(o Outcome) connector.OutboundMessage {
	msg := r.render(r, o)
	msg.Buttons = nil
	if !o.Terminal() {
		for i, kind := range []DecisionKind{Accept, Decline} {
			b := r.buttons[i]
			b.ID = ButtonID(r.ID, kind)
			msg.Buttons = append(msg.Buttons, b)
		}
	}
	return msg
}

// Snapshot is a point-in-time copy of a request.
type Snapshot struct {
	ID          string            `json:"id"`
	ThreadID    string            `json:"thread_id"`
	RequesterID string            `json:"requester_id"`
	InitiatorID string            `json:"initiator_id"`
	Text        string            `json:"text"`
	Outcome     Outcome           `json:"outcome"`
	DecidedBy   string            `json:"decided_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Deadline    *time.Time        `json:"deadline,omitempty"`
	ResolvedAt  *time.Time        `json:"resolved_at,omitempty"`
	Prompts     []PublishedPrompt `json:"prompts"`
}

// Snapshot copies the request's current state.
func (r *Request) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		ID:          r.ID,
		ThreadID:    r.ThreadID,
		RequesterID: r.RequesterID,
		InitiatorID: r.InitiatorID,
		Text:        r.Text,
		Outcome:     r.outcome,
		DecidedBy:   r.decidedBy,
		CreatedAt:   r.CreatedAt,
		Prompts:     append([]PublishedPrompt(nil), r.prompts...),
	}
	if r.Timeout > 0 {
		d := r.CreatedAt.Add(r.Timeout)
		s.Deadline = &d
	}
	if !r.resolvedAt.IsZero() {
		at := r.resolvedAt
		s.ResolvedAt = &at
	}
	return s
}

// Errors returned by Start and Submit.
var (
	ErrPublishFailed = errors.New("confirm: prompt could not be published on any surface")
	ErrUnauthorized  = errors.New("confirm: decision not permitted for this user")
	ErrStaleDecision = errors.New("confirm: request already resolved")
	ErrUnknown       = errors.New("confirm: unknown request")
	ErrAbandoned     = errors.New("confirm: request abandoned at shutdown")
)
