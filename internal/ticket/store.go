package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/h1v3-io/modcogs/pkg/protocol"
)

// ErrNotFound is returned when no ticket matches.
var ErrNotFound = errors.New("ticket: not found")

// Store is the persistence interface for tickets and their messages.
type Store interface {
	// Save creates or updates a ticket.
	Save(ctx context.Context, t *protocol.Ticket) error
	// Get retrieves a ticket by ID, including its messages.
	Get(ctx context.Context, id string) (*protocol.Ticket, error)
	// GetByChannel returns the ticket bound to a staff channel.
	GetByChannel(ctx context.Context, channelID string) (*protocol.Ticket, error)
	// OpenForRecipient returns the recipient's open ticket, if any.
	OpenForRecipient(ctx context.Context, recipientID string) (*protocol.Ticket, error)
	// List returns tickets matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*protocol.Ticket, error)
	// Count returns the number of tickets matching the filter.
	Count(ctx context.Context, filter Filter) (int, error)
	// AppendMessage adds a message to a ticket.
	AppendMessage(ctx context.Context, ticketID string, msg protocol.Message) error
	// Close marks a ticket as closed.
	Close(ctx context.Context, ticketID, closedBy, message string, at time.Time) error
}

// Filter constrains ticket list queries.
type Filter struct {
	Status      *protocol.TicketStatus
	RecipientID string
	Query       string // text search on recipient name and close message
	Limit       int    // 0 = no limit
}
