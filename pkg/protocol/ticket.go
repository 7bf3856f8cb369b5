package protocol

import "time"

// TicketStatus represents the lifecycle state of a modmail ticket.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// Ticket is a support conversation between one recipient and the staff team.
// Staff talk in a guild channel; the recipient talks through direct messages.
type Ticket struct {
	ID            string       `json:"id"`
	ChannelID     string       `json:"channel_id"`
	RecipientID   string       `json:"recipient_id"`
	RecipientName string       `json:"recipient_name"`
	Status        TicketStatus `json:"status"`
	Messages      []Message    `json:"messages,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	ClosedAt      *time.Time   `json:"closed_at,omitempty"`
	ClosedBy      string       `json:"closed_by,omitempty"`
	CloseMessage  string       `json:"close_message,omitempty"`
}

// IsOpen reports whether the ticket still accepts replies.
func (t *Ticket) IsOpen() bool {
	return t.Status == TicketOpen
}
