package protocol

import "time"

// Message is one relayed line of a ticket conversation.
type Message struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	FromMod   bool      `json:"from_mod"`
	Bot       bool      `json:"bot,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
