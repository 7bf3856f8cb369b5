package ticket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/h1v3-io/modcogs/pkg/protocol"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the ticket tables in db if needed. The connection is
// shared with the document store and is not closed by SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			id             TEXT PRIMARY KEY,
			channel_id     TEXT NOT NULL,
			recipient_id   TEXT NOT NULL,
			recipient_name TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'open',
			created_at     TEXT NOT NULL,
			closed_at      TEXT,
			closed_by      TEXT NOT NULL DEFAULT '',
			close_message  TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS ticket_messages (
			id        TEXT PRIMARY KEY,
			ticket_id TEXT NOT NULL REFERENCES tickets(id),
			author_id TEXT NOT NULL,
			author    TEXT NOT NULL DEFAULT '',
			from_mod  INTEGER NOT NULL DEFAULT 0,
			bot       INTEGER NOT NULL DEFAULT 0,
			content   TEXT NOT NULL,
			timestamp TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_ticket ON ticket_messages(ticket_id);
		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		CREATE INDEX IF NOT EXISTS idx_tickets_channel ON tickets(channel_id);
		CREATE INDEX IF NOT EXISTS idx_tickets_recipient ON tickets(recipient_id, status);
	`)
	if err != nil {
		return fmt.Errorf("ticket store: migrate: %w", err)
	}
	return nil
}

const ticketColumns = "id, channel_id, recipient_id, recipient_name, status, created_at, closed_at, closed_by, close_message"

func (s *SQLiteStore) Save(ctx context.Context, t *protocol.Ticket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			channel_id=excluded.channel_id, recipient_name=excluded.recipient_name, status=excluded.status,
			closed_at=excluded.closed_at, closed_by=excluded.closed_by, close_message=excluded.close_message
	`, t.ID, t.ChannelID, t.RecipientID, t.RecipientName, string(t.Status),
		formatTime(t.CreatedAt), formatTimePtr(t.ClosedAt), t.ClosedBy, t.CloseMessage)
	if err != nil {
		return fmt.Errorf("ticket store: save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*protocol.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("ticket store: get: %w", err)
	}

	msgs, err := s.loadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Messages = msgs
	return t, nil
}

func (s *SQLiteStore) GetByChannel(ctx context.Context, channelID string) (*protocol.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE channel_id = ? ORDER BY created_at DESC LIMIT 1`, channelID)
	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("channel %q: %w", channelID, ErrNotFound)
		}
		return nil, fmt.Errorf("ticket store: get by channel: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) OpenForRecipient(ctx context.Context, recipientID string) (*protocol.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE recipient_id = ? AND status = 'open' ORDER BY created_at DESC LIMIT 1`, recipientID)
	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("recipient %q: %w", recipientID, ErrNotFound)
		}
		return nil, fmt.Errorf("ticket store: open for recipient: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*protocol.Ticket, error) {
	where, args := filter.where()
	query := "SELECT " + ticketColumns + " FROM tickets" + where + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list: %w", err)
	}
	defer rows.Close()

	var tickets []*protocol.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("ticket store: list scan: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := filter.where()
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tickets"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ticket store: count: %w", err)
	}
	return count, nil
}

func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any
	if f.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.RecipientID != "" {
		clauses = append(clauses, "recipient_id = ?")
		args = append(args, f.RecipientID)
	}
	if f.Query != "" {
		clauses = append(clauses, "(recipient_name LIKE ? OR close_message LIKE ?)")
		pattern := "%" + f.Query + "%"
		args = append(args, pattern, pattern)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, ticketID string, msg protocol.Message) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO ticket_messages (id, ticket_id, author_id, author, from_mod, bot, content, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, ticketID, msg.AuthorID, msg.Author, msg.FromMod, msg.Bot, msg.Content, formatTime(msg.Timestamp))
	if err != nil {
		return fmt.Errorf("ticket store: append message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close(ctx context.Context, ticketID, closedBy, message string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE tickets SET status = 'closed', closed_by = ?, close_message = ?, closed_at = ? WHERE id = ? AND status = 'open'`,
		closedBy, message, formatTime(at), ticketID)
	if err != nil {
		return fmt.Errorf("ticket store: close: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("open ticket %q: %w", ticketID, ErrNotFound)
	}
	return nil
}

// --- helpers ---

func (s *SQLiteStore) loadMessages(ctx context.Context, ticketID string) ([]protocol.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, author_id, author, from_mod, bot, content, timestamp FROM ticket_messages WHERE ticket_id = ? ORDER BY timestamp, rowid`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("ticket store: load messages: %w", err)
	}
	defer rows.Close()

	var msgs []protocol.Message
	for rows.Next() {
		var m protocol.Message
		var ts string
		if err := rows.Scan(&m.ID, &m.AuthorID, &m.Author, &m.FromMod, &m.Bot, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("ticket store: scan message: %w", err)
		}
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		m.TicketID = ticketID
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTicket(s scannable) (*protocol.Ticket, error) {
	var t protocol.Ticket
	var status, createdAt string
	var closedAt *string

	err := s.Scan(&t.ID, &t.ChannelID, &t.RecipientID, &t.RecipientName, &status,
		&createdAt, &closedAt, &t.ClosedBy, &t.CloseMessage)
	if err != nil {
		return nil, err
	}

	t.Status = protocol.TicketStatus(status)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if closedAt != nil {
		ct, _ := time.Parse(time.RFC3339Nano, *closedAt)
		t.ClosedAt = &ct
	}
	return &t, nil
}

// timeFormat has fixed-width fractions so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}
