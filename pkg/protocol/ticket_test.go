package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTicketIsOpen(t *testing.T) {
	tk := &Ticket{Status: TicketOpen}
	if !tk.IsOpen() {
		t.Error("expected open ticket")
	}
	tk.Status = TicketClosed
	if tk.IsOpen() {
		t.Error("expected closed ticket")
	}
}

func TestTicketJSONOmitsEmptyClose(t *testing.T) {
	tk := Ticket{
		ID:          "t1",
		ChannelID:   "c1",
		RecipientID: "u1",
		Status:      TicketOpen,
		CreatedAt:   time.Now(),
	}
	data, err := json.Marshal(tk)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, key := range []string{"closed_at", "closed_by", "close_message", "messages"} {
		if strings.Contains(s, key) {
			t.Errorf("expected %q to be omitted: %s", key, s)
		}
	}
}
