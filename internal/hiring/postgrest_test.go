package hiring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeTable is an in-memory PostgREST table supporting the eq./lt. filters
// the cog uses.
type fakeTable struct {
	mu       sync.Mutex
	nextID   int64
	rows     []Request
	calls    []string // "METHOD prefer"
	headers  http.Header
	failCode int
	failBody string
}

func (f *fakeTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.Header.Get("Prefer"))
	f.headers = r.Header.Clone()

	if r.URL.Path != "/rest/v1/hiring_submissions" {
		http.Error(w, `{"message":"relation does not exist"}`, http.StatusNotFound)
		return
	}
	if f.failCode != 0 {
		w.WriteHeader(f.failCode)
		w.Write([]byte(f.failBody))
		return
	}

	q := r.URL.Query()
	match := func(row Request) bool {
		if v := q.Get("id"); v != "" && "eq."+strconv.FormatInt(row.ID, 10) != v {
			return false
		}
		if v := q.Get("guild_id"); v != "" && "eq."+row.GuildID != v {
			return false
		}
		if v := q.Get("user_id"); v != "" && "eq."+row.UserID != v {
			return false
		}
		if v := q.Get("submitted_at"); v != "" {
			cutoff, _ := time.Parse(time.RFC3339, strings.TrimPrefix(v, "lt."))
			if !row.SubmittedAt.Before(cutoff) {
				return false
			}
		}
		return true
	}
	representation := strings.Contains(r.Header.Get("Prefer"), "return=representation")

	switch r.Method {
	case http.MethodPost:
		var row Request
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nextID++
		row.ID = f.nextID
		f.rows = append(f.rows, row)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]Request{row})
	case http.MethodGet:
		out := []Request{}
		for _, row := range f.rows {
			if match(row) {
				out = append(out, row)
			}
		}
		slices.SortFunc(out, func(a, b Request) int { return b.SubmittedAt.Compare(a.SubmittedAt) })
		json.NewEncoder(w).Encode(out)
	case http.MethodPatch:
		var sub Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := []Request{}
		for i := range f.rows {
			if match(f.rows[i]) {
				f.rows[i].Submission = sub
				out = append(out, f.rows[i])
			}
		}
		f.respond(w, representation, out)
	case http.MethodDelete:
		out, kept := []Request{}, f.rows[:0]
		for _, row := range f.rows {
			if match(row) {
				out = append(out, row)
			} else {
				kept = append(kept, row)
			}
		}
		f.rows = kept
		f.respond(w, representation, out)
	}
}

func (f *fakeTable) respond(w http.ResponseWriter, representation bool, rows []Request) {
	if !representation {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	json.NewEncoder(w).Encode(rows)
}

func (f *fakeTable) insert(row Request) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	row.ID = f.nextID
	f.rows = append(f.rows, row)
	return row.ID
}

func (f *fakeTable) all() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.rows)
}

func (f *fakeTable) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, method+" ") {
			n++
		}
	}
	return n
}

func (f *fakeTable) fail(code int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCode, f.failBody = code, body
}

func newTestRemote(t *testing.T) (*remote, *fakeTable) {
	t.Helper()
	table := &fakeTable{}
	srv := httptest.NewServer(table)
	t.Cleanup(srv.Close)
	return newRemote(srv.Client(), Config{SupabaseURL: srv.URL + "/", SupabaseKey: "service-key", SupabaseTable: "hiring_submissions"}), table
}

var acme = Submission{
	CompanyName:       "Acme",
	Position:          "Moderator",
	Description:       "Keep the peace.",
	DiscordServerLink: "https://discord.gg/acme",
}

func TestRemoteHeaders(t *testing.T) {
	r, table := newTestRemote(t)
	id, err := r.Create(context.Background(), Request{GuildID: "g-1", UserID: "u-1", Submission: acme, SubmittedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Errorf("id = %d", id)
	}
	h := table.headers
	if h.Get("apikey") != "service-key" || h.Get("Authorization") != "Bearer service-key" {
		t.Errorf("auth headers = %v", h)
	}
	if h.Get("Prefer") != "return=representation" || h.Get("Content-Type") != "application/json" {
		t.Errorf("headers = %v", h)
	}
}

func TestRemoteListFiltersAndOrders(t *testing.T) {
	r, table := newTestRemote(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	table.insert(Request{GuildID: "g-1", UserID: "u-1", Submission: Submission{CompanyName: "old"}, SubmittedAt: base})
	table.insert(Request{GuildID: "g-1", UserID: "u-1", Submission: Submission{CompanyName: "new"}, SubmittedAt: base.Add(time.Hour)})
	table.insert(Request{GuildID: "g-1", UserID: "u-2", Submission: Submission{CompanyName: "other user"}, SubmittedAt: base})
	table.insert(Request{GuildID: "g-2", UserID: "u-1", Submission: Submission{CompanyName: "other guild"}, SubmittedAt: base})

	rows, err := r.List(context.Background(), "g-1", "u-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].CompanyName != "new" || rows[1].CompanyName != "old" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestRemoteWritesRequireOwner(t *testing.T) {
	r, table := newTestRemote(t)
	ctx := context.Background()
	id := table.insert(Request{GuildID: "g-1", UserID: "u-1", Submission: acme})

	if err := r.Update(ctx, id, "g-1", "u-2", Submission{CompanyName: "Hijacked"}); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("foreign update err = %v", err)
	}
	if err := r.Delete(ctx, id, "g-2", "u-1"); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("foreign delete err = %v", err)
	}
	if rows := table.all(); len(rows) != 1 || rows[0].CompanyName != "Acme" {
		t.Fatalf("rows = %+v", rows)
	}

	if err := r.Update(ctx, id, "g-1", "u-1", Submission{CompanyName: "Acme Corp"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(ctx, id, "g-1", "u-1"); err != nil {
		t.Fatal(err)
	}
	if len(table.all()) != 0 {
		t.Error("row not deleted")
	}
}

func TestRemoteErrors(t *testing.T) {
	r, table := newTestRemote(t)
	ctx := context.Background()

	table.fail(http.StatusConflict, `{"code":"23505","details":"Key (guild_id)=(g-1) already exists."}`)
	_, err := r.Create(ctx, Request{GuildID: "g-1"})
	if err == nil || err.Error() != schemaHint {
		t.Errorf("conflict err = %v", err)
	}

	table.fail(http.StatusInternalServerError, strings.Repeat("x", 500))
	_, err = r.List(ctx, "g-1", "u-1")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Fatalf("err = %v", err)
	}
	if want := "HTTP 500: " + strings.Repeat("x", 300); err.Error() != want {
		t.Errorf("err = %q", err.Error())
	}
}

func TestRemoteListUndecodableBody(t *testing.T) {
	r, table := newTestRemote(t)
	table.fail(http.StatusOK, "<html>maintenance</html>")

	rows, err := r.List(context.Background(), "g-1", "u-1")
	if err == nil || !strings.Contains(err.Error(), "decode requests") {
		t.Errorf("rows = %v, err = %v", rows, err)
	}
}

func TestRemoteDeleteBefore(t *testing.T) {
	r, table := newTestRemote(t)
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	table.insert(Request{GuildID: "g-1", UserID: "u-1", SubmittedAt: now.Add(-10 * 24 * time.Hour)})
	table.insert(Request{GuildID: "g-2", UserID: "u-1", SubmittedAt: now.Add(-10 * 24 * time.Hour)})
	table.insert(Request{GuildID: "g-1", UserID: "u-2", SubmittedAt: now.Add(-time.Hour)})

	rows, err := r.DeleteBefore(context.Background(), "g-1", now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != 1 || rows[0].UserID != "u-1" {
		t.Errorf("deleted = %+v", rows)
	}
	if len(table.all()) != 2 {
		t.Errorf("remaining = %+v", table.all())
	}
}
