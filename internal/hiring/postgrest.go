package hiring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	requestTimeout = 15 * time.Second
	maxErrorBody   = 300
	listColumns    = "id,company_name,position,description,discord_server_link,submitted_at"
)

const schemaHint = "Table schema issue: `guild_id` is unique/primary. Create an `id` primary key and make `guild_id` a normal text column."

// Submission is the part of a request the user edits.
type Submission struct {
	CompanyName       string `json:"company_name"`
	Position          string `json:"position"`
	Description       string `json:"description"`
	DiscordServerLink string `json:"discord_server_link"`
}

// Request is one row of the hiring table.
type Request struct {
	ID        int64  `json:"id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
	GuildName string `json:"guild_name,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Submission
	SubmittedAt time.Time `json:"submitted_at"`
}

// StatusError is a non-success answer from the REST endpoint.
type StatusError struct {
	Code int
	Body string
	Hint string
}

func (e *StatusError) Error() string {
	if e.Hint != "" {
		return e.Hint
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, truncate(e.Body, maxErrorBody))
}

// remote talks to a PostgREST table (Supabase's REST interface).
type remote struct {
	client   *http.Client
	endpoint string
	key      string
}

func newRemote(client *http.Client, cfg Config) *remote {
	return &remote{
		client:   client,
		endpoint: strings.TrimRight(cfg.SupabaseURL, "/") + "/rest/v1/" + cfg.SupabaseTable,
		key:      cfg.SupabaseKey,
	}
}

// Create inserts a row and returns its id, or 0 when the server did not
// return the representation.
func (r *remote) Create(ctx context.Context, req Request) (int64, error) {
	body, err := r.do(ctx, http.MethodPost, nil, req, "return=representation", http.StatusOK, http.StatusCreated)
	if err != nil {
		return 0, err
	}
	var rows []Request
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return 0, nil
	}
	return rows[0].ID, nil
}

// List returns the user's requests in the guild, newest first.
func (r *remote) List(ctx context.Context, guildID, userID string) ([]Request, error) {
	q := url.Values{}
	q.Set("select", listColumns)
	q.Set("guild_id", "eq."+guildID)
	q.Set("user_id", "eq."+userID)
	q.Set("order", "submitted_at.desc")
	body, err := r.do(ctx, http.MethodGet, q, nil, "", http.StatusOK, http.StatusPartialContent)
	if err != nil {
		return nil, err
	}
	var rows []Request
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("hiring: decode requests: %w", err)
	}
	if rows == nil {
		rows = []Request{}
	}
	return rows, nil
}

// Update rewrites the editable fields of a row owned by the user.
func (r *remote) Update(ctx context.Context, id int64, guildID, userID string, sub Submission) error {
	body, err := r.do(ctx, http.MethodPatch, ownerFilter(id, guildID, userID), sub, "return=representation", http.StatusOK, http.StatusNoContent)
	if err != nil {
		return err
	}
	return requireRows(body)
}

// Delete removes a row owned by the user.
func (r *remote) Delete(ctx context.Context, id int64, guildID, userID string) error {
	body, err := r.do(ctx, http.MethodDelete, ownerFilter(id, guildID, userID), nil, "return=representation", http.StatusOK, http.StatusNoContent)
	if err != nil {
		return err
	}
	return requireRows(body)
}

// requireRows fails when a filtered write matched nothing. PostgREST answers
// such writes with success, so the returned representation is the only signal.
func requireRows(body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err == nil && len(rows) == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// DeleteBefore removes rows submitted before cutoff, restricted to guildID
// when it is set, and returns the deleted rows.
func (r *remote) DeleteBefore(ctx context.Context, guildID string, cutoff time.Time) ([]Request, error) {
	q := url.Values{}
	q.Set("submitted_at", "lt."+cutoff.UTC().Format(time.RFC3339))
	if guildID != "" {
		q.Set("guild_id", "eq."+guildID)
	}
	body, err := r.do(ctx, http.MethodDelete, q, nil, "return=representation", http.StatusOK, http.StatusNoContent)
	if err != nil {
		return nil, err
	}
	var rows []Request
	if len(body) > 0 {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("hiring: decode deleted rows: %w", err)
		}
	}
	return rows, nil
}

func ownerFilter(id int64, guildID, userID string) url.Values {
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	q.Set("guild_id", "eq."+guildID)
	q.Set("user_id", "eq."+userID)
	return q
}

func (r *remote) do(ctx context.Context, method string, query url.Values, payload any, prefer string, ok ...int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("hiring: encode payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	target := r.endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("hiring: build request: %w", err)
	}
	req.Header.Set("apikey", r.key)
	req.Header.Set("Authorization", "Bearer "+r.key)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("hiring: read response: %w", err)
	}
	if slices.Contains(ok, resp.StatusCode) {
		return data, nil
	}
	text := string(data)
	se := &StatusError{Code: resp.StatusCode, Body: text}
	if resp.StatusCode == http.StatusConflict && strings.Contains(text, "23505") && strings.Contains(text, "guild_id") {
		se.Hint = schemaHint
	}
	return nil, se
}
