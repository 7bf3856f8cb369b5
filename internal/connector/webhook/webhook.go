// Package webhook accepts alerts from external monitors over HTTP and
// relays them to the operator alert sinks.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/h1v3-io/modcogs/internal/connector"
)

// Endpoint authenticates one source. Secret selects HMAC-SHA256 over the
// body; otherwise BearerToken is checked; with neither the endpoint is open.
type Endpoint struct {
	Secret       string
	BearerToken  string
	LogChannelID string // also post alerts here when set
}

// Alert is the request body.
type Alert struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Severity string `json:"severity,omitempty"` // info, warning or critical
	URL      string `json:"url,omitempty"`
}

// Alerter delivers an alert to the configured sinks.
type Alerter interface {
	Alert(ctx context.Context, msg connector.OutboundMessage) error
}

// Handler serves POST /api/webhook/{name}.
type Handler struct {
	endpoints map[string]Endpoint
	alerts    Alerter
	channels  connector.Messenger
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a handler. channels may be nil when no endpoint posts to a
// log channel.
func New(endpoints map[string]Endpoint, alerts Alerter, channels connector.Messenger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		endpoints: endpoints,
		alerts:    alerts,
		channels:  channels,
		logger:    logger.With("component", "webhook"),
		now:       time.Now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	name := lastSegment(r.URL.Path)
	ep, ok := h.endpoints[name]
	if !ok || name == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown webhook endpoint: " + name})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	if !authenticate(r, ep, body) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var a Alert
	if err := json.Unmarshal(body, &a); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	if a.Content == "" && a.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title or content is required"})
		return
	}

	msg := connector.OutboundMessage{Embed: h.embed(name, a)}
	var errs []error
	if err := h.alerts.Alert(r.Context(), msg); err != nil {
		errs = append(errs, err)
	}
	if ep.LogChannelID != "" && h.channels != nil {
		msg.ChatID = ep.LogChannelID
		if _, err := h.channels.SendMessage(r.Context(), msg); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		h.logger.Error("webhook relay failed", "endpoint", name, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "relay failed"})
		return
	}

	h.logger.Info("webhook alert relayed", "endpoint", name, "severity", a.Severity)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) embed(source string, a Alert) *connector.Embed {
	title := a.Title
	if title == "" {
		title = "Alert from " + source
	}
	color := connector.ColorBlue
	switch strings.ToLower(a.Severity) {
	case "critical", "error":
		color, title = connector.ColorRed, "🚨 "+title
	case "warning", "warn":
		color, title = connector.ColorOrange, "⚠️ "+title
	}
	e := &connector.Embed{Title: title, Description: a.Content, Color: color, Footer: "via webhook " + source, Timestamp: h.now()}
	if a.URL != "" {
		e.AddField("Link", a.URL, false)
	}
	return e
}

func authenticate(r *http.Request, ep Endpoint, body []byte) bool {
	if ep.Secret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if sig == "" {
			sig = r.Header.Get("X-Signature-256")
		}
		return verifyHMAC(body, ep.Secret, sig)
	}
	if ep.BearerToken != "" {
		return r.Header.Get("Authorization") == "Bearer "+ep.BearerToken
	}
	return true
}

// verifyHMAC checks a "sha256=<hex>" signature.
func verifyHMAC(body []byte, secret, signature string) bool {
	if signature == "" {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

func lastSegment(path string) string {
	path = strings.TrimSuffix(path, "/")
	return path[strings.LastIndex(path, "/")+1:]
}

// Sign computes the signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
