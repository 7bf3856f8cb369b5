package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/connector/chattest"
)

type recordingAlerter struct {
	mu   sync.Mutex
	msgs []connector.OutboundMessage
	err  error
}

func (a *recordingAlerter) Alert(_ context.Context, msg connector.OutboundMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
	return a.err
}

func (a *recordingAlerter) last() connector.OutboundMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.msgs[len(a.msgs)-1]
}

func newTestHandler(endpoints map[string]Endpoint) (*Handler, *recordingAlerter, *chattest.Platform) {
	alerts := &recordingAlerter{}
	p := chattest.NewPlatform()
	h := New(endpoints, alerts, p, nil)
	h.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return h, alerts, p
}

func post(h http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRelayOpenEndpoint(t *testing.T) {
	h, alerts, p := newTestHandler(map[string]Endpoint{"statuspage": {LogChannelID: "ops"}})

	w := post(h, "/api/webhook/statuspage", `{"title":"API degraded","content":"p95 over 2s","severity":"warning","url":"https://status.example.com"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	e := alerts.last().Embed
	if e.Title != "⚠️ API degraded" || e.Color != connector.ColorOrange || e.Description != "p95 over 2s" {
		t.Errorf("embed = %+v", e)
	}
	if e.Footer != "via webhook statuspage" || len(e.Fields) != 1 || e.Fields[0].Value != "https://status.example.com" {
		t.Errorf("embed details = %+v", e)
	}
	if sent := p.SentTo("ops"); len(sent) != 1 || sent[0].Embed.Title != e.Title {
		t.Errorf("log channel = %+v", sent)
	}
}

func TestDefaultTitle(t *testing.T) {
	h, alerts, _ := newTestHandler(map[string]Endpoint{"ci": {}})
	post(h, "/api/webhook/ci/", `{"content":"deploy failed","severity":"critical"}`, nil)
	if e := alerts.last().Embed; e.Title != "🚨 Alert from ci" || e.Color != connector.ColorRed {
		t.Errorf("embed = %+v", e)
	}
}

func TestHMAC(t *testing.T) {
	h, alerts, _ := newTestHandler(map[string]Endpoint{"github": {Secret: "whsec"}})
	body := `{"content":"push"}`

	if w := post(h, "/api/webhook/github", body, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unsigned = %d", w.Code)
	}
	if w := post(h, "/api/webhook/github", body, map[string]string{"X-Hub-Signature-256": Sign([]byte(body), "wrong")}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad signature = %d", w.Code)
	}
	if w := post(h, "/api/webhook/github", body, map[string]string{"X-Signature-256": Sign([]byte(body), "whsec")}); w.Code != http.StatusOK {
		t.Errorf("signed = %d", w.Code)
	}
	if len(alerts.msgs) != 1 {
		t.Errorf("alerts = %d", len(alerts.msgs))
	}
}

func TestBearer(t *testing.T) {
	h, _, _ := newTestHandler(map[string]Endpoint{"uptime-robot": {BearerToken: "tok"}})
	body := `{"content":"down"}`
	if w := post(h, "/api/webhook/uptime-robot", body, map[string]string{"Authorization": "Bearer nope"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d", w.Code)
	}
	if w := post(h, "/api/webhook/uptime-robot", body, map[string]string{"Authorization": "Bearer tok"}); w.Code != http.StatusOK {
		t.Errorf("token = %d", w.Code)
	}
}

func TestRejects(t *testing.T) {
	h, alerts, _ := newTestHandler(map[string]Endpoint{"ci": {}})

	if w := post(h, "/api/webhook/other", `{"content":"x"}`, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown endpoint = %d", w.Code)
	}
	if w := post(h, "/api/webhook/ci", `not json`, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d", w.Code)
	}
	if w := post(h, "/api/webhook/ci", `{"severity":"info"}`, nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty alert = %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/webhook/ci", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET = %d", w.Code)
	}
	if len(alerts.msgs) != 0 {
		t.Errorf("relayed %d rejected alerts", len(alerts.msgs))
	}
}

func TestRelayFailure(t *testing.T) {
	h, alerts, _ := newTestHandler(map[string]Endpoint{"ci": {}})
	alerts.err = errors.New("slack down")
	if w := post(h, "/api/webhook/ci", `{"content":"x"}`, nil); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d", w.Code)
	}
}
