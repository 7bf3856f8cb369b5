package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/h1v3-io/modcogs/internal/confirm"
	"github.com/h1v3-io/modcogs/internal/logbuf"
	"github.com/h1v3-io/modcogs/internal/responsetime"
	"github.com/h1v3-io/modcogs/internal/ticket"
	"github.com/h1v3-io/modcogs/internal/uptime"
	"github.com/h1v3-io/modcogs/pkg/protocol"
)

// LogQuerier abstracts log entry querying.
type LogQuerier interface {
	Query(f logbuf.Filter) []logbuf.Entry
}

// Service is what the API server reads from the running bot.
type Service interface {
	Confirmations() []confirm.Snapshot
	ListTickets(ctx context.Context, filter ticket.Filter) ([]*protocol.Ticket, error)
	GetTicket(ctx context.Context, id string) (*protocol.Ticket, error)
	ResponseTimes() responsetime.Stats
	Uptime() uptime.Stats
}

// Config holds API server configuration.
type Config struct {
	Host string
	Port int
	Key  string // API key for Bearer auth
}

// Server is the read-only admin API.
type Server struct {
	svc    Service
	cfg    Config
	logger *slog.Logger
	logs   LogQuerier
	srv    *http.Server
}

// NewServer creates a new API server. logs and webhooks may be nil.
// webhooks is mounted at POST /api/webhook/{name} outside bearer auth
// since each endpoint authenticates itself.
func NewServer(svc Service, cfg Config, logger *slog.Logger, logs LogQuerier, webhooks http.Handler) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger.With("component", "api"),
		logs:   logs,
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.cors)
	r.Get("/api/health", s.handleHealth)
	if webhooks != nil {
		r.Post("/api/webhook/{name}", webhooks.ServeHTTP)
	}
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/confirmations", s.handleConfirmations)
		r.Get("/api/tickets", s.handleListTickets)
		r.Get("/api/tickets/{id}", s.handleGetTicket)
		r.Get("/api/stats/responsetime", s.handleResponseTimes)
		r.Get("/api/stats/uptime", s.handleUptime)
		r.Get("/api/logs", s.handleGetLogs)
	})

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Middleware ---

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfirmations(w http.ResponseWriter, r *http.Request) {
	all := s.svc.Confirmations()
	if r.URL.Query().Get("pending") == "true" {
		pending := all[:0:0]
		for _, c := range all {
			if !c.Outcome.Terminal() {
				pending = append(pending, c)
			}
		}
		all = pending
	}
	if all == nil {
		all = []confirm.Snapshot{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ticket.Filter{RecipientID: q.Get("recipient"), Query: q.Get("q")}
	if status := q.Get("status"); status != "" {
		ts := protocol.TicketStatus(status)
		if ts != protocol.TicketOpen && ts != protocol.TicketClosed {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be open or closed"})
			return
		}
		filter.Status = &ts
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = n
		}
	}

	tickets, err := s.svc.ListTickets(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if tickets == nil {
		tickets = []*protocol.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.GetTicket(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ticket.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleResponseTimes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ResponseTimes())
}

func (s *Server) handleUptime(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Uptime())
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}

	q := r.URL.Query()
	f := logbuf.Filter{Limit: 200, MinLevel: slog.LevelDebug, Component: q.Get("component")}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if lvl := q.Get("level"); lvl != "" {
		parsed, ok := logbuf.ParseLevel(lvl)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown level: " + lvl})
			return
		}
		f.MinLevel = parsed
	}
	if since := q.Get("since"); since != "" {
		if ms, err := strconv.ParseInt(since, 10, 64); err == nil {
			f.Since = time.UnixMilli(ms)
		}
	}

	writeJSON(w, http.StatusOK, s.logs.Query(f))
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
