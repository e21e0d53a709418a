// Package web is the HTTP front end: submit a scrape, fetch a stored run,
// tail the engine's logs.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"go.uber.org/zap"

	"table-scraper/internal/config"
	"table-scraper/internal/results"
	"table-scraper/internal/scraper"
)

// maxBodyBytes caps scrape request bodies.
const maxBodyBytes = 1 << 20

// Runner executes one scrape job. The production runner drives a real
// browser; tests substitute a stub.
type Runner func(ctx context.Context, cfg *config.RunConfig, auth scraper.AuthStrategy) (*scraper.Result, error)

// DefaultRunner runs jobs through the scrape engine.
func DefaultRunner(logger *zap.Logger) Runner {
	return func(ctx context.Context, cfg *config.RunConfig, auth scraper.AuthStrategy) (*scraper.Result, error) {
		s, err := scraper.New(ctx, cfg, scraper.WithAuth(auth), scraper.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.Run(ctx)
	}
}

// Server routes the HTTP API.
type Server struct {
	logger *zap.Logger
	store  *results.Store
	broker *Broker
	runner Runner
	router chi.Router
}

func NewServer(logger *zap.Logger, store *results.Store, broker *Broker, runner Runner) *Server {
	s := &Server{logger: logger, store: store, broker: broker, runner: runner}

	r := chi.NewRouter()
	httpLogger := httplog.NewLogger("table-scraper", httplog.Options{Concise: true})
	r.Use(httplog.RequestLogger(httpLogger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/scrape", s.handleScrape)
	r.Get("/results/{runID}", s.handleResults)
	r.Get("/logs/stream", s.handleLogStream)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scrapeRequest is the POST /scrape body: a job document under "config" with
// optional credentials, or a bare job document.
type scrapeRequest struct {
	Config   json.RawMessage `json:"config"`
	Username string          `json:"username"`
	Password string          `json:"password"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}

	var req scrapeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	doc := req.Config
	if len(doc) == 0 {
		doc = body
	}

	cfg, err := config.Parse(doc, config.FormatJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// a service must never block on a visible window
	cfg.ForceHeadless()

	username := r.URL.Query().Get("username")
	if username == "" {
		username = req.Username
	}
	password := r.URL.Query().Get("password")
	if password == "" {
		password = req.Password
	}
	if username != "" {
		cfg.Session.User = username
	}

	var auth scraper.AuthStrategy = scraper.NoopAuth{}
	if username != "" && password != "" {
		auth = scraper.NewMicrosoftSSO(username, password, scraper.WithSSOLogger(s.logger))
	}

	s.logger.Info("scrape requested",
		zap.String("url", cfg.BaseURL),
		zap.String("user", cfg.Session.User))

	res, err := s.runner(r.Context(), cfg, auth)
	if err != nil {
		s.logger.Error("scrape failed", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	meta, err := s.store.Save(res, cfg.Session.SiteHost, cfg.Session.User)
	if err != nil {
		s.logger.Error("failed to persist run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": meta.RunID,
		"rows":   meta.Rows,
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	meta, items, err := s.store.Load(id)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, fmt.Errorf("unknown run %q", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"meta":  meta,
		"items": items,
	})
}

// handleLogStream tails the broker as server-sent events until the client
// disconnects.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	ch := s.broker.Subscribe()
	defer s.broker.Unsubscribe(ch)
	for {
		select {
		case <-r.Context().Done():
			return
		case line, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", line)
			fl.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
