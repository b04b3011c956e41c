// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/semaphore"

	"github.com/user/cognitive/internal/action"
	"github.com/user/cognitive/internal/cognitive"
	"github.com/user/cognitive/internal/integration"
	"github.com/user/cognitive/internal/store"
	"github.com/user/cognitive/pkg/llm"
)

// Generator is the completion client surface the server exposes.
type Generator interface {
	GenerateContent(ctx context.Context, input llm.GenerateInput) (*cognitive.Response, error)
	FetchInstalledModels(ctx context.Context) ([]llm.Model, error)
	FetchPreferences(ctx context.Context) (*cognitive.Preferences, error)
	SetPreferences(ctx context.Context, prefs *cognitive.Preferences, save bool) error
}

// JournalReader returns the most recent journal entries.
type JournalReader interface {
	Tail(ctx context.Context, limit int) ([]*store.Entry, error)
}

// Server is the HTTP API in front of the completion client.
type Server struct {
	client  Generator
	actions action.Invoker
	journal JournalReader
	metrics http.Handler
	mux     *http.ServeMux

	// generations bounds concurrent /v1/generate calls when set.
	generations *semaphore.Weighted
}

// New creates a Server. Actions, journal and metrics are optional; their
// endpoints answer 503 when unset.
func New(client Generator, actions action.Invoker, journal JournalReader, metrics http.Handler) *Server {
	s := &Server{
		client:  client,
		actions: actions,
		journal: journal,
		metrics: metrics,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /v1/generate", s.handleGenerate)
	s.mux.HandleFunc("GET /v1/models", s.handleModels)
	s.mux.HandleFunc("GET /v1/preferences", s.handleGetPreferences)
	s.mux.HandleFunc("PUT /v1/preferences", s.handlePutPreferences)
	s.mux.HandleFunc("POST /v1/interfaces/resolve", s.handleResolve)
	s.mux.HandleFunc("POST /v1/actions/{type}", s.handleAction)
	s.mux.HandleFunc("GET /v1/journal", s.handleJournal)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	return s
}

// LimitGenerations allows at most n generations to run at once. Requests
// beyond the limit wait until a slot frees up or their context ends.
func (s *Server) LimitGenerations(n int64) {
	if n > 0 {
		s.generations = semaphore.NewWeighted(n)
	}
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var apiErr *llm.APIError
	switch {
	case cognitive.IsAborted(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, cognitive.ErrNoModelAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, cognitive.ErrNotFound), errors.Is(err, action.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, integration.ErrUnresolvedEntity):
		return http.StatusUnprocessableEntity
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "op", op, "error", err)
	}
	writeError(w, status, err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var input llm.GenerateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(input.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	if s.generations != nil {
		if err := s.generations.Acquire(r.Context(), 1); err != nil {
			writeError(w, http.StatusServiceUnavailable, "server busy")
			return
		}
		defer s.generations.Release(1)
	}

	resp, err := s.client.GenerateContent(r.Context(), input)
	if err != nil {
		s.fail(w, "generate", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.client.FetchInstalledModels(r.Context())
	if err != nil {
		s.fail(w, "models", err)
		return
	}
	if models == nil {
		models = []llm.Model{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.client.FetchPreferences(r.Context())
	if err != nil {
		s.fail(w, "get preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs cognitive.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	save := r.URL.Query().Get("save") != "false"
	if err := s.client.SetPreferences(r.Context(), &prefs, save); err != nil {
		s.fail(w, "set preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, &prefs)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var in integration.InterfaceExtensionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	out, err := integration.ResolveInterface(in)
	if err != nil {
		s.fail(w, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if s.actions == nil {
		writeError(w, http.StatusServiceUnavailable, "actions not configured")
		return
	}
	var input json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := s.actions.CallAction(r.Context(), action.Call{Type: r.PathValue("type"), Input: input})
	if err != nil {
		s.fail(w, "action", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not configured")
		return
	}

	limit := 200
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.journal.Tail(r.Context(), limit)
	if err != nil {
		s.fail(w, "journal", err)
		return
	}
	if entries == nil {
		entries = []*store.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not configured")
		return
	}
	s.metrics.ServeHTTP(w, r)
}
