package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/WessleyAI/carsearch/engine/semantic"
	"github.com/WessleyAI/carsearch/pkg/metrics"
)

// UserHeader identifies the caller. Authentication happens upstream.
const UserHeader = "X-User-ID"

type searcher interface {
	Execute(ctx context.Context, c domain.SearchCriteria, userID string) (domain.RankedResults, error)
	ExecuteText(ctx context.Context, text string, base domain.PartialCriteria, userID string) (domain.RankedResults, error)
	Defaults() domain.CriteriaDefaults
}

type credits interface {
	Balance(ctx context.Context, userID string) (domain.CreditAccount, error)
	Open(ctx context.Context, userID string, initial int) (domain.CreditAccount, error)
}

type similarFinder interface {
	Similar(ctx context.Context, text string, topK int, filters map[string]string) ([]semantic.Match, error)
}

type server struct {
	search  searcher
	credits credits
	similar similarFinder
	log     *slog.Logger
}

func newServer(s searcher, c credits, sim similarFinder, log *slog.Logger) *server {
	return &server{search: s, credits: c, similar: sim, log: log}
}

func (s *server) routes(reg *metrics.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/credits", s.handleBalance)
	mux.HandleFunc("POST /api/credits", s.handleOpen)
	mux.HandleFunc("GET /api/similar", s.handleSimilar)
	mux.Handle("GET /metrics", reg.Handler())
	return mux
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SearchRequest is the JSON body for POST /api/search. Structured fields
// take precedence over what is extracted from Text.
type SearchRequest struct {
	Text string `json:"text,omitempty"`
	domain.PartialCriteria
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
		return
	}
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		res domain.RankedResults
		err error
	)
	if text := strings.TrimSpace(req.Text); text != "" {
		res, err = s.search.ExecuteText(r.Context(), text, req.PartialCriteria, user)
	} else {
		res, err = s.search.Execute(r.Context(), domain.BuildCriteria(req.PartialCriteria, s.search.Defaults()), user)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleBalance(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
		return
	}
	acct, err := s.credits.Balance(r.Context(), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// handleOpen creates the caller's account with the free allowance. Opening
// an existing account returns it unchanged.
func (s *server) handleOpen(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
		return
	}
	acct, err := s.credits.Open(r.Context(), user, -1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	k, _ := strconv.Atoi(r.URL.Query().Get("k"))
	var filters map[string]string
	if brand := domain.CanonicalBrand(r.URL.Query().Get("brand")); brand != "" {
		filters = map[string]string{"brand": brand}
	}
	matches, err := s.similar.Similar(r.Context(), q, k, filters)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// fail maps pipeline errors to HTTP statuses.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrPipelineTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	}
	msg := http.StatusText(status)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		msg = err.Error()
	}
	writeError(w, status, msg)
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
