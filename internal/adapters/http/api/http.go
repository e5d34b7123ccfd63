// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/pokerank/internal/adapters/mq/queue"
	"github.com/okian/pokerank/internal/adapters/repository"
	"github.com/okian/pokerank/internal/app"
	"github.com/okian/pokerank/internal/domain/reconcile"
	"github.com/okian/pokerank/internal/domain/scoring"
	"github.com/okian/pokerank/internal/domain/types"
	"github.com/okian/pokerank/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RankingDependencies
	BattleDependencies
	InteractionDependencies
}

// Entry mirrors the read shape returned by ranking queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	rankingHandler     *RankingHandler
	battleHandler      *BattleHandler
	interactionHandler *InteractionHandler
	log                logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, defaultLimit int, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		rankingHandler:     NewRankingHandler(deps, defaultLimit),
		battleHandler:      NewBattleHandler(deps),
		interactionHandler: NewInteractionHandler(deps),
		log:                logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) instrument(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return MetricsMiddleware(s.log, next, endpoint)
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.instrument(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", s.instrument(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/ranking", s.instrument(s.rankingHandler.HandleGetRanking, "ranking"))
	mux.HandleFunc("/order", s.instrument(s.rankingHandler.HandleGetOrder, "order"))
	mux.HandleFunc("/order/reset", s.instrument(s.rankingHandler.HandleResetOrder, "order_reset"))
	mux.HandleFunc("/items/", s.instrument(s.rankingHandler.HandleItem, "items"))

	mux.HandleFunc("/battles", s.instrument(s.battleHandler.HandleResolve, "battles"))
	mux.HandleFunc("/battles/scheduled", s.instrument(s.battleHandler.HandleScheduled, "battles_scheduled"))
	mux.HandleFunc("/battles/completed", s.instrument(s.battleHandler.HandleCompleted, "battles_completed"))

	mux.HandleFunc("/reorder", s.instrument(s.interactionHandler.HandleReorder, "reorder"))
	mux.HandleFunc("/drag-start", s.instrument(s.interactionHandler.HandleDragStart, "drag_start"))
	mux.HandleFunc("/votes", s.instrument(s.interactionHandler.HandleVote, "votes"))
	mux.HandleFunc("/pending/reset", s.instrument(s.interactionHandler.HandleResetPending, "pending_reset"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps errors from the ranking engine to HTTP statuses.
func writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, app.ErrUnknownItem), errors.Is(err, app.ErrNotRanked):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, scoring.ErrInvalidBattle),
		errors.Is(err, reconcile.ErrInvalidVote),
		errors.Is(err, app.ErrMissingBattleID),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, repository.ErrEmptyID):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, app.ErrNotStarted), errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
