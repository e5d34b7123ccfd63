package api

import (
	"context"
	"net/http"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/scoring"
)

// BattleDependencies defines the battle event stream.
type BattleDependencies interface {
	ResolveBattle(ctx context.Context, b model.Battle) (scoring.Outcome, error)
	BattleScheduled(ctx context.Context, n model.BattleNotice) error
	BattleCompleted(ctx context.Context, n model.BattleNotice) (bool, error)
}

// BattleHandler handles battle requests.
type BattleHandler struct {
	deps BattleDependencies
}

// NewBattleHandler creates a new battle handler.
func NewBattleHandler(deps BattleDependencies) *BattleHandler {
	return &BattleHandler{deps: deps}
}

type battleResponse struct {
	BattleID string                        `json:"battle_id,omitempty"`
	Ratings  map[model.ItemID]model.Rating `json:"ratings"`
}

// HandleResolve handles POST /battles requests.
func (h *BattleHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve_battle"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var b model.Battle
	if err := decodeJSON(w, r, &b); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	out, err := h.deps.ResolveBattle(r.Context(), b)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, battleResponse{BattleID: b.ID, Ratings: out.After})
}

// HandleScheduled handles POST /battles/scheduled requests.
func (h *BattleHandler) HandleScheduled(w http.ResponseWriter, r *http.Request) {
	const op = "api.battle_scheduled"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var n model.BattleNotice
	if err := decodeJSON(w, r, &n); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.BattleScheduled(r.Context(), n); err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "scheduled"})
}

// HandleCompleted handles POST /battles/completed requests. Repeated reports
// for one battle id are acknowledged without effect.
func (h *BattleHandler) HandleCompleted(w http.ResponseWriter, r *http.Request) {
	const op = "api.battle_completed"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var n model.BattleNotice
	if err := decodeJSON(w, r, &n); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	applied, err := h.deps.BattleCompleted(r.Context(), n)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	if !applied {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "applied"})
}
