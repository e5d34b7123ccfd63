package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/pokerank/internal/app"
	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/reconcile"
)

// InteractionDependencies defines the manual ranking operations.
type InteractionDependencies interface {
	DragStart(ctx context.Context, id model.ItemID) error
	DragEnd(ctx context.Context, id model.ItemID, src, dst int) (app.Result, error)
	SubmitVote(ctx context.Context, v model.Vote) (reconcile.Plan, error)
	ResetPending(ctx context.Context) error
}

// InteractionHandler handles drag and vote requests.
type InteractionHandler struct {
	deps InteractionDependencies
}

// NewInteractionHandler creates a new interaction handler.
func NewInteractionHandler(deps InteractionDependencies) *InteractionHandler {
	return &InteractionHandler{deps: deps}
}

// reorderRequest mirrors the OpenAPI schema for POST /reorder.
type reorderRequest struct {
	ItemID           string `json:"item_id"`
	SourceIndex      int    `json:"source_index"`
	DestinationIndex int    `json:"destination_index"`
}

type itemRequest struct {
	ItemID string `json:"item_id"`
}

type voteResponse struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
	Mu     float64 `json:"mu"`
	Sigma  float64 `json:"sigma"`
}

func requireItem(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("missing item_id")
	}
	return nil
}

// HandleReorder handles POST /reorder requests. The display changes at once;
// the rating follows after the debounce window.
func (h *InteractionHandler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	const op = "api.reorder"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := requireItem(req.ItemID); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.DragEnd(r.Context(), model.ItemID(req.ItemID), req.SourceIndex, req.DestinationIndex)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// HandleDragStart handles POST /drag-start requests.
func (h *InteractionHandler) HandleDragStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.drag_start"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := requireItem(req.ItemID); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.DragStart(r.Context(), model.ItemID(req.ItemID)); err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "pending"})
}

// HandleVote handles POST /votes requests.
func (h *InteractionHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.vote"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var v model.Vote
	if err := decodeJSON(w, r, &v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := requireItem(string(v.ItemID)); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.SubmitVote(r.Context(), v)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, voteResponse{
		ItemID: string(p.Item),
		Score:  p.Target,
		Mu:     p.Rating.Mu,
		Sigma:  p.Rating.Sigma,
	})
}

// HandleResetPending handles POST /pending/reset requests.
func (h *InteractionHandler) HandleResetPending(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset_pending"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.deps.ResetPending(r.Context()); err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "cleared"})
}
