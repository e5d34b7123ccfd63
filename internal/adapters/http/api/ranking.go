package api

import (
	"context"
	"net/http"

	"github.com/okian/pokerank/internal/domain/model"
)

// RankingDependencies defines the read side plus the operations keyed by item.
type RankingDependencies interface {
	Ranking(ctx context.Context, limit int) ([]Entry, error)
	DisplayOrder(ctx context.Context) ([]model.ItemID, error)
	Item(ctx context.Context, id model.ItemID) (Entry, error)
	RemoveItem(ctx context.Context, id model.ItemID) error
	ResetOrder(ctx context.Context) error
}

// RankingHandler handles ranking and item requests.
type RankingHandler struct {
	deps         RankingDependencies
	defaultLimit int
}

// NewRankingHandler creates a new ranking handler. defaultLimit applies when
// the request has no limit parameter.
func NewRankingHandler(deps RankingDependencies, defaultLimit int) *RankingHandler {
	if defaultLimit < 1 {
		defaultLimit = 100
	}
	return &RankingHandler{deps: deps, defaultLimit: defaultLimit}
}

type orderResponse struct {
	Items []model.ItemID `json:"items"`
}

// HandleGetRanking handles GET /ranking?limit=N requests.
func (h *RankingHandler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, err := queryInt(r, "limit", h.defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	entries, err := h.deps.Ranking(r.Context(), n)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetOrder handles GET /order requests.
func (h *RankingHandler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_order"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	h.writeOrder(w, r, op)
}

func (h *RankingHandler) writeOrder(w http.ResponseWriter, r *http.Request, op string) {
	order, err := h.deps.DisplayOrder(r.Context())
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	if order == nil {
		order = []model.ItemID{}
	}
	writeJSON(w, http.StatusOK, orderResponse{Items: order})
}

// HandleResetOrder handles POST /order/reset requests.
func (h *RankingHandler) HandleResetOrder(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset_order"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.deps.ResetOrder(r.Context()); err != nil {
		writeDomainError(w, op, err)
		return
	}
	h.writeOrder(w, r, op)
}

// HandleItem handles GET and DELETE /items/{id} requests.
func (h *RankingHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	const op = "api.item"
	id, ok := pathID(r, "/items/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	switch r.Method {
	case http.MethodGet:
		entry, err := h.deps.Item(r.Context(), model.ItemID(id))
		if err != nil {
			writeDomainError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if err := h.deps.RemoveItem(r.Context(), model.ItemID(id)); err != nil {
			writeDomainError(w, op, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}
