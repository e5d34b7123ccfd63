package api

import "net/http"

// StatsProvider reports runtime counters for GET /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the engine's counters (queue length, reconciling, pending items,
// ranked items, store writes) as a flat JSON object.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler returns a handler reading from provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	stats := h.provider.GetStats()
	if stats == nil {
		stats = map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, stats)
}
