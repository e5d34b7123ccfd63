// Package pending tracks items whose rating correction is not yet confirmed.
//
// Scheduled battles and completed battles are separate signals: only a
// completed battle consumes a confirmation.
package pending

import (
	"sort"
	"sync"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/pkg/metrics"
)

// Tracker holds pending markers and scheduled-battle counts.
type Tracker struct {
	mu        sync.Mutex
	remaining map[model.ItemID]int
	scheduled map[model.ItemID]int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		remaining: make(map[model.ItemID]int),
		scheduled: make(map[model.ItemID]int),
	}
}

// MarkPending flags id until n completed battles are reported. An item that
// is already pending keeps the larger of the two counts.
func (t *Tracker) MarkPending(id model.ItemID, n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur := t.remaining[id]; cur < n {
		t.remaining[id] = n
	}
	metrics.UpdatePendingItems(len(t.remaining))
}

// ConfirmOne consumes one confirmation and reports whether the item was
// pending. The marker is removed when it reaches zero.
func (t *Tracker) ConfirmOne(id model.ItemID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.remaining[id]
	if !ok {
		return false
	}
	if cur <= 1 {
		delete(t.remaining, id)
		delete(t.scheduled, id)
	} else {
		t.remaining[id] = cur - 1
	}
	metrics.RecordPendingConfirmation()
	metrics.UpdatePendingItems(len(t.remaining))
	return true
}

// NoteScheduled records that a battle involving ids was scheduled. It never
// changes a marker.
func (t *Tracker) NoteScheduled(ids []model.ItemID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if _, ok := t.remaining[id]; ok {
			t.scheduled[id]++
		}
	}
}

// Scheduled returns how many battles were scheduled for id while it was pending.
func (t *Tracker) Scheduled(id model.ItemID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scheduled[id]
}

// IsPending reports whether id has a marker.
func (t *Tracker) IsPending(id model.ItemID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.remaining[id]
	return ok
}

// Remaining returns the confirmations left for id, or 0.
func (t *Tracker) Remaining(id model.ItemID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining[id]
}

// Clear removes the marker for id.
func (t *Tracker) Clear(id model.ItemID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.remaining, id)
	delete(t.scheduled, id)
	metrics.UpdatePendingItems(len(t.remaining))
}

// ClearAll removes every marker.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining = make(map[model.ItemID]int)
	t.scheduled = make(map[model.ItemID]int)
	metrics.UpdatePendingItems(0)
}

// Len returns the number of pending items.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.remaining)
}

// Snapshot returns every marker sorted by item id.
func (t *Tracker) Snapshot() []model.PendingMarker {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.PendingMarker, 0, len(t.remaining))
	for id, n := range t.remaining {
		out = append(out, model.PendingMarker{ItemID: id, RemainingConfirmations: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}
