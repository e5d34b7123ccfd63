// Package ordering holds helpers for explicit display orders.
//
// All functions return new slices and never modify their input.
package ordering

import "github.com/okian/pokerank/internal/domain/model"

// Clamp limits i to [0, n-1]. It returns 0 when n is 0.
func Clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// IndexOf returns the position of id in order, or -1.
func IndexOf(order []model.ItemID, id model.ItemID) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

// Remove returns order without id.
func Remove(order []model.ItemID, id model.ItemID) []model.ItemID {
	out := make([]model.ItemID, 0, len(order))
	for _, v := range order {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Insert places id at index dst (clamped to [0, len(order)]).
func Insert(order []model.ItemID, id model.ItemID, dst int) []model.ItemID {
	if dst < 0 {
		dst = 0
	}
	if dst > len(order) {
		dst = len(order)
	}
	out := make([]model.ItemID, 0, len(order)+1)
	out = append(out, order[:dst]...)
	out = append(out, id)
	return append(out, order[dst:]...)
}

// Move relocates id so it ends up at dst. If id is absent it is inserted.
// The returned index is the clamped final position of id.
func Move(order []model.ItemID, id model.ItemID, dst int) ([]model.ItemID, int) {
	rest := Remove(order, id)
	if dst > len(rest) {
		dst = len(rest)
	}
	if dst < 0 {
		dst = 0
	}
	return Insert(rest, id, dst), dst
}

// Equal reports whether a and b hold the same ids in the same order.
func Equal(a, b []model.ItemID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Merge keeps the relative order of display for ids still present in derived
// and inserts ids that only appear in derived at their derived position.
func Merge(display, derived []model.ItemID) []model.ItemID {
	present := make(map[model.ItemID]struct{}, len(derived))
	for _, id := range derived {
		present[id] = struct{}{}
	}
	seen := make(map[model.ItemID]struct{}, len(display))
	out := make([]model.ItemID, 0, len(derived))
	for _, id := range display {
		if _, ok := present[id]; ok {
			out = append(out, id)
			seen[id] = struct{}{}
		}
	}
	for i, id := range derived {
		if _, ok := seen[id]; ok {
			continue
		}
		out = Insert(out, id, i)
	}
	return out
}
