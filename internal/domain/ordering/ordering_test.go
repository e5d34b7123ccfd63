package ordering

import (
	"testing"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(s ...string) []model.ItemID {
	out := make([]model.ItemID, len(s))
	for i, v := range s {
		out[i] = model.ItemID(v)
	}
	return out
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3, 5))
	assert.Equal(t, 4, Clamp(10, 5))
	assert.Equal(t, 2, Clamp(2, 5))
	assert.Equal(t, 0, Clamp(2, 0))
}

func TestMove(t *testing.T) {
	tests := []struct {
		name    string
		order   []model.ItemID
		id      model.ItemID
		dst     int
		want    []model.ItemID
		wantIdx int
	}{
		{"down", ids("a", "b", "c", "d"), "a", 2, ids("b", "c", "a", "d"), 2},
		{"up", ids("a", "b", "c", "d"), "d", 0, ids("d", "a", "b", "c"), 0},
		{"same", ids("a", "b", "c"), "b", 1, ids("a", "b", "c"), 1},
		{"clamp high", ids("a", "b", "c"), "a", 99, ids("b", "c", "a"), 2},
		{"clamp low", ids("a", "b", "c"), "c", -5, ids("c", "a", "b"), 0},
		{"insert new", ids("a", "b"), "x", 1, ids("a", "x", "b"), 1},
		{"insert empty", nil, "x", 3, ids("x"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]model.ItemID(nil), tt.order...)
			got, idx := Move(tt.order, tt.id, tt.dst)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantIdx, idx)
			assert.Equal(t, in, tt.order, "input must not be modified")
		})
	}
}

func TestIndexOfAndRemove(t *testing.T) {
	order := ids("a", "b", "c")
	assert.Equal(t, 1, IndexOf(order, "b"))
	assert.Equal(t, -1, IndexOf(order, "z"))
	assert.Equal(t, ids("a", "c"), Remove(order, "b"))
	assert.Equal(t, ids("a", "b", "c"), Remove(order, "z"))
}

func TestMerge(t *testing.T) {
	t.Run("keeps manual order and adds new items at derived position", func(t *testing.T) {
		display := ids("c", "a", "b")
		derived := ids("a", "n", "b", "c")
		got := Merge(display, derived)
		require.Len(t, got, 4)
		assert.Equal(t, ids("c", "n", "a", "b"), got)
	})

	t.Run("drops items no longer ranked", func(t *testing.T) {
		got := Merge(ids("a", "gone", "b"), ids("a", "b"))
		assert.Equal(t, ids("a", "b"), got)
	})

	t.Run("empty display takes derived", func(t *testing.T) {
		assert.Equal(t, ids("x", "y"), Merge(nil, ids("x", "y")))
	})
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(ids("a", "b"), ids("a", "b")))
	assert.False(t, Equal(ids("a", "b"), ids("b", "a")))
	assert.False(t, Equal(ids("a"), ids("a", "b")))
}
