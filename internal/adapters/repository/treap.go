package repository

import (
	"math/rand/v2"

	"github.com/okian/pokerank/internal/domain/model"
)

// Treap ordering: score DESC, battle count ASC, insertion sequence ASC.
// "less" means ranks earlier, so in-order traversal yields the ranking from
// best to worst.

type key struct {
	score   float64
	battles int
	seq     uint64
}

func less(a, b key) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.battles != b.battles {
		return a.battles < b.battles
	}
	return a.seq < b.seq
}

type node struct {
	id    model.ItemID
	key   key
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id model.ItemID, k key) *node {
	if n == nil {
		return &node{id: id, key: k, prio: rand.Uint64(), size: 1}
	}
	if less(k, n.key) {
		n.left = insert(n.left, id, k)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, k)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k key) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.key == k:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case less(k, n.key):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// position returns the 0-based in-order index of k.
func position(n *node, k key) int {
	pos := 0
	for n != nil {
		switch {
		case n.key == k:
			return pos + nsize(n.left)
		case less(k, n.key):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return -1
}

// collect appends up to limit nodes in rank order.
func collect(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collect(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collect(n.right, limit, out)
	}
}
