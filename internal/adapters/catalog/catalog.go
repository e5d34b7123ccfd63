// Package catalog lists the items that may enter the ranking.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/pokerank/internal/domain/model"
)

// Sentinel errors for catalog loading.
var (
	ErrDuplicateItem = errors.New("duplicate catalog item")
	ErrInvalidItem   = errors.New("invalid catalog item")
)

// Item is one catalog entry.
type Item struct {
	ID         model.ItemID `yaml:"id" json:"id"`
	Name       string       `yaml:"name" json:"name"`
	Generation int          `yaml:"generation,omitempty" json:"generation,omitempty"`
}

type file struct {
	Items []Item `yaml:"items"`
}

// Catalog resolves item ids. An empty catalog accepts any non-blank id.
type Catalog struct {
	items map[model.ItemID]Item
}

// New builds a catalog from items.
func New(items []Item) (*Catalog, error) {
	c := &Catalog{items: make(map[model.ItemID]Item, len(items))}
	for i, it := range items {
		it.ID = model.ItemID(strings.TrimSpace(string(it.ID)))
		if it.ID == "" {
			return nil, fmt.Errorf("item %d has no id: %w", i, ErrInvalidItem)
		}
		if _, dup := c.items[it.ID]; dup {
			return nil, fmt.Errorf("%q: %w", it.ID, ErrDuplicateItem)
		}
		if it.Name == "" {
			it.Name = string(it.ID)
		}
		c.items[it.ID] = it
	}
	return c, nil
}

// Empty returns a catalog that lists nothing and accepts every id.
func Empty() *Catalog {
	return &Catalog{items: map[model.ItemID]Item{}}
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Items)
}

// Load reads a YAML catalog file. An empty path yields an empty catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Empty(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Resolve reports whether id may be ranked.
func (c *Catalog) Resolve(id model.ItemID) bool {
	if strings.TrimSpace(string(id)) == "" || string(id) != strings.TrimSpace(string(id)) {
		return false
	}
	if len(c.items) == 0 {
		return true
	}
	_, ok := c.items[id]
	return ok
}

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id model.ItemID) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// Len returns the number of listed items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Items returns every entry sorted by id.
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
