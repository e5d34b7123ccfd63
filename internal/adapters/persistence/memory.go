package persistence

import (
	"context"
	"sync"

	"github.com/okian/pokerank/internal/domain/model"
)

// Memory keeps sessions in process memory.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]map[model.ItemID]model.Record
	saves    int
	closed   bool
}

var _ Client = (*Memory)(nil)

// NewMemory returns an empty in-memory client.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]map[model.ItemID]model.Record)}
}

// Load implements Client. Unknown sessions load as empty.
func (m *Memory) Load(_ context.Context, sessionID string) (map[model.ItemID]model.Record, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return copyRecords(m.sessions[sessionID]), nil
}

// Save implements Client.
func (m *Memory) Save(_ context.Context, sessionID string, records map[model.ItemID]model.Record) error {
	if sessionID == "" {
		return ErrEmptySession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.sessions[sessionID] = copyRecords(records)
	m.saves++
	return nil
}

// Saves returns how many saves succeeded.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Close implements Client.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
