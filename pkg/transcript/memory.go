package transcript

import (
	"context"
	"sync"
)

// MemoryArchive is an in-process Archive. Safe for concurrent use.
type MemoryArchive struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	// children counts per parent hash, for Heads.
	children map[string]int
	order    []string
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		entries:  make(map[string]*Entry),
		children: make(map[string]int),
	}
}

func (m *MemoryArchive) Put(_ context.Context, e *Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[e.Hash]; exists {
		return false, nil
	}

	cp := *e
	m.entries[e.Hash] = &cp
	m.order = append(m.order, e.Hash)
	if e.ParentHash != nil {
		m.children[*e.ParentHash]++
	}
	return true, nil
}

func (m *MemoryArchive) Get(_ context.Context, hash string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryArchive) Has(_ context.Context, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[hash]
	return ok, nil
}

func (m *MemoryArchive) List(_ context.Context) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Entry, 0, len(m.order))
	for _, h := range m.order {
		cp := *m.entries[h]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryArchive) Heads(_ context.Context) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Entry
	for _, h := range m.order {
		if m.children[h] == 0 {
			cp := *m.entries[h]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryArchive) History(ctx context.Context, hash string) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var reversed []*Entry
	cur := hash
	for {
		e, ok := m.entries[cur]
		if !ok {
			return nil, ErrNotFound{Hash: cur}
		}
		cp := *e
		reversed = append(reversed, &cp)
		if e.ParentHash == nil {
			break
		}
		cur = *e.ParentHash
	}

	// Reverse to chronological order.
	out := make([]*Entry, len(reversed))
	for i, e := range reversed {
		out[len(reversed)-1-i] = e
	}
	return out, nil
}

func (m *MemoryArchive) Close() error {
	return nil
}
