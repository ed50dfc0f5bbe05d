package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"MarketAdvisor/internal/domain"
)

// Memory keeps artifacts in process memory; useful for single-process runs and tests.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{items: map[string][]byte{}}
}

// Put stores an encoded copy of the artifact.
func (m *Memory) Put(_ context.Context, key string, artifact domain.Artifact) error {
	raw, err := encode(artifact)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[key] = raw
	m.mu.Unlock()
	return nil
}

// Get returns the artifact stored under key.
func (m *Memory) Get(_ context.Context, key string) (domain.Artifact, error) {
	m.mu.RLock()
	raw, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return domain.Artifact{}, notFound(key)
	}
	return decode(raw)
}

// List returns artifacts under prefix in key order.
func (m *Memory) List(_ context.Context, prefix string) ([]domain.Artifact, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	raws := make([][]byte, len(keys))
	for i, k := range keys {
		raws[i] = m.items[k]
	}
	m.mu.RUnlock()

	out := make([]domain.Artifact, 0, len(raws))
	for _, raw := range raws {
		a, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
