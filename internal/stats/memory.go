package stats

import (
	"context"
	"sync"
)

// Memory is an in-process Aggregator used when no statistics service is
// configured, and in tests.
type Memory struct {
	mu   sync.RWMutex
	hits []Hit
}

// NewMemory returns an empty Memory aggregator.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordHit(_ context.Context, hit Hit) error {
	m.mu.Lock()
	m.hits = append(m.hits, hit)
	m.mu.Unlock()
	return nil
}

func (m *Memory) QueryViews(_ context.Context, q ViewQuery) (map[string]int64, error) {
	wanted := make(map[string]bool, len(q.URIs))
	for _, uri := range q.URIs {
		wanted[uri] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int64, len(q.URIs))
	seen := make(map[[2]string]bool)
	for _, h := range m.hits {
		if !wanted[h.URI] || h.Timestamp.Before(q.Start) || h.Timestamp.After(q.End) {
			continue
		}
		if q.Unique {
			key := [2]string{h.URI, h.IP}
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out[h.URI]++
	}
	return out, nil
}

// Hits returns a copy of everything recorded so far.
func (m *Memory) Hits() []Hit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Hit(nil), m.hits...)
}
