package storage

import "sync"

// Memory is a Store that keeps records in a process-local map. It is
// the default backend: no durability at all, matching the source's own
// "TODO: DO COMMIT" stub, but shaped like a real one so swapping in
// Sqlite or Redis is a one-line change.
type Memory struct {
	mu      sync.Mutex
	records map[uint64]Record
}

// NewMemory returns a ready-to-use in-memory Store.
func NewMemory() *Memory {
	return &Memory{records: make(map[uint64]Record)}
}

func (m *Memory) Load(paxosID uint64) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[paxosID]
	return rec, ok, nil
}

func (m *Memory) Save(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.PaxosID] = rec
	return nil
}

func (m *Memory) Close() error {
	return nil
}
