package persistence

import (
	"context"
	"errors"
	"sync"
)

// ErrNoDocument is returned when a workspace has no stored document of
// the requested kind; callers fill defaults instead of failing.
var ErrNoDocument = errors.New("persistence: no document")

// KV is durable key-value persistence for nested settings documents, one
// document per (kind, workspace id).
type KV interface {
	Load(ctx context.Context, kind, workspaceID string) ([]byte, error)
	Save(ctx context.Context, kind, workspaceID string, doc []byte) error
	List(ctx context.Context, kind string) (map[string][]byte, error)
}

// MemoryKV is the in-process fallback store. It backs tests and the
// degraded mode entered when the durable store is unreachable.
type MemoryKV struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{docs: make(map[string]map[string][]byte)}
}

func (m *MemoryKV) Load(_ context.Context, kind, workspaceID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[kind][workspaceID]
	if !ok {
		return nil, ErrNoDocument
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (m *MemoryKV) Save(_ context.Context, kind, workspaceID string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[kind] == nil {
		m.docs[kind] = make(map[string][]byte)
	}
	stored := make([]byte, len(doc))
	copy(stored, doc)
	m.docs[kind][workspaceID] = stored
	return nil
}

func (m *MemoryKV) List(_ context.Context, kind string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(m.docs[kind]))
	for id, doc := range m.docs[kind] {
		copied := make([]byte, len(doc))
		copy(copied, doc)
		out[id] = copied
	}
	return out, nil
}
