package store

import (
	"context"
	"sync"
	"time"

	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// MemoryStore keeps records in process memory. The RWMutex lets any number of
// readers proceed together while writers get exclusive access.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]*model.Document
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*model.Document)}
}

func (m *MemoryStore) List(_ context.Context) ([]*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Document, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.docs[id].Clone())
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc == nil {
		return errNilDocument
	}
	prev, exists := m.docs[doc.ID]
	var prevUpdated time.Time
	if exists {
		prevUpdated = prev.UpdatedAt
	}
	if err := prepareSave(doc, prevUpdated); err != nil {
		return err
	}
	if !exists {
		m.order = append([]string{doc.ID}, m.order...)
	}
	m.docs[doc.ID] = doc.Clone()
	return nil
}

func (m *MemoryStore) SetStatus(_ context.Context, id string, status model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil
	}
	doc.Status = status
	doc.Touch(clock())
	return nil
}

func (m *MemoryStore) Close() error { return nil }
