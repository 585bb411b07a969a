package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/composedlabyrinth/SwiftKYC/internal/model"
)

// MemoryStore keeps customers, sessions and documents in maps guarded by a
// RWMutex. Records are copied on the way in and out so callers never share
// state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	customers map[string]*model.Customer
	byMobile  map[string]string
	sessions  map[string]*model.Session
	documents map[string]*model.Document
	// docOrder lists document ids per session in creation order.
	docOrder map[string][]string
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]*model.Customer),
		byMobile:  make(map[string]string),
		sessions:  make(map[string]*model.Session),
		documents: make(map[string]*model.Document),
		docOrder:  make(map[string][]string),
	}
}

// UpsertCustomer inserts c, or returns the customer already registered with
// the same mobile after refreshing its name when c carries a different one.
func (m *MemoryStore) UpsertCustomer(_ context.Context, c *model.Customer) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byMobile[c.Mobile]; ok {
		existing := m.customers[id]
		if c.Name != "" && existing.Name != c.Name {
			existing.Name = c.Name
		}
		out := *existing
		return &out, nil
	}
	stored := *c
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.customers[stored.ID] = &stored
	m.byMobile[stored.Mobile] = stored.ID
	out := stored
	return &out, nil
}

// GetCustomer returns a customer copy.
func (m *MemoryStore) GetCustomer(_ context.Context, id string) (*model.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

// CreateSession stores a new session.
func (m *MemoryStore) CreateSession(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *s
	m.sessions[s.ID] = &stored
	return nil
}

// GetSession returns a session copy.
func (m *MemoryStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

// UpdateSession replaces a stored session.
func (m *MemoryStore) UpdateSession(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	stored := *s
	m.sessions[s.ID] = &stored
	return nil
}

// CreateDocument stores a new document; it becomes the session's latest.
func (m *MemoryStore) CreateDocument(_ context.Context, d *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[d.SessionID]; !ok {
		return ErrNotFound
	}
	stored := *d
	m.documents[d.ID] = &stored
	m.docOrder[d.SessionID] = append(m.docOrder[d.SessionID], d.ID)
	return nil
}

// UpdateDocument replaces a stored document.
func (m *MemoryStore) UpdateDocument(_ context.Context, d *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[d.ID]; !ok {
		return ErrNotFound
	}
	stored := *d
	m.documents[d.ID] = &stored
	return nil
}

// ListDocuments returns a session's documents newest first.
func (m *MemoryStore) ListDocuments(_ context.Context, sessionID string) ([]*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.docOrder[sessionID]
	out := make([]*model.Document, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		d := *m.documents[ids[i]]
		out = append(out, &d)
	}
	return out, nil
}

// ListSessions returns the sessions matching f, newest first.
func (m *MemoryStore) ListSessions(_ context.Context, f model.SessionFilter) ([]model.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.SessionSummary
	for id, s := range m.sessions {
		ids := m.docOrder[id]
		types := make([]model.DocType, 0, len(ids))
		for _, docID := range ids {
			types = append(types, m.documents[docID].DocType)
		}
		if !f.Matches(s, types) {
			continue
		}
		summary := model.SessionSummary{Session: *s}
		if len(types) > 0 {
			latest := types[len(types)-1]
			summary.LatestDocType = &latest
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
