package records

import (
	"context"
	"sync"

	"github.com/pagefaves/pagefaves/internal/domain"
)

// MemoryStore keeps records in process memory. It backs dev mode and
// tests, where losing state on restart is acceptable.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record // code -> record
	shares  map[string]string  // share token -> code
}

// NewMemoryStore creates an empty in-memory record store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		shares:  make(map[string]string),
	}
}

// clone copies a record including its bookmark slice, so callers can
// mutate what they get back without touching stored state.
func clone(rec *Record) *Record {
	cp := *rec
	if rec.Bookmarks != nil {
		cp.Bookmarks = make([]domain.Bookmark, len(rec.Bookmarks))
		copy(cp.Bookmarks, rec.Bookmarks)
	}
	return &cp
}

func (m *MemoryStore) Get(_ context.Context, code string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[code]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

func (m *MemoryStore) Save(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := clone(rec)
	m.records[cp.Code] = cp
	if cp.ShareToken != "" {
		m.shares[cp.ShareToken] = cp.Code
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[code]
	if !ok {
		return nil
	}
	if rec.ShareToken != "" {
		delete(m.shares, rec.ShareToken)
	}
	delete(m.records, code)
	return nil
}

func (m *MemoryStore) All(_ context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, clone(rec))
	}
	return recs, nil
}

func (m *MemoryStore) CodeForShareToken(_ context.Context, token string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	code, ok := m.shares[token]
	if !ok {
		return "", ErrNotFound
	}
	return code, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
