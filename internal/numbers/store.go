// internal/numbers/store.go

package numbers

import (
	"context"
	"sync"
)

// Store persists lifecycle records keyed by phone number. The lifecycle
// manager is storage-agnostic: the in-memory store is the default, the
// Postgres store adds durability across restarts behind the same interface.
type Store interface {
	Put(ctx context.Context, record *Record) error
	Get(ctx context.Context, phoneNumber string) (*Record, error)
	Delete(ctx context.Context, phoneNumber string) error
	List(ctx context.Context) ([]*Record, error)
}

// MemoryStore is the default in-memory record store
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

// Put inserts or replaces the record for its phone number
func (s *MemoryStore) Put(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.PhoneNumber] = record.Clone()
	return nil
}

// Get returns the record for a phone number, or ErrNotFound
func (s *MemoryStore) Get(ctx context.Context, phoneNumber string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[phoneNumber]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

// Delete removes the record for a phone number; deleting an absent record is
// not an error
func (s *MemoryStore) Delete(ctx context.Context, phoneNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, phoneNumber)
	return nil
}

// List returns all stored records
func (s *MemoryStore) List(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record.Clone())
	}
	return records, nil
}
