package refresh

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	opts Options

	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:    opts,
		records: make(map[string]Record),
	}
}

func (s *MemoryStore) Replace(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.OwnerID] = rec
	return nil
}

func (s *MemoryStore) Rotate(_ context.Context, presented [32]byte, next Record, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[next.OwnerID]
	if !ok {
		return ErrNotFound
	}
	if cur.Expired(now) {
		delete(s.records, next.OwnerID)
		return ErrExpired
	}
	if subtle.ConstantTimeCompare(cur.TokenHash[:], presented[:]) != 1 {
		if s.opts.RevokeOnReuse {
			delete(s.records, next.OwnerID)
		}
		return ErrMismatch
	}

	s.records[next.OwnerID] = next
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ownerID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[ownerID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, ownerID)
	return nil
}
