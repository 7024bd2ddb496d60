package trail

import (
	"context"
	"database/sql"
	"slices"
	"sync"
)

// DefaultRecentLimit is used when Recent is called with a non-positive limit.
const DefaultRecentLimit = 250

// Execer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store persists entries. Append must write through exec so entries share
// the caller's transaction.
type Store interface {
	Append(ctx context.Context, exec Execer, entries []Entry) error
	// Recent returns up to limit entries for ownerID, newest first.
	Recent(ctx context.Context, ownerID string, limit int) ([]Entry, error)
}

// MemoryStore keeps entries in process. It ignores exec.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, _ Execer, entries []Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, entries...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Recent(ctx context.Context, ownerID string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	m.mu.RLock()
	var out []Entry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].OwnerID == ownerID {
			out = append(out, m.entries[i])
		}
	}
	m.mu.RUnlock()

	// Append order is commit order; timestamps from different batches can
	// tie, so ties keep the later append first.
	slices.SortStableFunc(out, func(a, b Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out, nil
}

// Len reports the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
