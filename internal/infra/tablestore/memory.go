package tablestore

import (
	"context"
	"sort"
	"sync"

	"github.com/pandemetrix/pandemetrix/internal/domain/etl"
)

// MemoryStore keeps collections in process memory. Used as a fallback
// when no postgres DSN is configured and in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]map[string]any
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]map[string]any)}
}

// Replace swaps the named collection wholesale.
func (s *MemoryStore) Replace(_ context.Context, name string, records []map[string]any) error {
	dup := make([]map[string]any, len(records))
	for i, rec := range records {
		row := make(map[string]any, len(rec))
		for k, v := range rec {
			row[k] = v
		}
		dup[i] = row
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = dup
	return nil
}

// Fetch returns all records of a collection; missing collections yield
// an empty result, not an error.
func (s *MemoryStore) Fetch(_ context.Context, name string) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.collections[name]
	out := make([]map[string]any, len(records))
	copy(out, records)
	return out, nil
}

// Infos lists the stored collections.
func (s *MemoryStore) Infos(_ context.Context) ([]etl.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]etl.CollectionInfo, 0, len(names))
	for _, name := range names {
		records := s.collections[name]
		infos = append(infos, etl.CollectionInfo{
			Name:    name,
			Rows:    len(records),
			Columns: columnsOf(records),
		})
	}
	return infos, nil
}

func columnsOf(records []map[string]any) []string {
	if len(records) == 0 {
		return nil
	}
	cols := make([]string, 0, len(records[0]))
	for name := range records[0] {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}
