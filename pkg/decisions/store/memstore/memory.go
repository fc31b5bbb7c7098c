package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu         sync.RWMutex
	partitions map[string]struct{}
	tables     map[store.Copy]map[string][]store.Row

	// Err, when set, is returned by every write. Tests use it to simulate
	// an unreachable backend.
	Err error
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		partitions: make(map[string]struct{}),
		tables: map[store.Copy]map[string][]store.Row{
			store.Public:  make(map[string][]store.Row),
			store.Private: make(map[string][]store.Row),
		},
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// AppendRow implements store.Store.
func (s *Store) AppendRow(ctx context.Context, c store.Copy, partition string, r store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}

	table := s.table(c)
	if r.Identifier != "" {
		for _, existing := range table[partition] {
			if existing.Identifier == r.Identifier {
				return fmt.Errorf("%w: identifier %s in %s/%s", internalerr.ErrDuplicate, r.Identifier, c, partition)
			}
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	s.partitions[partition] = struct{}{}
	table[partition] = append(table[partition], r)
	return nil
}

// FindRowByIdentifier implements store.Store.
func (s *Store) FindRowByIdentifier(ctx context.Context, c store.Copy, identifier string) (store.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if identifier == "" {
		return store.Location{}, internalerr.ErrNotFound
	}

	table := s.tables[c]
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for i, r := range table[name] {
			if r.Identifier == identifier && !r.Deleted {
				return store.Location{Partition: name, Index: i + 1}, nil
			}
		}
	}
	return store.Location{}, internalerr.ErrNotFound
}

// ReadAllRows implements store.Store.
func (s *Store) ReadAllRows(ctx context.Context, c store.Copy, partition string) ([]store.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.tables[c][partition]
	out := make([]store.Row, len(rows))
	copy(out, rows)
	return out, nil
}

// ListPartitions implements store.Store.
func (s *Store) ListPartitions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.partitions))
	for name := range s.partitions {
		if name == store.ReservedPartition {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// DeleteRow implements store.Store.
func (s *Store) DeleteRow(ctx context.Context, partition string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}

	rows := s.tables[store.Public][partition]
	if index < 1 || index > len(rows) {
		return internalerr.ErrNotFound
	}
	s.tables[store.Public][partition] = append(rows[:index-1:index-1], rows[index:]...)
	return nil
}

// MarkTombstone implements store.Store.
func (s *Store) MarkTombstone(ctx context.Context, partition string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}

	rows := s.tables[store.Private][partition]
	if index < 1 || index > len(rows) {
		return internalerr.ErrNotFound
	}
	rows[index-1].Deleted = true
	return nil
}

// SeedPartition registers an empty partition, e.g. the reserved one.
func (s *Store) SeedPartition(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions[name] = struct{}{}
}

func (s *Store) table(c store.Copy) map[string][]store.Row {
	t, ok := s.tables[c]
	if !ok {
		t = make(map[string][]store.Row)
		s.tables[c] = t
	}
	return t
}
