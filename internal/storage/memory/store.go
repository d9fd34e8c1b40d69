// Package memory provides an in-process core.Store for tests, demos and the
// CLI's dry runs. Transactions are serialized: Begin waits for the previous
// transaction to end, works on a private copy, and Commit swaps the copy in.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// Store is a transactional in-memory record and audit store.
type Store struct {
	txSlot chan struct{}

	mu      sync.RWMutex
	records map[string]map[string]*core.Record // entity -> id -> record
	audit   []core.AuditEntry
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		txSlot:  make(chan struct{}, 1),
		records: make(map[string]map[string]*core.Record),
	}
}

// GetRecord implements core.RecordReader.
func (s *Store) GetRecord(_ context.Context, def core.EntityDefinition, id string) (*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRecord(s.records, def, id)
}

// FindByNaturalKey implements core.RecordReader.
func (s *Store) FindByNaturalKey(_ context.Context, def core.EntityDefinition, key string) (*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findByNaturalKey(s.records, def, key)
}

// Begin waits for exclusive write access and snapshots the current state.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	select {
	case s.txSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("begin: %w", ctx.Err())
	}

	s.mu.RLock()
	working := make(map[string]map[string]*core.Record, len(s.records))
	for entity, byID := range s.records {
		working[entity] = make(map[string]*core.Record, len(byID))
		for id, rec := range byID {
			working[entity][id] = rec
		}
	}
	s.mu.RUnlock()

	return &tx{store: s, records: working}, nil
}

// QueryAudit returns matching entries newest first.
func (s *Store) QueryAudit(_ context.Context, filter core.AuditFilter) ([]core.AuditEntry, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []core.AuditEntry{}
	skipped := 0
	for _, e := range s.newestFirst() {
		if !filter.Matches(e) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, cloneEntry(e))
		if len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// RecordHistory returns every entry for one record, newest first.
func (s *Store) RecordHistory(_ context.Context, workflow, recordID string) ([]core.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []core.AuditEntry{}
	for _, e := range s.newestFirst() {
		if e.Workflow == workflow && e.RecordID == recordID {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Count returns the number of stored records of one entity.
func (s *Store) Count(entity string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[entity])
}

// AuditLen returns the number of audit entries.
func (s *Store) AuditLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audit)
}

// newestFirst must be called with mu held. Entries are appended in commit
// order, so reverse order breaks timestamp ties by recency.
func (s *Store) newestFirst() []core.AuditEntry {
	out := slices.Clone(s.audit)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b core.AuditEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

// cloneEntry copies the snapshot maps so stored entries never share state
// with callers. Snapshot values are scalars.
func cloneEntry(e core.AuditEntry) core.AuditEntry {
	e.OldValues = maps.Clone(e.OldValues)
	e.NewValues = maps.Clone(e.NewValues)
	return e
}

func getRecord(records map[string]map[string]*core.Record, def core.EntityDefinition, id string) (*core.Record, error) {
	rec, ok := records[def.Info.Key][id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return rec.Clone(), nil
}

func findByNaturalKey(records map[string]map[string]*core.Record, def core.EntityDefinition, key string) (*core.Record, error) {
	for _, rec := range records[def.Info.Key] {
		if rec.NaturalKey(def) == key {
			return rec.Clone(), nil
		}
	}
	return nil, core.ErrNotFound
}
