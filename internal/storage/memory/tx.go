package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/stockroom/internal/core"
)

var errTxDone = errors.New("transaction already finished")

type tx struct {
	store   *Store
	records map[string]map[string]*core.Record
	audit   []core.AuditEntry
	done    bool
}

func (t *tx) GetRecord(_ context.Context, def core.EntityDefinition, id string) (*core.Record, error) {
	if t.done {
		return nil, errTxDone
	}
	return getRecord(t.records, def, id)
}

func (t *tx) FindByNaturalKey(_ context.Context, def core.EntityDefinition, key string) (*core.Record, error) {
	if t.done {
		return nil, errTxDone
	}
	return findByNaturalKey(t.records, def, key)
}

// LockRecord is GetRecord; the transaction already holds exclusive access.
func (t *tx) LockRecord(ctx context.Context, def core.EntityDefinition, id string) (*core.Record, error) {
	return t.GetRecord(ctx, def, id)
}

func (t *tx) InsertRecord(ctx context.Context, def core.EntityDefinition, rec *core.Record) error {
	inserted, err := t.InsertRecordIfAbsent(ctx, def, rec)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("insert %s %q: %w", def.Info.Key, rec.NaturalKey(def), core.ErrKeyConflict)
	}
	return nil
}

func (t *tx) InsertRecordIfAbsent(ctx context.Context, def core.EntityDefinition, rec *core.Record) (bool, error) {
	if t.done {
		return false, errTxDone
	}
	if _, err := findByNaturalKey(t.records, def, rec.NaturalKey(def)); err == nil {
		return false, nil
	}

	byID, ok := t.records[def.Info.Key]
	if !ok {
		byID = make(map[string]*core.Record)
		t.records[def.Info.Key] = byID
	}
	if _, exists := byID[rec.ID]; exists {
		return false, fmt.Errorf("insert %s: duplicate id %s", def.Info.Key, rec.ID)
	}
	byID[rec.ID] = rec.Clone()
	return true, nil
}

func (t *tx) UpdateRecord(_ context.Context, def core.EntityDefinition, rec *core.Record) error {
	if t.done {
		return errTxDone
	}
	byID := t.records[def.Info.Key]
	if _, ok := byID[rec.ID]; !ok {
		return core.ErrNotFound
	}
	if other, err := findByNaturalKey(t.records, def, rec.NaturalKey(def)); err == nil && other.ID != rec.ID {
		return fmt.Errorf("update %s %q: %w", def.Info.Key, rec.NaturalKey(def), core.ErrKeyConflict)
	}
	byID[rec.ID] = rec.Clone()
	return nil
}

func (t *tx) DeleteRecord(_ context.Context, def core.EntityDefinition, id string) error {
	if t.done {
		return errTxDone
	}
	byID := t.records[def.Info.Key]
	if _, ok := byID[id]; !ok {
		return core.ErrNotFound
	}
	delete(byID, id)
	return nil
}

func (t *tx) AppendAudit(_ context.Context, entry *core.AuditEntry) error {
	if t.done {
		return errTxDone
	}
	t.audit = append(t.audit, cloneEntry(*entry))
	return nil
}

func (t *tx) Commit(context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true

	t.store.mu.Lock()
	t.store.records = t.records
	t.store.audit = append(t.store.audit, t.audit...)
	t.store.mu.Unlock()

	<-t.store.txSlot
	return nil
}

func (t *tx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	<-t.store.txSlot
	return nil
}
