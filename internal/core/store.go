package core

import "context"

// RecordReader reads records of a registered entity.
// Implementations return ErrNotFound when nothing matches.
type RecordReader interface {
	GetRecord(ctx context.Context, def EntityDefinition, id string) (*Record, error)
	FindByNaturalKey(ctx context.Context, def EntityDefinition, key string) (*Record, error)
}

// AuditAppender appends audit entries. Tx satisfies it so an audit entry is
// written in the same transaction as the change it describes.
type AuditAppender interface {
	AppendAudit(ctx context.Context, entry *AuditEntry) error
}

// Tx is one storage transaction. Rollback after Commit is a no-op, so callers
// can always defer it.
type Tx interface {
	RecordReader
	AuditAppender

	// LockRecord loads a record and holds it until the transaction ends.
	LockRecord(ctx context.Context, def EntityDefinition, id string) (*Record, error)
	InsertRecord(ctx context.Context, def EntityDefinition, rec *Record) error
	// InsertRecordIfAbsent inserts unless the natural key already exists.
	// It reports whether a row was written.
	InsertRecordIfAbsent(ctx context.Context, def EntityDefinition, rec *Record) (bool, error)
	UpdateRecord(ctx context.Context, def EntityDefinition, rec *Record) error
	DeleteRecord(ctx context.Context, def EntityDefinition, id string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the storage collaborator. The process entry point owns its
// lifecycle; the core only borrows it.
type Store interface {
	RecordReader

	Begin(ctx context.Context) (Tx, error)
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
	RecordHistory(ctx context.Context, workflow, recordID string) ([]AuditEntry, error)
	Ping(ctx context.Context) error
}
