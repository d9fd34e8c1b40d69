// Package postgres implements core.Store on a pgx connection pool.
//
// Records live in one table per entity, named by the registry. SQL is built
// only from registered table and field names, quoted as identifiers; caller
// values always travel as bind parameters.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store is a core.Store backed by Postgres. The pool is owned by the caller.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New wraps pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetRecord implements core.RecordReader.
func (s *Store) GetRecord(ctx context.Context, def core.EntityDefinition, id string) (*core.Record, error) {
	return getRecord(ctx, s.pool, def, id, false)
}

// FindByNaturalKey implements core.RecordReader.
func (s *Store) FindByNaturalKey(ctx context.Context, def core.EntityDefinition, key string) (*core.Record, error) {
	return findByNaturalKey(ctx, s.pool, def, key)
}

// Begin starts a read-committed transaction. Updates and deletes lock their
// target row with SELECT ... FOR UPDATE.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// selectColumns lists the columns read for every record query.
func selectColumns(def core.EntityDefinition) string {
	cols := []string{"id", "created_at", "updated_at"}
	for _, name := range def.Columns() {
		cols = append(cols, quoteIdentifier(name))
	}
	return strings.Join(cols, ", ")
}

func getRecord(ctx context.Context, db DBTX, def core.EntityDefinition, id string, lock bool) (*core.Record, error) {
	pgID, ok := toPgUUID(id)
	if !ok {
		return nil, core.ErrNotFound
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selectColumns(def), quoteIdentifier(def.Info.Table))
	if lock {
		query += " FOR UPDATE"
	}

	rec, err := scanRecord(db.QueryRow(ctx, query, pgID), def)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", def.Info.Key, id, err)
	}
	return rec, nil
}

func findByNaturalKey(ctx context.Context, db DBTX, def core.EntityDefinition, key string) (*core.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		selectColumns(def), quoteIdentifier(def.Info.Table), quoteIdentifier(def.Info.NaturalKey))

	rec, err := scanRecord(db.QueryRow(ctx, query, key), def)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", def.Info.Key, def.Info.NaturalKey, err)
	}
	return rec, nil
}
