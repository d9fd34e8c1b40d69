package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/stockroom/internal/core"
)

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetRecord(ctx context.Context, def core.EntityDefinition, id string) (*core.Record, error) {
	return getRecord(ctx, t.tx, def, id, false)
}

func (t *pgTx) FindByNaturalKey(ctx context.Context, def core.EntityDefinition, key string) (*core.Record, error) {
	return findByNaturalKey(ctx, t.tx, def, key)
}

func (t *pgTx) LockRecord(ctx context.Context, def core.EntityDefinition, id string) (*core.Record, error) {
	return getRecord(ctx, t.tx, def, id, true)
}

func (t *pgTx) InsertRecord(ctx context.Context, def core.EntityDefinition, rec *core.Record) error {
	query, args, err := insertStatement(def, rec, false)
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", def.Info.Key, keyConflict(err))
	}
	return nil
}

func (t *pgTx) InsertRecordIfAbsent(ctx context.Context, def core.EntityDefinition, rec *core.Record) (bool, error) {
	query, args, err := insertStatement(def, rec, true)
	if err != nil {
		return false, err
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", def.Info.Key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) UpdateRecord(ctx context.Context, def core.EntityDefinition, rec *core.Record) error {
	id, ok := toPgUUID(rec.ID)
	if !ok {
		return core.ErrNotFound
	}

	cols := def.Columns()
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for i, name := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(name), i+1))
		args = append(args, rec.Fields[name])
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(cols)+1))
	args = append(args, rec.UpdatedAt, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		quoteIdentifier(def.Info.Table), strings.Join(sets, ", "), len(args))

	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", def.Info.Key, keyConflict(err))
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteRecord(ctx context.Context, def core.EntityDefinition, id string) error {
	pgID, ok := toPgUUID(id)
	if !ok {
		return core.ErrNotFound
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", quoteIdentifier(def.Info.Table))
	tag, err := t.tx.Exec(ctx, query, pgID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", def.Info.Key, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (t *pgTx) AppendAudit(ctx context.Context, entry *core.AuditEntry) error {
	return insertAudit(ctx, t.tx, entry)
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback ignores pgx.ErrTxClosed so it can always be deferred.
func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// insertStatement builds an INSERT for every registered column. With
// skipExisting the statement does nothing when the natural key is taken.
func insertStatement(def core.EntityDefinition, rec *core.Record, skipExisting bool) (string, []any, error) {
	id, ok := toPgUUID(rec.ID)
	if !ok {
		return "", nil, fmt.Errorf("insert %s: invalid record id %q", def.Info.Key, rec.ID)
	}

	cols := []string{"id", "created_at", "updated_at"}
	args := []any{id, rec.CreatedAt, rec.UpdatedAt}
	for _, name := range def.Columns() {
		cols = append(cols, quoteIdentifier(name))
		args = append(args, rec.Fields[name])
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(def.Info.Table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if skipExisting {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", quoteIdentifier(def.Info.NaturalKey))
	}
	return query, args, nil
}

// uniqueViolation is the SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

// keyConflict marks unique violations with core.ErrKeyConflict. The only
// unique index on entity tables besides the primary key is the natural key.
func keyConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %w", core.ErrKeyConflict, err)
	}
	return err
}
