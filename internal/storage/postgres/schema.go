package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/JonMunkholm/stockroom/internal/core"
)

//go:embed sql/audit.sql
var auditSchema string

// columnType maps a field type to its Postgres column type.
func columnType(t core.FieldType) string {
	switch t {
	case core.FieldNumeric:
		return "numeric"
	case core.FieldDate:
		return "date"
	case core.FieldBool:
		return "boolean"
	default:
		return "text"
	}
}

// entityDDL returns the statements that create def's table and bring its
// columns up to date. Every identifier comes from the registry.
func entityDDL(def core.EntityDefinition) []string {
	table := quoteIdentifier(def.Info.Table)
	stmts := []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id uuid PRIMARY KEY,
    created_at timestamptz NOT NULL,
    updated_at timestamptz NOT NULL
)`, table)}

	for _, spec := range def.FieldSpecs {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
			table, quoteIdentifier(spec.Name), columnType(spec.Type)))
	}

	stmts = append(stmts, fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		quoteIdentifier(def.Info.Table+"_"+def.Info.NaturalKey+"_key"), table, quoteIdentifier(def.Info.NaturalKey)))
	return stmts
}

// EnsureSchema creates the audit log and one table per registered entity.
// It is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if _, err := tx.Exec(ctx, auditSchema); err != nil {
		return fmt.Errorf("ensure schema: audit_log: %w", err)
	}

	for _, def := range core.All() {
		for _, stmt := range entityDDL(def) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema: %s: %w", def.Info.Table, err)
			}
		}
	}

	return tx.Commit(ctx)
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
