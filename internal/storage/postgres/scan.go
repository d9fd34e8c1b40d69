package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// fieldScanner holds a typed destination for one column.
type fieldScanner interface {
	dest() any
	value() (any, bool)
}

type textField struct{ v pgtype.Text }

func (f *textField) dest() any { return &f.v }
func (f *textField) value() (any, bool) {
	return f.v.String, f.v.Valid
}

type numericField struct{ v pgtype.Float8 }

func (f *numericField) dest() any { return &f.v }
func (f *numericField) value() (any, bool) {
	return f.v.Float64, f.v.Valid
}

type dateField struct{ v pgtype.Date }

func (f *dateField) dest() any { return &f.v }
func (f *dateField) value() (any, bool) {
	if !f.v.Valid {
		return nil, false
	}
	t := f.v.Time
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

type boolField struct{ v pgtype.Bool }

func (f *boolField) dest() any { return &f.v }
func (f *boolField) value() (any, bool) {
	return f.v.Bool, f.v.Valid
}

func newFieldScanner(t core.FieldType) fieldScanner {
	switch t {
	case core.FieldNumeric:
		return &numericField{}
	case core.FieldDate:
		return &dateField{}
	case core.FieldBool:
		return &boolField{}
	default:
		return &textField{}
	}
}

// scanRecord reads one row produced by selectColumns(def).
func scanRecord(row interface{ Scan(...any) error }, def core.EntityDefinition) (*core.Record, error) {
	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	scanners := make([]fieldScanner, len(def.FieldSpecs))
	dests := []any{&id, &createdAt, &updatedAt}
	for i, spec := range def.FieldSpecs {
		scanners[i] = newFieldScanner(spec.Type)
		dests = append(dests, scanners[i].dest())
	}

	if err := row.Scan(dests...); err != nil {
		return nil, err
	}

	fields := make(core.Fields, len(def.FieldSpecs))
	for i, spec := range def.FieldSpecs {
		if v, ok := scanners[i].value(); ok {
			fields[spec.Name] = v
		}
	}

	return &core.Record{
		ID:        pgUUIDToString(id),
		Entity:    def.Info.Key,
		Fields:    fields,
		CreatedAt: createdAt.Time.UTC(),
		UpdatedAt: updatedAt.Time.UTC(),
	}, nil
}

func toPgUUID(s string) (pgtype.UUID, bool) {
	if s == "" {
		return pgtype.UUID{Valid: false}, false
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}, false
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, true
}

func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
