package postgres

import (
	"fmt"
	"strings"
	"time"
)

// whereBuilder accumulates AND-ed conditions with numbered placeholders.
// Column names are trusted constants; values become bind parameters.
type whereBuilder struct {
	conditions []string
	args       []any
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{}
}

// Add appends "column = value" unless value is empty.
func (w *whereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	w.args = append(w.args, value)
	w.conditions = append(w.conditions, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

// AddTimeRange appends from <= column < to, skipping zero bounds.
func (w *whereBuilder) AddTimeRange(column string, from, to time.Time) {
	if !from.IsZero() {
		w.args = append(w.args, from)
		w.conditions = append(w.conditions, fmt.Sprintf("%s >= $%d", column, len(w.args)))
	}
	if !to.IsZero() {
		w.args = append(w.args, to)
		w.conditions = append(w.conditions, fmt.Sprintf("%s < $%d", column, len(w.args)))
	}
}

// Build returns the clause (with a leading " WHERE ", or empty) and its args.
func (w *whereBuilder) Build() (string, []any) {
	if len(w.conditions) == 0 {
		return "", w.args
	}
	return " WHERE " + strings.Join(w.conditions, " AND "), w.args
}
