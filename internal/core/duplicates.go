package core

import (
	"context"
	"errors"
	"fmt"
)

// CheckDuplicates looks up the candidate's natural key in r. A record whose
// identity equals excludeID is the candidate itself and never conflicts.
// Returns at most one blocking issue, on the natural-key field, naming the
// conflicting record.
func CheckDuplicates(ctx context.Context, r RecordReader, def EntityDefinition, fields Fields, excludeID string) ([]ValidationIssue, error) {
	field := def.Info.NaturalKey
	key := fields.Text(field)
	if key == "" {
		return []ValidationIssue{}, nil
	}

	existing, err := r.FindByNaturalKey(ctx, def, key)
	if errors.Is(err, ErrNotFound) {
		return []ValidationIssue{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check duplicates: %w", err)
	}
	if existing.ID == excludeID {
		return []ValidationIssue{}, nil
	}

	return []ValidationIssue{duplicateIssue(def, key, existing.ID)}, nil
}

// duplicateIssue reports key as taken. existingID may be unknown.
func duplicateIssue(def EntityDefinition, key, existingID string) ValidationIssue {
	field := def.Info.NaturalKey
	msg := fmt.Sprintf("%s %q already exists", def.Label(field), key)
	if existingID != "" {
		msg += fmt.Sprintf(" (record %s)", existingID)
	}
	return ValidationIssue{Field: field, Message: msg, Severity: SeverityError}
}
