package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when an update or delete target does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownEntity is returned for entity keys not in the registry.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrValidation marks a mutation blocked by rule violations.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate marks a mutation blocked by a natural-key conflict.
	ErrDuplicate = errors.New("duplicate natural key")

	// ErrKeyConflict is returned by Tx writes when another transaction took
	// the natural key after the duplicate check ran.
	ErrKeyConflict = errors.New("natural key taken")

	// ErrBatchValidation marks an import rejected before any row was written.
	ErrBatchValidation = errors.New("import rejected: batch validation failed")

	// ErrTransactionFailed wraps unexpected storage errors. The enclosing
	// transaction has been rolled back.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInvalidAudit is returned for audit entries whose snapshots contradict
	// their action.
	ErrInvalidAudit = errors.New("invalid audit entry")

	// ErrMissingActor is returned when a mutation has no actor to attribute.
	ErrMissingActor = errors.New("missing actor id")
)

// BlockedError describes a mutation stopped by blocking issues.
// It matches ErrValidation, and ErrDuplicate when a natural-key conflict
// is among the issues.
type BlockedError struct {
	Issues    []ValidationIssue
	Duplicate bool
}

func (e *BlockedError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.Error()
	}
	kind := ErrValidation.Error()
	if e.Duplicate {
		kind = ErrDuplicate.Error()
	}
	return fmt.Sprintf("%s: %s", kind, strings.Join(parts, "; "))
}

func (e *BlockedError) Is(target error) bool {
	return target == ErrValidation || (e.Duplicate && target == ErrDuplicate)
}

func transactionFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransactionFailed, op, err)
}
