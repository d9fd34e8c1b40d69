package core

// service_mutations.go sequences single-record writes.
//
// Each call is one storage transaction:
//
//	begin → load prior state (update/delete) → validate → dedup-check
//	      → [blocked: rollback, return issues] → compute metrics → persist
//	      → append audit → commit
//
// The audit append shares the transaction with the write, so a change is
// never committed without its audit entry and a failed write leaves no audit
// entry behind. Every exit path before Commit rolls back explicitly via the
// deferred Rollback, which is a no-op once committed.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/stockroom/internal/logging"
)

// MutationResult is the outcome of a create or update. When Validation is
// not valid the mutation was blocked and Record is nil.
type MutationResult struct {
	Record     *Record          `json:"record,omitempty"`
	Validation ValidationResult `json:"validation"`
	AuditID    string           `json:"auditId,omitempty"`

	duplicate bool
}

// Blocked reports whether blocking issues stopped the mutation.
func (r *MutationResult) Blocked() bool {
	return !r.Validation.IsValid
}

// Err converts a blocked result to a *BlockedError, or nil.
func (r *MutationResult) Err() error {
	if !r.Blocked() {
		return nil
	}
	return &BlockedError{Issues: r.Validation.Errors, Duplicate: r.duplicate}
}

// DeleteResult confirms a deletion.
type DeleteResult struct {
	ID      string `json:"id"`
	Entity  string `json:"entity"`
	AuditID string `json:"auditId"`
}

// CreateRecord validates and persists a new record.
func (s *Service) CreateRecord(ctx context.Context, entity string, candidate map[string]any, actorID string) (*MutationResult, error) {
	return s.mutate(ctx, entity, "", candidate, actorID)
}

// UpdateRecord applies candidate over the record's current state. Keys absent
// from candidate keep their stored values; null or blank values clear the
// field. Returns ErrNotFound before any validation if id does not exist.
func (s *Service) UpdateRecord(ctx context.Context, entity, id string, candidate map[string]any, actorID string) (*MutationResult, error) {
	if id == "" {
		return nil, fmt.Errorf("update %s: %w", entity, ErrNotFound)
	}
	return s.mutate(ctx, entity, id, candidate, actorID)
}

// mutate handles create (id == "") and update.
func (s *Service) mutate(ctx context.Context, entity, id string, candidate map[string]any, actorID string) (result *MutationResult, err error) {
	def, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	if actorID = resolveActor(ctx, actorID); actorID == "" {
		return nil, ErrMissingActor
	}

	action := ActionCreate
	if id != "" {
		action = ActionUpdate
	}

	start := time.Now()
	recordID := id
	logger := logging.WithFields(ctx, "entity", entity, "action", action, "actor", actorID)
	defer func() {
		if errors.Is(err, ErrTransactionFailed) {
			if recordID != "" {
				logger = logger.With("record_id", recordID)
			}
			logger.Error("mutation rolled back", "error", err)
		}
		s.observer.ObserveMutation(entity, action, mutationOutcome(result, err), time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, s.mutationTimeout)
	defer cancel()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, transactionFailed("begin", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	now := s.now().UTC()
	bound, bindIssues := BindFields(def, candidate)

	var prior *Record
	fields := bound.compact()
	if action == ActionUpdate {
		prior, err = tx.LockRecord(ctx, def, id)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("update %s %s: %w", entity, id, ErrNotFound)
		}
		if err != nil {
			return nil, transactionFailed("load prior state", err)
		}
		fields = prior.Fields.Merge(bound)
	}

	validation := validateBound(def, fields, bindIssues, now)

	dupIssues, err := CheckDuplicates(ctx, tx, def, fields, id)
	if err != nil {
		return nil, transactionFailed("duplicate check", err)
	}
	validation.Add(dupIssues...)
	s.observer.ObserveValidation(entity, len(validation.Errors), len(validation.Warnings))

	if !validation.IsValid {
		logger.Warn("mutation blocked", "errors", len(validation.Errors), "duplicate", len(dupIssues) > 0)
		return &MutationResult{Validation: validation, duplicate: len(dupIssues) > 0}, nil
	}

	rec := &Record{
		ID:        id,
		Entity:    entity,
		Fields:    withMetrics(def, fields),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var oldValues map[string]any
	if action == ActionCreate {
		rec.ID = uuid.NewString()
		recordID = rec.ID
		err = tx.InsertRecord(ctx, def, rec)
	} else {
		rec.CreatedAt = prior.CreatedAt
		oldValues = prior.Snapshot()
		err = tx.UpdateRecord(ctx, def, rec)
	}
	if errors.Is(err, ErrKeyConflict) {
		// A concurrent writer took the key after the duplicate check.
		validation.Add(duplicateIssue(def, rec.NaturalKey(def), ""))
		logger.Warn("mutation blocked", "errors", len(validation.Errors), "duplicate", true)
		return &MutationResult{Validation: validation, duplicate: true}, nil
	}
	if err != nil {
		return nil, transactionFailed("persist", err)
	}

	entry, err := s.audit.Record(ctx, tx, AuditParams{
		ActorID:   actorID,
		Workflow:  entity,
		RecordID:  rec.ID,
		Action:    action,
		OldValues: oldValues,
		NewValues: rec.Snapshot(),
	})
	if err != nil {
		return nil, transactionFailed("audit", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, transactionFailed("commit", err)
	}

	logger.Info("record saved", "record_id", rec.ID, "warnings", len(validation.Warnings))
	return &MutationResult{Record: rec, Validation: validation, AuditID: entry.ID}, nil
}

// DeleteRecord removes a record. No validation, duplicate check or metrics
// run. Returns ErrNotFound if id does not exist.
func (s *Service) DeleteRecord(ctx context.Context, entity, id, actorID string) (result *DeleteResult, err error) {
	def, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	if actorID = resolveActor(ctx, actorID); actorID == "" {
		return nil, ErrMissingActor
	}

	start := time.Now()
	logger := logging.WithFields(ctx, "entity", entity, "action", ActionDelete, "actor", actorID)
	defer func() {
		outcome := OutcomeSuccess
		switch {
		case errors.Is(err, ErrNotFound):
			outcome = OutcomeNotFound
		case err != nil:
			outcome = OutcomeFailed
			logger.Error("delete rolled back", "record_id", id, "error", err)
		}
		s.observer.ObserveMutation(entity, ActionDelete, outcome, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, s.mutationTimeout)
	defer cancel()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, transactionFailed("begin", err)
	}
	defer tx.Rollback(ctx)

	prior, err := tx.LockRecord(ctx, def, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("delete %s %s: %w", entity, id, ErrNotFound)
	}
	if err != nil {
		return nil, transactionFailed("load prior state", err)
	}

	if err := tx.DeleteRecord(ctx, def, id); err != nil {
		return nil, transactionFailed("persist", err)
	}

	entry, err := s.audit.Record(ctx, tx, AuditParams{
		ActorID:   actorID,
		Workflow:  entity,
		RecordID:  id,
		Action:    ActionDelete,
		OldValues: prior.Snapshot(),
	})
	if err != nil {
		return nil, transactionFailed("audit", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, transactionFailed("commit", err)
	}

	logger.Info("record deleted", "record_id", id)
	return &DeleteResult{ID: id, Entity: entity, AuditID: entry.ID}, nil
}

func mutationOutcome(result *MutationResult, err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case err != nil:
		return OutcomeFailed
	case result != nil && result.Blocked():
		return OutcomeBlocked
	default:
		return OutcomeSuccess
	}
}
