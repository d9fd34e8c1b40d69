package core

// service_import.go ingests externally parsed rows in one transaction.
//
// The pipeline:
//  1. Map each row's external headers to schema fields
//  2. Check every row for required fields and value formats before any write.
//     One bad row rejects the whole batch; nothing is persisted
//  3. Open one transaction and insert each row. A row whose natural key
//     already exists is skipped, not failed
//  4. Commit, or roll back everything on the first unexpected error
//
// Each inserted row gets its own create audit entry inside the same
// transaction, tagged with the batch id.

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/stockroom/internal/logging"
)

// ImportRow maps external header names to raw cell values.
type ImportRow map[string]string

// ImportError reports one problem with one row. Row is the 1-based position
// of the data row in the batch.
type ImportError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ImportError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
}

// ImportResult summarizes one import call. Imported counts rows actually
// inserted; rows skipped for an existing natural key are counted in Skipped.
type ImportResult struct {
	BatchID  string        `json:"batchId,omitempty"`
	Total    int           `json:"total"`
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// Err returns ErrBatchValidation when the batch was rejected.
func (r *ImportResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d problem(s), first: %s", ErrBatchValidation, len(r.Errors), r.Errors[0].Error())
}

// BulkImport validates rows as a batch and inserts them in one transaction.
//
// Batch validation failures are returned as data in ImportResult.Errors with
// a nil error. Storage failures roll back the whole batch and return an
// ErrTransactionFailed error with Imported reported as zero.
func (s *Service) BulkImport(ctx context.Context, entity string, rows []ImportRow, actorID string) (*ImportResult, error) {
	def, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	if actorID = resolveActor(ctx, actorID); actorID == "" {
		return nil, ErrMissingActor
	}

	start := time.Now()
	result := &ImportResult{Total: len(rows), Errors: []ImportError{}}
	logger := logging.WithFields(ctx, "entity", entity, "actor", actorID, "rows", len(rows))

	if err := s.imports.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("bulk import %s: %w", entity, err)
	}
	defer s.imports.Release()

	ctx, cancel := context.WithTimeout(ctx, s.importTimeout)
	defer cancel()

	// Phase 1: map and check the whole batch.
	resolver := newHeaderResolver(def, s.mapping[entity])
	batch := make([]Fields, len(rows))
	for i, row := range rows {
		fields, errs := prepareImportRow(def, resolver.mapRow(row), i+1)
		batch[i] = fields
		result.Errors = append(result.Errors, errs...)
	}

	if len(result.Errors) > 0 {
		logger.Warn("import rejected", "errors", len(result.Errors))
		s.observer.ObserveImport(entity, OutcomeRejected, 0, 0, len(rows), time.Since(start))
		return result, nil
	}
	if len(batch) == 0 {
		s.observer.ObserveImport(entity, OutcomeSuccess, 0, 0, 0, time.Since(start))
		return result, nil
	}

	// Phase 2: one transaction for the batch.
	imported, skipped, batchID, err := s.insertBatch(ctx, def, batch, actorID)
	if err != nil {
		logger.Error("import rolled back", "error", err)
		s.observer.ObserveImport(entity, OutcomeFailed, 0, 0, 0, time.Since(start))
		return result, err
	}

	result.BatchID = batchID
	result.Imported = imported
	result.Skipped = skipped

	logger.Info("import committed", "batch_id", batchID, "imported", imported, "skipped", skipped,
		"duration_ms", time.Since(start).Milliseconds())
	s.observer.ObserveImport(entity, OutcomeSuccess, imported, skipped, 0, time.Since(start))
	return result, nil
}

// prepareImportRow binds one mapped row and checks presence and format.
func prepareImportRow(def EntityDefinition, mapped map[string]string, rowNum int) (Fields, []ImportError) {
	bound, issues := BindStrings(def, mapped)
	fields := bound.compact()

	var errs []ImportError
	failed := make(map[string]bool, len(issues))
	for _, issue := range issues {
		failed[issue.Field] = true
		errs = append(errs, ImportError{Row: rowNum, Field: issue.Field, Message: issue.Message})
	}
	for _, spec := range MissingRequired(def, fields) {
		if failed[spec.Name] {
			continue
		}
		errs = append(errs, ImportError{Row: rowNum, Field: spec.Name, Message: requiredMessage(spec)})
	}
	return fields, errs
}

// insertBatch writes every row and its audit entry in one transaction.
func (s *Service) insertBatch(ctx context.Context, def EntityDefinition, batch []Fields, actorID string) (imported, skipped int, batchID string, err error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, 0, "", transactionFailed("begin", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	batchID = uuid.NewString()
	now := s.now().UTC()

	for i, fields := range batch {
		rec := &Record{
			ID:        uuid.NewString(),
			Entity:    def.Info.Key,
			Fields:    withMetrics(def, fields),
			CreatedAt: now,
			UpdatedAt: now,
		}

		inserted, err := tx.InsertRecordIfAbsent(ctx, def, rec)
		if err != nil {
			return 0, 0, "", transactionFailed(fmt.Sprintf("insert row %d", i+1), err)
		}
		if !inserted {
			skipped++
			continue
		}

		if _, err := s.audit.Record(ctx, tx, AuditParams{
			ActorID:   actorID,
			Workflow:  def.Info.Key,
			RecordID:  rec.ID,
			Action:    ActionCreate,
			NewValues: rec.Snapshot(),
			BatchID:   batchID,
		}); err != nil {
			return 0, 0, "", transactionFailed(fmt.Sprintf("audit row %d", i+1), err)
		}
		imported++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, "", transactionFailed("commit", err)
	}
	return imported, skipped, batchID, nil
}
