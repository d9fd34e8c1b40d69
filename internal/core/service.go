package core

import (
	"context"
	"fmt"
	"time"
)

// Default operation timeouts.
const (
	DefaultMutationTimeout = 30 * time.Second
	DefaultImportTimeout   = 10 * time.Minute
)

// Observer receives operation outcomes for metrics. The zero Service uses a
// no-op observer.
type Observer interface {
	ObserveMutation(entity string, action AuditAction, outcome string, d time.Duration)
	ObserveValidation(entity string, errors, warnings int)
	ObserveImport(entity string, outcome string, imported, skipped, rejected int, d time.Duration)
}

// Outcome labels passed to Observer.
const (
	OutcomeSuccess  = "success"
	OutcomeBlocked  = "blocked"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

type noopObserver struct{}

func (noopObserver) ObserveMutation(string, AuditAction, string, time.Duration) {}
func (noopObserver) ObserveValidation(string, int, int) {}
func (noopObserver) ObserveImport(string, string, int, int, int, time.Duration) {}

// Options configures a Service.
type Options struct {
	MutationTimeout     time.Duration
	ImportTimeout       time.Duration
	ImportMaxConcurrent int
	ImportMaxWait       time.Duration
	HeaderMapping       HeaderMapping
	Observer            Observer
	Clock               func() time.Time
}

// Service is the entry point for every record operation. It holds no
// storage state of its own; the Store is injected and owned by the caller.
type Service struct {
	store    Store
	audit    *AuditRecorder
	imports  *ImportLimiter
	mapping  HeaderMapping
	observer Observer
	now      func() time.Time

	mutationTimeout time.Duration
	importTimeout   time.Duration
}

// NewService creates a Service over store.
func NewService(store Store, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("new service: store is required")
	}
	if opts.HeaderMapping == nil {
		opts.HeaderMapping = HeaderMapping{}
	}
	if err := opts.HeaderMapping.Validate(); err != nil {
		return nil, fmt.Errorf("new service: %w", err)
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MutationTimeout <= 0 {
		opts.MutationTimeout = DefaultMutationTimeout
	}
	if opts.ImportTimeout <= 0 {
		opts.ImportTimeout = DefaultImportTimeout
	}

	return &Service{
		store:           store,
		audit:           NewAuditRecorder(opts.Clock),
		imports:         NewImportLimiter(opts.ImportMaxConcurrent, opts.ImportMaxWait),
		mapping:         opts.HeaderMapping,
		observer:        opts.Observer,
		now:             opts.Clock,
		mutationTimeout: opts.MutationTimeout,
		importTimeout:   opts.ImportTimeout,
	}, nil
}

// EntitySchema describes one entity for API consumers.
type EntitySchema struct {
	EntityInfo
	Fields []FieldSpec `json:"fields"`
}

// ListEntities returns the schema of every registered entity.
func (s *Service) ListEntities() []EntitySchema {
	defs := All()
	out := make([]EntitySchema, len(defs))
	for i, def := range defs {
		out[i] = EntitySchema{EntityInfo: def.Info, Fields: def.FieldSpecs}
	}
	return out
}

// Validate runs the entity's rules against candidate without touching
// storage. The error is non-nil only for unknown entities.
func (s *Service) Validate(ctx context.Context, entity string, candidate map[string]any) (ValidationResult, error) {
	def, err := Lookup(entity)
	if err != nil {
		return ValidationResult{}, err
	}
	_, result := ValidateCandidate(def, candidate, s.now())
	s.observer.ObserveValidation(entity, len(result.Errors), len(result.Warnings))
	return result, nil
}

// CheckDuplicates reports a natural-key conflict for candidate. excludeID is
// the candidate's own identity on updates and may be empty.
func (s *Service) CheckDuplicates(ctx context.Context, entity string, candidate map[string]any, excludeID string) ([]ValidationIssue, error) {
	def, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	bound, _ := BindFields(def, candidate)
	return CheckDuplicates(ctx, s.store, def, bound.compact(), excludeID)
}

// ComputeMetrics returns the derived fields for candidate. Values that fail to
// parse count as zero.
func (s *Service) ComputeMetrics(entity string, candidate map[string]any) (Fields, error) {
	def, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	bound, _ := BindFields(def, candidate)
	return ComputeMetrics(def, bound.compact()), nil
}

// GetRecord loads one record.
func (s *Service) GetRecord(ctx context.Context, entity, id string) (*Record, error) {
	def, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	return s.store.GetRecord(ctx, def, id)
}

// QueryAudit returns audit entries matching filter, newest first.
func (s *Service) QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	if filter.Action != "" && !filter.Action.Valid() {
		return nil, fmt.Errorf("query audit: unknown action %q", filter.Action)
	}
	entries, err := s.store.QueryAudit(ctx, filter.Normalize())
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	return entries, nil
}

// RecordHistory returns every audit entry for one record, newest first.
func (s *Service) RecordHistory(ctx context.Context, workflow, recordID string) ([]AuditEntry, error) {
	if _, err := Lookup(workflow); err != nil {
		return nil, err
	}
	entries, err := s.store.RecordHistory(ctx, workflow, recordID)
	if err != nil {
		return nil, fmt.Errorf("record history: %w", err)
	}
	return entries, nil
}

// Ping checks storage connectivity.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ImportStatus reports import slot usage.
func (s *Service) ImportStatus() ImportLimiterStatus {
	return s.imports.Status()
}

// WaitForImports blocks until in-flight imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.imports.WaitForDrain(ctx)
}
