package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
)

// Valid reports whether a is a known action.
func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Audit query limits.
const (
	DefaultAuditLimit = 100
	MaxAuditLimit     = 1000
)

// AuditEntry is one immutable record of a mutation.
//
// OldValues is nil iff Action is create; NewValues is nil iff Action is delete.
type AuditEntry struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actorId"`
	Workflow  string         `json:"workflow"`
	RecordID  string         `json:"recordId"`
	Action    AuditAction    `json:"action"`
	OldValues map[string]any `json:"oldValues"`
	NewValues map[string]any `json:"newValues"`
	BatchID   string         `json:"batchId,omitempty"`
	IPAddress string         `json:"ipAddress,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AuditParams contains parameters for creating an audit entry.
type AuditParams struct {
	ActorID   string
	Workflow  string
	RecordID  string
	Action    AuditAction
	OldValues map[string]any
	NewValues map[string]any
	BatchID   string
	IPAddress string
	UserAgent string
}

// NewAuditEntry builds an entry, rejecting snapshot combinations that
// contradict the action.
func NewAuditEntry(p AuditParams, now time.Time) (*AuditEntry, error) {
	if !p.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidAudit, p.Action)
	}
	if p.ActorID == "" || p.Workflow == "" || p.RecordID == "" {
		return nil, fmt.Errorf("%w: actor, workflow and record id are required", ErrInvalidAudit)
	}
	if (p.OldValues == nil) != (p.Action == ActionCreate) {
		return nil, fmt.Errorf("%w: old values must be absent exactly for create", ErrInvalidAudit)
	}
	if (p.NewValues == nil) != (p.Action == ActionDelete) {
		return nil, fmt.Errorf("%w: new values must be absent exactly for delete", ErrInvalidAudit)
	}

	return &AuditEntry{
		ID:        uuid.NewString(),
		ActorID:   p.ActorID,
		Workflow:  p.Workflow,
		RecordID:  p.RecordID,
		Action:    p.Action,
		OldValues: p.OldValues,
		NewValues: p.NewValues,
		BatchID:   p.BatchID,
		IPAddress: p.IPAddress,
		UserAgent: p.UserAgent,
		Timestamp: now.UTC(),
	}, nil
}

// AuditRecorder appends audit entries inside the caller's transaction.
type AuditRecorder struct {
	now func() time.Time
}

// NewAuditRecorder creates a recorder using clock for timestamps.
func NewAuditRecorder(clock func() time.Time) *AuditRecorder {
	if clock == nil {
		clock = time.Now
	}
	return &AuditRecorder{now: clock}
}

// Record appends one entry through tx. Request metadata missing from p is
// taken from ctx.
func (a *AuditRecorder) Record(ctx context.Context, tx AuditAppender, p AuditParams) (*AuditEntry, error) {
	if p.IPAddress == "" {
		p.IPAddress = GetIPAddressFromContext(ctx)
	}
	if p.UserAgent == "" {
		p.UserAgent = GetUserAgentFromContext(ctx)
	}

	entry, err := NewAuditEntry(p, a.now())
	if err != nil {
		return nil, err
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("append audit: %w", err)
	}
	return entry, nil
}

// AuditFilter contains filtering options for querying audit entries.
// Zero values match everything.
type AuditFilter struct {
	Workflow string
	Action   AuditAction
	ActorID  string
	From     time.Time // inclusive
	To       time.Time // exclusive
	Limit    int
	Offset   int
}

// Normalize clamps Limit and Offset into range.
func (f AuditFilter) Normalize() AuditFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLimit
	}
	if f.Limit > MaxAuditLimit {
		f.Limit = MaxAuditLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches reports whether e passes every set criterion.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.Workflow != "" && e.Workflow != f.Workflow {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Timestamp.Before(f.To) {
		return false
	}
	return true
}
