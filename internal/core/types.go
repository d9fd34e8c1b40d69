package core

import (
	"encoding/json"
	"time"
)

// FieldType represents the expected data type for a record field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldDate
	FieldBool
)

// String returns the lowercase type name used in error messages and the API.
func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldNumeric:
		return "numeric"
	case FieldDate:
		return "date"
	case FieldBool:
		return "bool"
	default:
		return "value"
	}
}

// MarshalJSON encodes the type by name.
func (t FieldType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// FieldSpec declares one field an entity accepts. The set of FieldSpecs is the
// allow-list for that entity: callers can only set fields listed here, and the
// storage layer only ever writes columns named here.
type FieldSpec struct {
	Name     string    `json:"name"`              // Schema field name, also the column name
	Label    string    `json:"label"`             // Display name used in messages
	Type     FieldType `json:"type"`              // Expected data type
	Required bool      `json:"required"`          // Must be present and non-blank
	Derived  bool      `json:"derived,omitempty"` // Computed by the entity's metrics; never caller-supplied
	Aliases  []string  `json:"aliases,omitempty"` // Alternative import headers
}

// DisplayLabel returns Label, falling back to Name.
func (f FieldSpec) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// EntityInfo contains descriptive information about an entity type.
type EntityInfo struct {
	Key        string `json:"key"`        // Workflow tag, e.g. "items"
	Label      string `json:"label"`      // Display name, e.g. "Inventory Items"
	Table      string `json:"table"`      // Storage table name
	NaturalKey string `json:"naturalKey"` // Field holding the business identifier
}

// MetricsFunc derives computed fields from an entity's raw fields.
type MetricsFunc func(fields Fields) Fields

// EntityDefinition contains everything needed to validate and persist one
// entity type.
type EntityDefinition struct {
	Info       EntityInfo
	FieldSpecs []FieldSpec
	Rules      []Rule
	Metrics    MetricsFunc
}

// Field returns the spec for a field name.
func (d EntityDefinition) Field(name string) (FieldSpec, bool) {
	for _, spec := range d.FieldSpecs {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// Label returns the display label for a field name.
func (d EntityDefinition) Label(name string) string {
	if spec, ok := d.Field(name); ok {
		return spec.DisplayLabel()
	}
	return name
}

// Columns returns every field name in declaration order, derived fields included.
func (d EntityDefinition) Columns() []string {
	cols := make([]string, len(d.FieldSpecs))
	for i, spec := range d.FieldSpecs {
		cols[i] = spec.Name
	}
	return cols
}

// Fields holds normalized field values keyed by schema field name.
//
// Values are string (text), float64 (numeric), time.Time (date, UTC midnight)
// or bool. A missing key means the field is absent. During binding a nil value
// marks a field the caller explicitly cleared.
type Fields map[string]any

// Text returns a text field, or "" if absent.
func (f Fields) Text(name string) string {
	s, _ := f[name].(string)
	return s
}

// Number returns a numeric field and whether it was present.
// Absent fields read as zero.
func (f Fields) Number(name string) (float64, bool) {
	v, ok := f[name].(float64)
	return v, ok
}

// Date returns a date field and whether it was present.
func (f Fields) Date(name string) (time.Time, bool) {
	v, ok := f[name].(time.Time)
	return v, ok
}

// Has reports whether a field is present with a non-blank value.
func (f Fields) Has(name string) bool {
	switch v := f[name].(type) {
	case nil:
		return false
	case string:
		return v != ""
	default:
		return true
	}
}

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge returns a copy of f with patch applied. Nil values in patch remove
// the field.
func (f Fields) Merge(patch Fields) Fields {
	out := f.Clone()
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// compact drops cleared (nil) entries.
func (f Fields) compact() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// Record is one persisted entity instance.
type Record struct {
	ID        string
	Entity    string
	Fields    Fields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy that shares no field map with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Fields = r.Fields.Clone()
	return &c
}

// NaturalKey returns the record's business identifier for the given definition.
func (r *Record) NaturalKey(def EntityDefinition) string {
	return r.Fields.Text(def.Info.NaturalKey)
}

// Snapshot returns the record as a JSON-friendly map: dates as YYYY-MM-DD,
// numbers as float64, plus the record id. Audit entries store snapshots.
func (r *Record) Snapshot() map[string]any {
	if r == nil {
		return nil
	}
	snap := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		snap[k] = snapshotValue(v)
	}
	snap["id"] = r.ID
	return snap
}

func snapshotValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(DateLayout)
	}
	return v
}

// MarshalJSON renders the record with snapshot-formatted fields.
func (r Record) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = snapshotValue(v)
	}
	return json.Marshal(struct {
		ID        string         `json:"id"`
		Entity    string         `json:"entity"`
		Fields    map[string]any `json:"fields"`
		CreatedAt time.Time      `json:"createdAt"`
		UpdatedAt time.Time      `json:"updatedAt"`
	}{r.ID, r.Entity, fields, r.CreatedAt, r.UpdatedAt})
}

// Severity distinguishes blocking issues from advisory ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is one rule finding against one field.
type ValidationIssue struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (i ValidationIssue) Error() string {
	if i.Field != "" {
		return i.Field + ": " + i.Message
	}
	return i.Message
}

// ValidationResult collects every issue found for one candidate.
// IsValid is true iff Errors is empty; warnings never affect it.
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// NewValidationResult returns an empty, valid result.
func NewValidationResult() ValidationResult {
	return ValidationResult{
		IsValid:  true,
		Errors:   []ValidationIssue{},
		Warnings: []ValidationIssue{},
	}
}

// Add files each issue under errors or warnings by severity.
func (r *ValidationResult) Add(issues ...ValidationIssue) {
	for _, issue := range issues {
		if issue.Severity == SeverityWarning {
			r.Warnings = append(r.Warnings, issue)
			continue
		}
		issue.Severity = SeverityError
		r.Errors = append(r.Errors, issue)
	}
	r.IsValid = len(r.Errors) == 0
}

// HasError reports whether a blocking issue exists for field.
func (r ValidationResult) HasError(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

// HasWarning reports whether an advisory issue exists for field.
func (r ValidationResult) HasWarning(field string) bool {
	for _, w := range r.Warnings {
		if w.Field == field {
			return true
		}
	}
	return false
}
