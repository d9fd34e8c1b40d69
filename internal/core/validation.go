package core

// validation.go applies an entity's fixed rule set to a candidate.
//
// Validation happens at two levels:
//  1. Binding: each supplied value is converted to its field type; failures
//     are blocking issues on that field
//  2. Rules: required-field presence from the FieldSpecs, then every Rule in
//     the definition
//
// Nothing short-circuits. The full set of issues is always returned so a caller
// can fix every problem in one round-trip.

import (
	"fmt"
	"time"
)

// Validate runs presence checks and every rule of def against already-bound
// fields.
func Validate(def EntityDefinition, fields Fields, now time.Time) ValidationResult {
	return validateFields(def, fields, now, nil)
}

// ValidateCandidate binds a raw candidate and validates the result.
// It returns the bound fields (cleared entries kept as nil) with the result.
func ValidateCandidate(def EntityDefinition, raw map[string]any, now time.Time) (Fields, ValidationResult) {
	bound, bindIssues := BindFields(def, raw)
	return bound, validateBound(def, bound.compact(), bindIssues, now)
}

// validateBound validates fields, folding in issues produced while binding.
func validateBound(def EntityDefinition, fields Fields, bindIssues []ValidationIssue, now time.Time) ValidationResult {
	failed := make(map[string]bool, len(bindIssues))
	for _, issue := range bindIssues {
		failed[issue.Field] = true
	}

	result := NewValidationResult()
	result.Add(bindIssues...)

	rest := validateFields(def, fields, now, failed)
	result.Add(rest.Errors...)
	result.Add(rest.Warnings...)
	return result
}

// validateFields skips the presence check for fields in failed, which already
// carry a conversion error.
func validateFields(def EntityDefinition, fields Fields, now time.Time, failed map[string]bool) ValidationResult {
	result := NewValidationResult()

	for _, spec := range def.FieldSpecs {
		if !spec.Required || spec.Derived || failed[spec.Name] {
			continue
		}
		if !fields.Has(spec.Name) {
			result.Add(ValidationIssue{Field: spec.Name, Message: requiredMessage(spec), Severity: SeverityError})
		}
	}

	rc := RuleContext{Entity: def, Fields: fields, Now: now}
	for _, rule := range def.Rules {
		result.Add(rule(rc)...)
	}

	return result
}

// MissingRequired returns the required, non-derived fields absent from fields.
// Batch import uses this for its presence check.
func MissingRequired(def EntityDefinition, fields Fields) []FieldSpec {
	var missing []FieldSpec
	for _, spec := range def.FieldSpecs {
		if spec.Required && !spec.Derived && !fields.Has(spec.Name) {
			missing = append(missing, spec)
		}
	}
	return missing
}

func requiredMessage(spec FieldSpec) string {
	return fmt.Sprintf("%s is required", spec.DisplayLabel())
}
