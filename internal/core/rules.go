package core

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Rule thresholds.
const (
	// DefaultCostCeiling is the unit cost above which a value is flagged for review.
	DefaultCostCeiling = 10000.0

	// DefaultVarianceThreshold is the percentage difference between current
	// and paid unit cost above which a warning is raised.
	DefaultVarianceThreshold = 10.0
)

// RuleContext is what a rule sees when it runs.
type RuleContext struct {
	Entity EntityDefinition
	Fields Fields
	Now    time.Time
}

func (rc RuleContext) label(field string) string {
	return rc.Entity.Label(field)
}

// Rule evaluates one fixed check against a candidate. Rules are independent:
// each sees the full candidate and returns its own findings.
type Rule func(rc RuleContext) []ValidationIssue

func blocking(field, format string, args ...any) ValidationIssue {
	return ValidationIssue{Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityError}
}

func advisory(field, format string, args ...any) ValidationIssue {
	return ValidationIssue{Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NonNegative blocks negative values.
func NonNegative(field string) Rule {
	return func(rc RuleContext) []ValidationIssue {
		v, ok := rc.Fields.Number(field)
		if ok && v < 0 {
			return []ValidationIssue{blocking(field, "%s cannot be negative", rc.label(field))}
		}
		return nil
	}
}

// StockQuantity blocks negative quantities and warns when stock is exactly zero.
func StockQuantity(field string) Rule {
	return func(rc RuleContext) []ValidationIssue {
		v, ok := rc.Fields.Number(field)
		switch {
		case !ok:
			return nil
		case v < 0:
			return []ValidationIssue{blocking(field, "%s cannot be negative", rc.label(field))}
		case v == 0:
			return []ValidationIssue{advisory(field, "%s is zero (out of stock)", rc.label(field))}
		}
		return nil
	}
}

// PositiveCost blocks costs at or below zero and warns above ceiling.
func PositiveCost(field string, ceiling float64) Rule {
	return func(rc RuleContext) []ValidationIssue {
		v, ok := rc.Fields.Number(field)
		switch {
		case !ok:
			return nil
		case v <= 0:
			return []ValidationIssue{blocking(field, "%s must be greater than zero", rc.label(field))}
		case v > ceiling:
			return []ValidationIssue{advisory(field, "%s of %s exceeds %s; verify this value",
				rc.label(field), formatNumber(v), formatNumber(ceiling))}
		}
		return nil
	}
}

// NotInFuture blocks dates after the evaluation day.
func NotInFuture(field string) Rule {
	return func(rc RuleContext) []ValidationIssue {
		d, ok := rc.Fields.Date(field)
		if ok && d.After(truncateDate(rc.Now)) {
			return []ValidationIssue{blocking(field, "%s cannot be in the future", rc.label(field))}
		}
		return nil
	}
}

// CostVariance warns when paid and current cost differ by more than
// thresholdPct percent of current. Never blocking.
func CostVariance(currentField, paidField string, thresholdPct float64) Rule {
	return func(rc RuleContext) []ValidationIssue {
		current, ok1 := rc.Fields.Number(currentField)
		paid, ok2 := rc.Fields.Number(paidField)
		if !ok1 || !ok2 || current <= 0 {
			return nil
		}

		diff := math.Abs(current-paid) / current * 100
		if diff <= thresholdPct {
			return nil
		}
		return []ValidationIssue{advisory(paidField, "%s differs from %s by %.1f%%",
			rc.label(paidField), rc.label(currentField), diff)}
	}
}

// ReorderThreshold warns when quantity is at or below the reorder level.
func ReorderThreshold(quantityField, levelField string) Rule {
	return func(rc RuleContext) []ValidationIssue {
		qty, ok1 := rc.Fields.Number(quantityField)
		level, ok2 := rc.Fields.Number(levelField)
		if !ok1 || !ok2 || qty > level {
			return nil
		}
		return []ValidationIssue{advisory(quantityField, "%s of %s is at or below reorder level of %s",
			rc.label(quantityField), formatNumber(qty), formatNumber(level))}
	}
}
