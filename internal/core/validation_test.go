package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStock() Fields {
	return Fields{"code": "A1", "name": "Widget", "quantity": 5.0, "unit_cost": 2.5}
}

func TestValidate_ValidCandidate(t *testing.T) {
	result := Validate(stockDefinition(), validStock(), fixedNow)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidate_RequiredFields(t *testing.T) {
	fields := validStock()
	delete(fields, "name")
	fields["code"] = ""

	result := Validate(stockDefinition(), fields, fixedNow)

	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"code", "name"}, issueFields(result.Errors))
	assert.Equal(t, "Name is required", result.Errors[1].Message)
}

func TestValidate_NegativeQuantityBlocks(t *testing.T) {
	fields := validStock()
	fields["quantity"] = -1.0

	result := Validate(stockDefinition(), fields, fixedNow)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "quantity", result.Errors[0].Field)
	assert.Equal(t, "Quantity cannot be negative", result.Errors[0].Message)
}

func TestValidate_ZeroQuantityWarns(t *testing.T) {
	fields := validStock()
	fields["quantity"] = 0.0

	result := Validate(stockDefinition(), fields, fixedNow)

	assert.True(t, result.IsValid, "warnings never block")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, SeverityWarning, result.Warnings[0].Severity)
	assert.Contains(t, result.Warnings[0].Message, "out of stock")
}

func TestValidate_CostRules(t *testing.T) {
	tests := []struct {
		name        string
		cost        float64
		wantValid   bool
		wantWarning bool
	}{
		{"zero cost blocks", 0, false, false},
		{"negative cost blocks", -3, false, false},
		{"normal cost passes", 12, true, false},
		{"ceiling is inclusive", DefaultCostCeiling, true, false},
		{"above ceiling warns", DefaultCostCeiling + 1, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validStock()
			fields["unit_cost"] = tt.cost

			result := Validate(stockDefinition(), fields, fixedNow)

			assert.Equal(t, tt.wantValid, result.IsValid)
			assert.Equal(t, tt.wantWarning, result.HasWarning("unit_cost"))
		})
	}
}

func TestValidate_FutureDateBlocks(t *testing.T) {
	fields := validStock()

	fields["received"] = truncateDate(fixedNow)
	assert.True(t, Validate(stockDefinition(), fields, fixedNow).IsValid, "today is allowed")

	fields["received"] = truncateDate(fixedNow).AddDate(0, 0, 1)
	result := Validate(stockDefinition(), fields, fixedNow)
	assert.False(t, result.IsValid)
	assert.True(t, result.HasError("received"))
}

func TestValidate_CostVariance(t *testing.T) {
	fields := validStock()
	fields["unit_cost"] = 10.0

	fields["paid_cost"] = 10.5
	assert.Empty(t, Validate(stockDefinition(), fields, fixedNow).Warnings, "within threshold")

	fields["paid_cost"] = 12.0
	result := Validate(stockDefinition(), fields, fixedNow)
	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "paid_cost", result.Warnings[0].Field)
	assert.Equal(t, "Paid Cost differs from Unit Cost by 20.0%", result.Warnings[0].Message)
}

func TestValidate_ReorderThreshold(t *testing.T) {
	fields := validStock()
	fields["quantity"] = 3.0
	fields["reorder_level"] = 3.0

	result := Validate(stockDefinition(), fields, fixedNow)

	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Quantity of 3 is at or below reorder level of 3", result.Warnings[0].Message)
}

func TestValidate_ReportsEveryIssue(t *testing.T) {
	fields := Fields{"quantity": -1.0, "reorder_level": -2.0, "unit_cost": 0.0}

	result := Validate(stockDefinition(), fields, fixedNow)

	assert.False(t, result.IsValid)
	assert.ElementsMatch(t, []string{"code", "name", "quantity", "reorder_level", "unit_cost"}, issueFields(result.Errors))
}

func TestValidateCandidate_ConversionErrorSuppressesRequired(t *testing.T) {
	bound, result := ValidateCandidate(stockDefinition(), map[string]any{
		"code":      "A1",
		"name":      "Widget",
		"unit_cost": "twelve",
	}, fixedNow)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Unit Cost: invalid number format", result.Errors[0].Message)
	assert.NotContains(t, bound, "unit_cost")
}

func TestValidate_IsDeterministic(t *testing.T) {
	fields := Fields{"quantity": 0.0, "unit_cost": 20000.0, "paid_cost": 1.0}
	first := Validate(stockDefinition(), fields, fixedNow)
	for range 20 {
		assert.Equal(t, first, Validate(stockDefinition(), fields, fixedNow))
	}
}

func TestValidationResult_Add(t *testing.T) {
	r := NewValidationResult()
	assert.True(t, r.IsValid)

	r.Add(ValidationIssue{Field: "a", Severity: SeverityWarning})
	assert.True(t, r.IsValid)

	r.Add(ValidationIssue{Field: "b", Severity: SeverityError})
	assert.False(t, r.IsValid)
	assert.Len(t, r.Errors, 1)
	assert.Len(t, r.Warnings, 1)
}

func TestMissingRequired(t *testing.T) {
	missing := MissingRequired(stockDefinition(), Fields{"name": "x"})
	names := make([]string, len(missing))
	for i, spec := range missing {
		names[i] = spec.Name
	}
	assert.Equal(t, []string{"code", "unit_cost"}, names)
}

func TestNotInFuture_UsesDayGranularity(t *testing.T) {
	rule := NotInFuture("received")
	late := time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)
	rc := RuleContext{Entity: stockDefinition(), Fields: Fields{"received": truncateDate(late)}, Now: fixedNow}
	assert.Empty(t, rule(rc))
}
