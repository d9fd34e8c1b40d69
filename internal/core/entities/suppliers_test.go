package entities_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/stockroom/internal/core"
)

func supplier(overrides map[string]any) map[string]any {
	c := map[string]any{
		"supplier_code": "S1",
		"name":          "Acme",
	}
	for k, v := range overrides {
		c[k] = v
	}
	return c
}

func TestSuppliers_Valid(t *testing.T) {
	def := lookup(t, "suppliers")

	_, result := core.ValidateCandidate(def, supplier(map[string]any{
		"lead_time_days":      0,
		"minimum_order_value": 250,
		"last_order_date":     "2024-06-15",
	}), evalDay)
	assert.True(t, result.IsValid, "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, core.ComputeMetrics(def, nil))
}

func TestSuppliers_BlockingRules(t *testing.T) {
	def := lookup(t, "suppliers")

	tests := []struct {
		name  string
		field string
		value any
	}{
		{"negative lead time", "lead_time_days", -1},
		{"negative minimum order", "minimum_order_value", -0.01},
		{"future last order", "last_order_date", "2024-06-16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, result := core.ValidateCandidate(def, supplier(map[string]any{tt.field: tt.value}), evalDay)
			assert.False(t, result.IsValid)
			assert.True(t, result.HasError(tt.field), "errors: %v", result.Errors)
		})
	}
}

func TestSuppliers_RequiredFields(t *testing.T) {
	def := lookup(t, "suppliers")

	_, result := core.ValidateCandidate(def, map[string]any{"email": "a@b.c"}, evalDay)
	assert.False(t, result.IsValid)
	assert.True(t, result.HasError("supplier_code"))
	assert.True(t, result.HasError("name"))
}
