package entities_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/core/entities"
)

var evalDay = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func lookup(t *testing.T, key string) core.EntityDefinition {
	t.Helper()
	def, err := core.Lookup(key)
	require.NoError(t, err)
	return def
}

func item(overrides map[string]any) map[string]any {
	c := map[string]any{
		entities.ItemID:          "A1",
		entities.ItemName:        "Widget",
		entities.ItemQuantity:    20,
		entities.ItemCurrentCost: 100,
	}
	for k, v := range overrides {
		c[k] = v
	}
	return c
}

func messages(issues []core.ValidationIssue, field string) []string {
	var out []string
	for _, issue := range issues {
		if issue.Field == field {
			out = append(out, issue.Message)
		}
	}
	return out
}

func TestItems_CostVariance(t *testing.T) {
	def := lookup(t, "items")

	_, result := core.ValidateCandidate(def, item(map[string]any{entities.ItemPaidCost: 115}), evalDay)
	assert.True(t, result.IsValid)
	warnings := messages(result.Warnings, entities.ItemPaidCost)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "15.0%")

	_, result = core.ValidateCandidate(def, item(map[string]any{entities.ItemPaidCost: 105}), evalDay)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Warnings)
}

func TestItems_CostCeilingWarns(t *testing.T) {
	def := lookup(t, "items")

	_, result := core.ValidateCandidate(def, item(map[string]any{entities.ItemCurrentCost: 10001}), evalDay)
	assert.True(t, result.IsValid)
	assert.True(t, result.HasWarning(entities.ItemCurrentCost))

	_, result = core.ValidateCandidate(def, item(map[string]any{entities.ItemCurrentCost: 0}), evalDay)
	assert.False(t, result.IsValid)
	assert.True(t, result.HasError(entities.ItemCurrentCost))
}

func TestItems_ReorderWarning(t *testing.T) {
	def := lookup(t, "items")

	_, result := core.ValidateCandidate(def, item(map[string]any{
		entities.ItemQuantity: 5,
		entities.ItemReorder:  10,
	}), evalDay)
	assert.True(t, result.IsValid)
	assert.True(t, result.HasWarning(entities.ItemQuantity))

	_, result = core.ValidateCandidate(def, item(map[string]any{
		entities.ItemQuantity: 11,
		entities.ItemReorder:  10,
	}), evalDay)
	assert.Empty(t, result.Warnings)
}

func TestItems_BlockingRules(t *testing.T) {
	def := lookup(t, "items")

	tests := []struct {
		name  string
		field string
		value any
	}{
		{"negative quantity", entities.ItemQuantity, -1},
		{"negative reorder level", entities.ItemReorder, -1},
		{"negative order quantity", entities.ItemOrderQty, -2},
		{"zero paid cost", entities.ItemPaidCost, 0},
		{"future purchase date", entities.ItemPurchased, "2024-06-16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, result := core.ValidateCandidate(def, item(map[string]any{tt.field: tt.value}), evalDay)
			assert.False(t, result.IsValid)
			assert.True(t, result.HasError(tt.field), "errors: %v", result.Errors)
		})
	}
}

func TestItems_Metrics(t *testing.T) {
	def := lookup(t, "items")

	tests := []struct {
		name        string
		candidate   map[string]any
		wantTotal   float64
		wantReorder float64
	}{
		{
			name:        "total value",
			candidate:   map[string]any{entities.ItemQuantity: 5, entities.ItemCurrentCost: 2.5},
			wantTotal:   12.50,
			wantReorder: 0,
		},
		{
			name: "reorder uses paid cost when known",
			candidate: map[string]any{
				entities.ItemQuantity:    5,
				entities.ItemCurrentCost: 2.5,
				entities.ItemPaidCost:    3,
				entities.ItemOrderQty:    4,
			},
			wantTotal:   12.50,
			wantReorder: 12,
		},
		{
			name: "reorder falls back to current cost",
			candidate: map[string]any{
				entities.ItemCurrentCost: 2.5,
				entities.ItemOrderQty:    4,
			},
			wantTotal:   0,
			wantReorder: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, _ := core.ValidateCandidate(def, tt.candidate, evalDay)
			got := core.ComputeMetrics(def, fields)
			assert.Equal(t, tt.wantTotal, got[entities.ItemTotalValue])
			assert.Equal(t, tt.wantReorder, got[entities.ItemReorderCost])
		})
	}
}

func TestItems_Aliases(t *testing.T) {
	def := lookup(t, "items")
	spec, ok := def.Field(entities.ItemID)
	require.True(t, ok)
	assert.Contains(t, spec.Aliases, "sku")
	assert.Equal(t, entities.ItemID, def.Info.NaturalKey)
}
