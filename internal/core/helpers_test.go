package core

import (
	"context"
	"time"
)

// fixedNow is the evaluation time used across tests.
var fixedNow = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

// stockDefinition is an unregistered entity shaped like an inventory item.
func stockDefinition() EntityDefinition {
	return EntityDefinition{
		Info: EntityInfo{Key: "stock", Label: "Stock", Table: "stock", NaturalKey: "code"},
		FieldSpecs: []FieldSpec{
			{Name: "code", Label: "Code", Type: FieldText, Required: true, Aliases: []string{"sku"}},
			{Name: "name", Label: "Name", Type: FieldText, Required: true},
			{Name: "quantity", Label: "Quantity", Type: FieldNumeric},
			{Name: "reorder_level", Label: "Reorder Level", Type: FieldNumeric},
			{Name: "unit_cost", Label: "Unit Cost", Type: FieldNumeric, Required: true},
			{Name: "paid_cost", Label: "Paid Cost", Type: FieldNumeric},
			{Name: "received", Label: "Received", Type: FieldDate},
			{Name: "active", Type: FieldBool},
			{Name: "value", Label: "Value", Type: FieldNumeric, Derived: true},
		},
		Rules: []Rule{
			StockQuantity("quantity"),
			NonNegative("reorder_level"),
			PositiveCost("unit_cost", DefaultCostCeiling),
			NotInFuture("received"),
			CostVariance("unit_cost", "paid_cost", DefaultVarianceThreshold),
			ReorderThreshold("quantity", "reorder_level"),
		},
		Metrics: func(f Fields) Fields {
			return Fields{"value": RoundCents(NumberOrZero(f, "quantity") * NumberOrZero(f, "unit_cost"))}
		},
	}
}

// mapReader is a RecordReader over a fixed set of records.
type mapReader struct {
	records []*Record
	err     error
}

func (m *mapReader) GetRecord(_ context.Context, _ EntityDefinition, id string) (*Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mapReader) FindByNaturalKey(_ context.Context, def EntityDefinition, key string) (*Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.records {
		if r.NaturalKey(def) == key {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func issueFields(issues []ValidationIssue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Field
	}
	return out
}

// isolateRegistry empties the registry for one test and restores the
// previous contents afterwards, so entities registered by init survive.
func isolateRegistry(t interface{ Cleanup(func()) }) {
	registryMu.Lock()
	saved := registry
	registry = make(map[string]EntityDefinition)
	registryMu.Unlock()

	t.Cleanup(func() {
		registryMu.Lock()
		registry = saved
		registryMu.Unlock()
	})
}
