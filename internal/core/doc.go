// Package core governs every write to operational business records.
//
// This package contains the domain logic independent of any transport or
// storage engine. It can be used by web handlers, CLI tools, or tests without
// modification.
//
// # Entity Registry
//
// Entity types are registered at init time using [Register]. Each
// [EntityDefinition] is a fixed allow-list of fields plus the entity's rule set
// and metrics function:
//
//	core.Register(core.EntityDefinition{
//	    Info: core.EntityInfo{Key: "items", Table: "inventory_items", NaturalKey: "item_id"},
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "item_id", Type: core.FieldText, Required: true},
//	        {Name: "quantity", Type: core.FieldNumeric},
//	    },
//	    Rules: []core.Rule{core.StockQuantity("quantity")},
//	})
//
// Caller-supplied keys outside the allow-list are dropped during binding.
// Storage implementations build SQL only from registered names.
//
// # Mutations
//
// [Service.CreateRecord], [Service.UpdateRecord] and [Service.DeleteRecord]
// each run in one storage transaction that also appends the audit entry.
// Validation and duplicate issues come back as data in [MutationResult];
// warnings accompany successful results.
//
// # Bulk Import
//
// [Service.BulkImport] checks the whole batch for required fields and value
// formats before writing anything, then inserts every row in one transaction,
// skipping rows whose natural key already exists.
//
// # Error Handling
//
// Sentinel errors ([ErrNotFound], [ErrTransactionFailed], ...) are wrapped
// with %w. [MapError] turns any error into a user-facing message with a
// support code.
package core
