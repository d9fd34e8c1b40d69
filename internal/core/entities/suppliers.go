package entities

import "github.com/JonMunkholm/stockroom/internal/core"

func init() {
	registerSuppliers()
}

func registerSuppliers() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Key:        "suppliers",
			Label:      "Suppliers",
			Table:      "suppliers",
			NaturalKey: "supplier_code",
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "supplier_code", Label: "Supplier Code", Type: core.FieldText, Required: true, Aliases: []string{"code", "vendor code", "vendor id", "supplier id"}},
			{Name: "name", Label: "Name", Type: core.FieldText, Required: true, Aliases: []string{"supplier name", "vendor name", "vendor"}},
			{Name: "contact_name", Label: "Contact Name", Type: core.FieldText, Aliases: []string{"contact"}},
			{Name: "email", Label: "Email", Type: core.FieldText, Aliases: []string{"contact email", "e-mail"}},
			{Name: "phone", Label: "Phone", Type: core.FieldText, Aliases: []string{"telephone", "phone number"}},
			{Name: "lead_time_days", Label: "Lead Time (days)", Type: core.FieldNumeric, Aliases: []string{"lead time"}},
			{Name: "minimum_order_value", Label: "Minimum Order Value", Type: core.FieldNumeric, Aliases: []string{"min order", "minimum order"}},
			{Name: "last_order_date", Label: "Last Order Date", Type: core.FieldDate, Aliases: []string{"last order"}},
			{Name: "notes", Label: "Notes", Type: core.FieldText},
		},
		Rules: []core.Rule{
			core.NonNegative("lead_time_days"),
			core.NonNegative("minimum_order_value"),
			core.NotInFuture("last_order_date"),
		},
	})
}
