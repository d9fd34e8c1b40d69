package entities

import "github.com/JonMunkholm/stockroom/internal/core"

// Item field names.
const (
	ItemID          = "item_id"
	ItemName        = "name"
	ItemCategory    = "category"
	ItemLocation    = "location"
	ItemQuantity    = "quantity"
	ItemReorder     = "reorder_level"
	ItemOrderQty    = "order_quantity"
	ItemCurrentCost = "current_unit_cost"
	ItemPaidCost    = "paid_unit_cost"
	ItemPurchased   = "purchase_date"
	ItemNotes       = "notes"
	ItemTotalValue  = "total_value"
	ItemReorderCost = "reorder_cost"
)

func init() {
	registerItems()
}

func registerItems() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Key:        "items",
			Label:      "Inventory Items",
			Table:      "inventory_items",
			NaturalKey: ItemID,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: ItemID, Label: "Item ID", Type: core.FieldText, Required: true, Aliases: []string{"sku", "item number", "item no", "part number"}},
			{Name: ItemName, Label: "Name", Type: core.FieldText, Required: true, Aliases: []string{"item name", "product name", "item"}},
			{Name: ItemCategory, Label: "Category", Type: core.FieldText},
			{Name: ItemLocation, Label: "Location", Type: core.FieldText, Aliases: []string{"bin", "warehouse"}},
			{Name: ItemQuantity, Label: "Quantity", Type: core.FieldNumeric, Aliases: []string{"qty", "on hand", "quantity on hand"}},
			{Name: ItemReorder, Label: "Reorder Level", Type: core.FieldNumeric, Aliases: []string{"reorder point", "min qty"}},
			{Name: ItemOrderQty, Label: "Order Quantity", Type: core.FieldNumeric, Aliases: []string{"order qty", "reorder quantity"}},
			{Name: ItemCurrentCost, Label: "Current Unit Cost", Type: core.FieldNumeric, Required: true, Aliases: []string{"unit cost", "cost", "unit price"}},
			{Name: ItemPaidCost, Label: "Paid Unit Cost", Type: core.FieldNumeric, Aliases: []string{"paid cost", "last paid"}},
			{Name: ItemPurchased, Label: "Purchase Date", Type: core.FieldDate, Aliases: []string{"purchased", "date purchased"}},
			{Name: ItemNotes, Label: "Notes", Type: core.FieldText},
			{Name: ItemTotalValue, Label: "Total Value", Type: core.FieldNumeric, Derived: true},
			{Name: ItemReorderCost, Label: "Reorder Cost", Type: core.FieldNumeric, Derived: true},
		},
		Rules: []core.Rule{
			core.StockQuantity(ItemQuantity),
			core.NonNegative(ItemReorder),
			core.NonNegative(ItemOrderQty),
			core.PositiveCost(ItemCurrentCost, core.DefaultCostCeiling),
			core.PositiveCost(ItemPaidCost, core.DefaultCostCeiling),
			core.NotInFuture(ItemPurchased),
			core.CostVariance(ItemCurrentCost, ItemPaidCost, core.DefaultVarianceThreshold),
			core.ReorderThreshold(ItemQuantity, ItemReorder),
		},
		Metrics: itemMetrics,
	})
}

// itemMetrics derives stock value and the cost of the next reorder. The
// reorder uses the last paid cost when known, else the current cost.
func itemMetrics(f core.Fields) core.Fields {
	qty := core.NumberOrZero(f, ItemQuantity)
	current := core.NumberOrZero(f, ItemCurrentCost)
	paid := core.NumberOrZero(f, ItemPaidCost)
	orderQty := core.NumberOrZero(f, ItemOrderQty)

	unit := current
	if paid > 0 {
		unit = paid
	}

	return core.Fields{
		ItemTotalValue:  core.RoundCents(qty * current),
		ItemReorderCost: core.RoundCents(orderQty * unit),
	}
}
