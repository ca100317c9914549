package entities

import "bitbucket.org/mmdatafocus/erp_importer/models"

// Stock adjustments force on-hand quantities, which the server normally owns.
// The whole entity therefore sits behind --allow-unsafe-writes; without the
// flag every document is skipped before any remote call.
var StockAdjustment = register(&models.EntityDescriptor{
	Name:     "stock-adjustment",
	ERPModel: "stock.inventory",

	NaturalKeyField: "ref_name",
	NaturalKeyERP:   "name",

	Mode:      models.UpsertModeReplaceLines,
	LineModel: "stock.inventory.line",
	LineField: "line_ids",

	HeaderFields: []models.FieldSpec{
		{Name: "ref_name", Aliases: []string{"adjustment", "reference", "ref"}, ERPField: "name", Type: models.FieldString, Required: true},
		{Name: "date", Aliases: []string{"inventory date"}, ERPField: "date", Type: models.FieldDateTime},
	},
	LineFields: []models.FieldSpec{
		{Name: "product", Aliases: []string{"default_code", "old_product_code", "product_code"}, ERPField: "product_id", Type: models.FieldReference, Ref: models.RefProduct, Required: true},
		{Name: "location", Aliases: []string{"stock location"}, ERPField: "location_id", Type: models.FieldReference, Ref: models.RefLocation, Required: true},
		{Name: "product_qty", Aliases: []string{"qty", "quantity", "counted qty"}, ERPField: "product_qty", Type: models.FieldFloat, Required: true},
	},

	StateField:          "state",
	MutableStates:       []string{"draft", "confirm"},
	LockedStates:        []string{"done", "cancel"},
	ExpectedCreateState: "draft",

	DuplicatePolicy:    models.DuplicateError,
	DuplicateKeyFields: []string{"product", "location"},

	UnsafeWrites: []models.UnsafeWrite{
		{Description: "validate inventory and force quants", Method: "action_validate"},
	},
})
