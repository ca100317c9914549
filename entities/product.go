package entities

import "bitbucket.org/mmdatafocus/erp_importer/models"

var Product = register(&models.EntityDescriptor{
	Name:     "product",
	ERPModel: "product.product",

	NaturalKeyField: "default_code",
	NaturalKeyERP:   "default_code",

	Mode: models.UpsertModeSingle,

	HeaderFields: []models.FieldSpec{
		{Name: "default_code", Aliases: []string{"product_code", "item code", "sku"}, ERPField: "default_code", Type: models.FieldString, Required: true},
		{Name: "old_code", Aliases: []string{"old_product_code", "legacy code"}, ERPField: "x_old_product_code", Type: models.FieldString},
		{Name: "name", Aliases: []string{"product name", "description"}, ERPField: "name", Type: models.FieldString, Required: true, MaxLen: 256},
		{Name: "barcode", Aliases: []string{"ean", "ean13"}, ERPField: "barcode", Type: models.FieldString, MaxLen: 64},
		{Name: "type", Aliases: []string{"product type"}, ERPField: "detailed_type", Type: models.FieldString, Default: "product"},
		{Name: "list_price", Aliases: []string{"sale price", "sales price"}, ERPField: "list_price", Type: models.FieldFloat},
		{Name: "standard_price", Aliases: []string{"cost", "cost price"}, ERPField: "standard_price", Type: models.FieldFloat},
		{Name: "uom", Aliases: []string{"unit", "unit of measure"}, ERPField: "uom_id", Type: models.FieldReference, Ref: models.RefUom},
		{Name: "uom_po", Aliases: []string{"purchase unit"}, ERPField: "uom_po_id", Type: models.FieldReference, Ref: models.RefUom},
		{Name: "tax", Aliases: []string{"customer tax", "sales tax"}, ERPField: "taxes_id", Type: models.FieldReference, Ref: models.RefTax, Many2Many: true},
		{Name: "supplier_tax", Aliases: []string{"vendor tax", "purchase tax"}, ERPField: "supplier_taxes_id", Type: models.FieldReference, Ref: models.RefTax, Many2Many: true},
		{Name: "sale_ok", Aliases: []string{"can be sold"}, ERPField: "sale_ok", Type: models.FieldBool, BoolDefault: true, Default: true},
		{Name: "purchase_ok", Aliases: []string{"can be purchased"}, ERPField: "purchase_ok", Type: models.FieldBool, BoolDefault: true, Default: true},
		{Name: "weight", ERPField: "weight", Type: models.FieldFloat},
		{Name: "active", ERPField: "active", Type: models.FieldBool, BoolDefault: true, Default: true, OmitOnUpdate: true},
	},
})
