package entities

import "bitbucket.org/mmdatafocus/erp_importer/models"

// Purchase orders are the reference document import: header grouped by the
// PO number, vendor resolved through the partner chain, duplicate product
// lines summed with a quantity-weighted unit price.
var PurchaseOrder = register(&models.EntityDescriptor{
	Name:     "purchase-order",
	ERPModel: "purchase.order",

	NaturalKeyField: "ref_name",
	NaturalKeyERP:   "name",

	Mode:              models.UpsertModeReplaceLines,
	LineModel:         "purchase.order.line",
	LineField:         "order_line",
	LineSequenceField: "sequence",

	HeaderFields: []models.FieldSpec{
		{Name: "ref_name", Aliases: []string{"po number", "po_no", "reference", "ref"}, ERPField: "name", Type: models.FieldString, Required: true},
		{Name: "date_order", Aliases: []string{"order date", "date"}, ERPField: "date_order", Type: models.FieldDateTime, Required: true},
		{Name: "date_planned", Aliases: []string{"receipt date", "scheduled date"}, ERPField: "date_planned", Type: models.FieldDateTime},
		{Name: "partner", Aliases: []string{"partner_code", "old_code_partner", "vendor", "supplier"}, ERPField: "partner_id", Type: models.FieldReference, Ref: models.RefPartner, Required: true},
		{Name: "currency", Aliases: []string{"currency_id"}, ERPField: "currency_id", Type: models.FieldReference, Ref: models.RefCurrency},
		{Name: "picking_type", Aliases: []string{"deliver to", "operation type"}, ERPField: "picking_type_id", Type: models.FieldReference, Ref: models.RefPickingType},
		{Name: "payment_term", Aliases: []string{"payment terms"}, ERPField: "payment_term_id", Type: models.FieldReference, Ref: models.RefPaymentTerm},
		{Name: "notes", Aliases: []string{"note", "remark", "remarks"}, ERPField: "notes", Type: models.FieldString},
	},
	LineFields: []models.FieldSpec{
		{Name: "product", Aliases: []string{"default_code", "old_product_code", "product_code", "item code"}, ERPField: "product_id", Type: models.FieldReference, Ref: models.RefProduct, Required: true},
		{Name: "product_qty", Aliases: []string{"qty", "quantity"}, ERPField: "product_qty", Type: models.FieldFloat, Required: true},
		{Name: "price_unit", Aliases: []string{"unit price", "price"}, ERPField: "price_unit", Type: models.FieldFloat, Required: true},
		{Name: "discount", Aliases: []string{"fixed_discount", "discount %"}, ERPField: "discount", Type: models.FieldDiscount},
		{Name: "tax", Aliases: []string{"texs_id", "taxes", "vat"}, ERPField: "taxes_id", Type: models.FieldReference, Ref: models.RefTax, Many2Many: true},
	},

	StateField:          "state",
	MutableStates:       []string{"draft", "sent"},
	LockedStates:        []string{"purchase", "done", "cancel"},
	ExpectedCreateState: "draft",

	DuplicatePolicy:    models.DuplicateSum,
	DuplicateKeyFields: []string{"product"},

	AllowCreatePartner: true,
	PartnerRole:        models.PartnerRoleVendor,
})

// Blanket orders accumulate lines over several imports, so the mode appends
// instead of replacing and already-present products are left alone.
var BlanketOrder = register(&models.EntityDescriptor{
	Name:     "blanket-order",
	ERPModel: "purchase.requisition",

	NaturalKeyField: "ref_name",
	NaturalKeyERP:   "name",

	Mode:      models.UpsertModeAppendLines,
	LineModel: "purchase.requisition.line",
	LineField: "line_ids",

	HeaderFields: []models.FieldSpec{
		{Name: "ref_name", Aliases: []string{"agreement", "reference", "ref"}, ERPField: "name", Type: models.FieldString, Required: true},
		{Name: "partner", Aliases: []string{"partner_code", "old_code_partner", "vendor"}, ERPField: "vendor_id", Type: models.FieldReference, Ref: models.RefPartner, Required: true},
		{Name: "date_start", Aliases: []string{"start date"}, ERPField: "date_start", Type: models.FieldDate},
		{Name: "date_end", Aliases: []string{"end date", "agreement deadline"}, ERPField: "date_end", Type: models.FieldDate},
		{Name: "currency", ERPField: "currency_id", Type: models.FieldReference, Ref: models.RefCurrency},
	},
	LineFields: []models.FieldSpec{
		{Name: "product", Aliases: []string{"default_code", "old_product_code", "product_code"}, ERPField: "product_id", Type: models.FieldReference, Ref: models.RefProduct, Required: true},
		{Name: "product_qty", Aliases: []string{"qty", "quantity"}, ERPField: "product_qty", Type: models.FieldFloat, Required: true},
		{Name: "price_unit", Aliases: []string{"unit price", "price"}, ERPField: "price_unit", Type: models.FieldFloat, Required: true},
		{Name: "schedule_date", Aliases: []string{"delivery date"}, ERPField: "schedule_date", Type: models.FieldDate},
	},

	StateField:          "state",
	MutableStates:       []string{"draft", "ongoing"},
	LockedStates:        []string{"done", "cancel", "closed"},
	ExpectedCreateState: "draft",

	DuplicatePolicy:    models.DuplicateFirstWins,
	DuplicateKeyFields: []string{"product", "schedule_date"},
})
