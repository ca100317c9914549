package entities

import "bitbucket.org/mmdatafocus/erp_importer/models"

var SaleOrder = register(&models.EntityDescriptor{
	Name:     "sale-order",
	ERPModel: "sale.order",

	NaturalKeyField: "ref_name",
	NaturalKeyERP:   "name",

	Mode:              models.UpsertModeReplaceLines,
	LineModel:         "sale.order.line",
	LineField:         "order_line",
	LineSequenceField: "sequence",

	HeaderFields: []models.FieldSpec{
		{Name: "ref_name", Aliases: []string{"so number", "so_no", "reference", "ref"}, ERPField: "name", Type: models.FieldString, Required: true},
		{Name: "date_order", Aliases: []string{"order date", "date"}, ERPField: "date_order", Type: models.FieldDateTime, Required: true},
		{Name: "partner", Aliases: []string{"partner_code", "old_code_partner", "customer"}, ERPField: "partner_id", Type: models.FieldReference, Ref: models.RefPartner, Required: true},
		{Name: "pricelist", Aliases: []string{"price list"}, ERPField: "pricelist_id", Type: models.FieldReference, Ref: models.RefPricelist},
		{Name: "payment_term", Aliases: []string{"payment terms"}, ERPField: "payment_term_id", Type: models.FieldReference, Ref: models.RefPaymentTerm},
		{Name: "sales_team", Aliases: []string{"team"}, ERPField: "team_id", Type: models.FieldReference, Ref: models.RefSalesTeam},
		{Name: "warehouse", ERPField: "warehouse_id", Type: models.FieldReference, Ref: models.RefWarehouse},
		{Name: "note", Aliases: []string{"notes", "remark"}, ERPField: "note", Type: models.FieldString},
	},
	LineFields: []models.FieldSpec{
		{Name: "product", Aliases: []string{"default_code", "old_product_code", "product_code"}, ERPField: "product_id", Type: models.FieldReference, Ref: models.RefProduct, Required: true},
		{Name: "product_qty", Aliases: []string{"qty", "quantity"}, ERPField: "product_uom_qty", Type: models.FieldFloat, Required: true},
		{Name: "price_unit", Aliases: []string{"unit price", "price"}, ERPField: "price_unit", Type: models.FieldFloat, Required: true},
		{Name: "discount", Aliases: []string{"discount %"}, ERPField: "discount", Type: models.FieldDiscount},
		{Name: "tax", Aliases: []string{"taxes", "vat"}, ERPField: "tax_id", Type: models.FieldReference, Ref: models.RefTax, Many2Many: true},
	},

	StateField:          "state",
	MutableStates:       []string{"draft", "sent"},
	LockedStates:        []string{"sale", "done", "cancel"},
	ExpectedCreateState: "draft",

	DuplicatePolicy:    models.DuplicateSum,
	DuplicateKeyFields: []string{"product"},

	AllowCreatePartner: true,
	PartnerRole:        models.PartnerRoleCustomer,
})
