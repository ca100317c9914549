package entities

import "bitbucket.org/mmdatafocus/erp_importer/models"

// Both invoice flavors live on account.move and differ only in move_type,
// the partner role and the journal default. The vendor reference is the
// natural key; account.move names are server-assigned on posting and
// useless for matching.

func invoiceDescriptor(name, moveType string, role models.PartnerRole) *models.EntityDescriptor {
	return &models.EntityDescriptor{
		Name:     name,
		ERPModel: "account.move",

		NaturalKeyField: "invoice_ref",
		NaturalKeyERP:   "ref",

		Mode:      models.UpsertModeReplaceLines,
		LineModel: "account.move.line",
		LineField: "invoice_line_ids",

		HeaderFields: []models.FieldSpec{
			{Name: "invoice_ref", Aliases: []string{"invoice number", "invoice_no", "reference", "ref"}, ERPField: "ref", Type: models.FieldString, Required: true},
			{Name: "move_type", ERPField: "move_type", Type: models.FieldString, Default: moveType},
			{Name: "partner", Aliases: []string{"partner_code", "old_code_partner", "customer", "vendor"}, ERPField: "partner_id", Type: models.FieldReference, Ref: models.RefPartner, Required: true},
			{Name: "invoice_date", Aliases: []string{"date", "bill date"}, ERPField: "invoice_date", Type: models.FieldDate, Required: true},
			{Name: "invoice_date_due", Aliases: []string{"due date"}, ERPField: "invoice_date_due", Type: models.FieldDate},
			{Name: "journal", Aliases: []string{"journal code"}, ERPField: "journal_id", Type: models.FieldReference, Ref: models.RefJournal},
			{Name: "currency", ERPField: "currency_id", Type: models.FieldReference, Ref: models.RefCurrency},
			{Name: "payment_term", Aliases: []string{"payment terms"}, ERPField: "invoice_payment_term_id", Type: models.FieldReference, Ref: models.RefPaymentTerm},
			{Name: "narration", Aliases: []string{"notes", "remark"}, ERPField: "narration", Type: models.FieldString},
		},
		LineFields: []models.FieldSpec{
			{Name: "product", Aliases: []string{"default_code", "old_product_code", "product_code"}, ERPField: "product_id", Type: models.FieldReference, Ref: models.RefProduct, Required: true},
			{Name: "quantity", Aliases: []string{"qty"}, ERPField: "quantity", Type: models.FieldFloat, Required: true},
			{Name: "price_unit", Aliases: []string{"unit price", "price"}, ERPField: "price_unit", Type: models.FieldFloat, Required: true},
			{Name: "discount", Aliases: []string{"discount %"}, ERPField: "discount", Type: models.FieldDiscount},
			{Name: "account", Aliases: []string{"account code", "account_code"}, ERPField: "account_id", Type: models.FieldReference, Ref: models.RefAccount},
			{Name: "tax", Aliases: []string{"taxes", "vat"}, ERPField: "tax_ids", Type: models.FieldReference, Ref: models.RefTax, Many2Many: true},
			{Name: "analytic_account", Aliases: []string{"analytic"}, ERPField: "analytic_account_id", Type: models.FieldReference, Ref: models.RefAnalyticAccount},
			{Name: "label", Aliases: []string{"description"}, ERPField: "name", Type: models.FieldString},
		},

		StateField:          "state",
		MutableStates:       []string{"draft"},
		LockedStates:        []string{"posted", "cancel"},
		ExpectedCreateState: "draft",

		DuplicatePolicy:    models.DuplicateFirstWins,
		DuplicateKeyFields: []string{"product", "price_unit"},

		AllowCreatePartner: true,
		PartnerRole:        role,
	}
}

var CustomerInvoice = register(invoiceDescriptor("customer-invoice", "out_invoice", models.PartnerRoleCustomer))

var VendorBill = register(invoiceDescriptor("vendor-bill", "in_invoice", models.PartnerRoleVendor))
