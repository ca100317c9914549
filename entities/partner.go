package entities

import "bitbucket.org/mmdatafocus/erp_importer/models"

// Partners are keyed by the internal reference; the legacy code rides along
// in x_old_code so the resolver chains can still find migrated records by
// their old system's id.

func partnerDescriptor(name string, role models.PartnerRole) *models.EntityDescriptor {
	rankField := "customer_rank"
	if role == models.PartnerRoleVendor {
		rankField = "supplier_rank"
	}
	return &models.EntityDescriptor{
		Name:     name,
		ERPModel: "res.partner",

		NaturalKeyField: "partner_code",
		NaturalKeyERP:   "ref",

		Mode: models.UpsertModeSingle,

		HeaderFields: []models.FieldSpec{
			{Name: "partner_code", Aliases: []string{"code", "reference", "ref"}, ERPField: "ref", Type: models.FieldString, Required: true},
			{Name: "old_code", Aliases: []string{"old_code_partner", "legacy code"}, ERPField: "x_old_code", Type: models.FieldString},
			{Name: "name", Aliases: []string{"partner name", "company name"}, ERPField: "name", Type: models.FieldString, Required: true, MaxLen: 128},
			{Name: "is_company", Aliases: []string{"company"}, ERPField: "is_company", Type: models.FieldBool, BoolDefault: false},
			{Name: "street", Aliases: []string{"address", "address 1"}, ERPField: "street", Type: models.FieldString, MaxLen: 128},
			{Name: "street2", Aliases: []string{"address 2"}, ERPField: "street2", Type: models.FieldString, MaxLen: 128},
			{Name: "city", ERPField: "city", Type: models.FieldString, MaxLen: 64},
			{Name: "zip", Aliases: []string{"zipcode", "postal code"}, ERPField: "zip", Type: models.FieldZip},
			{Name: "country", ERPField: "country_id", Type: models.FieldReference, Ref: models.RefCountry},
			{Name: "state", Aliases: []string{"province"}, ERPField: "state_id", Type: models.FieldReference, Ref: models.RefCountryState},
			{Name: "phone", Aliases: []string{"tel", "telephone"}, ERPField: "phone", Type: models.FieldPhone, MaxLen: 32},
			{Name: "mobile", ERPField: "mobile", Type: models.FieldPhone, MaxLen: 32},
			{Name: "email", ERPField: "email", Type: models.FieldString, MaxLen: 128},
			{Name: "vat", Aliases: []string{"tax id", "tax_id"}, ERPField: "vat", Type: models.FieldString, MaxLen: 32},
			{Name: "payment_term", Aliases: []string{"payment terms"}, ERPField: "property_payment_term_id", Type: models.FieldReference, Ref: models.RefPaymentTerm},
			{Name: "pricelist", Aliases: []string{"price list"}, ERPField: "property_product_pricelist", Type: models.FieldReference, Ref: models.RefPricelist},
			{Name: "tag", Aliases: []string{"tags", "category"}, ERPField: "category_id", Type: models.FieldReference, Ref: models.RefTag, Many2Many: true},
			{Name: "comment", Aliases: []string{"notes", "remark"}, ERPField: "comment", Type: models.FieldString},
			// Rank marks the partner usable in the right flows; never
			// touched on update so manual changes survive re-imports.
			{Name: "rank", ERPField: rankField, Type: models.FieldInt, Default: int64(1), OmitOnUpdate: true},
			{Name: "active", ERPField: "active", Type: models.FieldBool, BoolDefault: true, Default: true, OmitOnUpdate: true},
		},
	}
}

var Customer = register(partnerDescriptor("customer", models.PartnerRoleCustomer))

var Vendor = register(partnerDescriptor("vendor", models.PartnerRoleVendor))
