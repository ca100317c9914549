package models

import (
	"errors"
	"fmt"
)

// FieldType drives the row normalizer's cell coercion.
type FieldType string

const (
	FieldString    FieldType = "string"
	FieldInt       FieldType = "int"
	FieldFloat     FieldType = "float"
	FieldDate      FieldType = "date"
	FieldDateTime  FieldType = "datetime"
	FieldBool      FieldType = "bool"
	FieldZip       FieldType = "zip"
	FieldPhone     FieldType = "phone"
	FieldDiscount  FieldType = "discount"
	FieldReference FieldType = "reference"
)

// ReferenceKind names a resolver chain.
type ReferenceKind string

const (
	RefPartner         ReferenceKind = "partner"
	RefProduct         ReferenceKind = "product"
	RefAccount         ReferenceKind = "account"
	RefTax             ReferenceKind = "tax"
	RefUom             ReferenceKind = "uom"
	RefLocation        ReferenceKind = "location"
	RefJournal         ReferenceKind = "journal"
	RefWarehouse       ReferenceKind = "warehouse"
	RefPickingType     ReferenceKind = "picking_type"
	RefCurrency        ReferenceKind = "currency"
	RefPaymentTerm     ReferenceKind = "payment_term"
	RefCountry         ReferenceKind = "country"
	RefCountryState    ReferenceKind = "country_state"
	RefPricelist       ReferenceKind = "pricelist"
	RefSalesTeam       ReferenceKind = "sales_team"
	RefTag             ReferenceKind = "tag"
	RefAnalyticAccount ReferenceKind = "analytic_account"
	RefEmployee        ReferenceKind = "employee"
)

// SymbolicReference is a human-typed key waiting to be resolved into an
// Identifier. Tokens are tried in order by the chain; disambiguators narrow
// candidate matches (parent partner, currency, owning warehouse).
type SymbolicReference struct {
	Kind           ReferenceKind
	Tokens         []string
	Disambiguators map[string]string
}

// FieldSpec maps one workbook column onto one logical field. The same spec
// is shared by the row normalizer (typing), the assembler (grouping and
// reference resolution) and the executor (payload building).
type FieldSpec struct {
	// Name is the logical field name and the default column header.
	Name string
	// Aliases are alternate column headers, matched case-insensitively
	// after whitespace collapse. Operator sheets carry both current and
	// legacy headers (partner_code vs old_code_partner).
	Aliases []string
	// ERPField is the target field on the remote model. Empty for fields
	// the engine consumes itself (grouping keys, disambiguators).
	ERPField string
	Type     FieldType
	Required bool
	MaxLen   int
	// Ref names the resolver chain for FieldReference fields.
	Ref ReferenceKind
	// Many2Many wraps the resolved id in a replace-set command instead of
	// writing it bare (taxes_id, category_id).
	Many2Many bool
	// Default is written on create when the cell is empty.
	Default any
	// BoolDefault is the value unknown boolean tokens fall back to.
	BoolDefault bool
	// OmitOnUpdate keeps an absent field untouched on update instead of
	// writing the default (an archived record must not be reactivated by a
	// re-import).
	OmitOnUpdate bool
}

// Columns returns every header this field answers to.
func (f FieldSpec) Columns() []string {
	return append([]string{f.Name}, f.Aliases...)
}

// UnsafeWrite is a forced write against fields the ERP recomputes itself.
// They require the operator to pass --allow-unsafe-writes, otherwise the
// document is skipped.
type UnsafeWrite struct {
	Description string
	Method      string
	Fields      map[string]any
}

// EntityDescriptor parameterizes the whole engine for one logical entity.
// Descriptors are static data, defined once per entity in the entities
// package.
type EntityDescriptor struct {
	Name     string
	ERPModel string

	// NaturalKeyField is the logical field whose value groups rows into
	// documents and detects existing remote records via NaturalKeyERP.
	NaturalKeyField string
	NaturalKeyERP   string

	Mode UpsertMode

	// Line layout, empty for Single mode.
	LineModel         string
	LineField         string
	LineSequenceField string

	HeaderFields []FieldSpec
	LineFields   []FieldSpec

	// StateField is the remote state column; empty for stateless entities.
	StateField          string
	MutableStates       []string
	LockedStates        []string
	ExpectedCreateState string

	DuplicatePolicy    DuplicatePolicy
	DuplicateKeyFields []string

	// UpdateExistingHeader writes header fields onto an existing mutable
	// record. Per-descriptor because some entities must never have headers
	// rewritten; --update-existing overrides either way.
	UpdateExistingHeader bool

	// AppendAlways disables the append-mode product de-duplication guard.
	AppendAlways bool

	// AllowCreatePartner lets the partner chain terminate in create.
	AllowCreatePartner bool
	PartnerRole        PartnerRole

	UnsafeWrites []UnsafeWrite
}

// OwnsLines reports whether the entity is a header+lines document.
func (d *EntityDescriptor) OwnsLines() bool { return d.Mode != UpsertModeSingle }

// Field looks a FieldSpec up by logical name across header and line fields.
func (d *EntityDescriptor) Field(name string) (FieldSpec, bool) {
	for _, f := range d.HeaderFields {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range d.LineFields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Validate catches descriptor authoring mistakes at startup instead of
// halfway through a run.
func (d *EntityDescriptor) Validate() error {
	if d.Name == "" || d.ERPModel == "" {
		return errors.New("descriptor needs a name and an ERP model")
	}
	if d.NaturalKeyField == "" || d.NaturalKeyERP == "" {
		return fmt.Errorf("%s: natural key is mandatory", d.Name)
	}
	if _, ok := d.Field(d.NaturalKeyField); !ok {
		return fmt.Errorf("%s: natural key field %q is not declared", d.Name, d.NaturalKeyField)
	}
	if d.OwnsLines() {
		if d.LineModel == "" || d.LineField == "" {
			return fmt.Errorf("%s: line-owning descriptor needs LineModel and LineField", d.Name)
		}
		if len(d.LineFields) == 0 {
			return fmt.Errorf("%s: line-owning descriptor declares no line fields", d.Name)
		}
	}
	if d.StateField != "" && len(d.MutableStates) == 0 {
		return fmt.Errorf("%s: stateful descriptor needs at least one mutable state", d.Name)
	}
	for _, m := range d.MutableStates {
		for _, l := range d.LockedStates {
			if m == l {
				return fmt.Errorf("%s: state %q is both mutable and locked", d.Name, m)
			}
		}
	}
	if d.DuplicatePolicy != "" && len(d.DuplicateKeyFields) == 0 {
		return fmt.Errorf("%s: duplicate policy without key fields", d.Name)
	}
	return nil
}
