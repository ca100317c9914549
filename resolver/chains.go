package resolver

import (
	"context"

	"bitbucket.org/mmdatafocus/erp_importer/erpclient"
	"bitbucket.org/mmdatafocus/erp_importer/models"
)

// The two- and three-step chains are plain data: one lookup per step, first
// hit wins. Kinds with amount matching, prefix stripping or usage mappings
// have dedicated functions in resolver.go.

type chainStep struct {
	Field string
	Op    string // "=", "=ilike", "ilike"
}

type simpleChain struct {
	Model string
	Steps []chainStep
	// DisambiguatorField appends an extra criterion when the reference
	// carries the named disambiguator (e.g. a state's country).
	DisambiguatorKey   string
	DisambiguatorField string
}

var simpleChains = map[models.ReferenceKind]simpleChain{
	models.RefJournal: {
		Model: "account.journal",
		Steps: []chainStep{{"code", "="}, {"name", "=ilike"}, {"name", "ilike"}},
	},
	models.RefUom: {
		Model: "uom.uom",
		Steps: []chainStep{{"name", "=ilike"}, {"name", "ilike"}},
	},
	models.RefCurrency: {
		Model: "res.currency",
		Steps: []chainStep{{"name", "=ilike"}, {"symbol", "="}},
	},
	models.RefPaymentTerm: {
		Model: "account.payment.term",
		Steps: []chainStep{{"name", "=ilike"}, {"name", "ilike"}},
	},
	models.RefCountry: {
		Model: "res.country",
		Steps: []chainStep{{"code", "=ilike"}, {"name", "=ilike"}, {"name", "ilike"}},
	},
	models.RefCountryState: {
		Model:              "res.country.state",
		Steps:              []chainStep{{"code", "=ilike"}, {"name", "=ilike"}, {"name", "ilike"}},
		DisambiguatorKey:   "country",
		DisambiguatorField: "country_id.name",
	},
	models.RefPricelist: {
		Model: "product.pricelist",
		Steps: []chainStep{{"name", "=ilike"}, {"name", "ilike"}},
	},
	models.RefSalesTeam: {
		Model: "crm.team",
		Steps: []chainStep{{"name", "=ilike"}, {"name", "ilike"}},
	},
	models.RefTag: {
		Model: "res.partner.category",
		Steps: []chainStep{{"name", "=ilike"}},
	},
	models.RefAnalyticAccount: {
		Model: "account.analytic.account",
		Steps: []chainStep{{"code", "="}, {"name", "=ilike"}, {"name", "ilike"}},
	},
	models.RefEmployee: {
		Model: "hr.employee",
		Steps: []chainStep{{"name", "=ilike"}, {"name", "ilike"}},
	},
}

func (r *Resolver) runSimpleChain(ctx context.Context, worker int, chain simpleChain, ref models.SymbolicReference) (models.Identifier, bool, error) {
	var extra []any
	if chain.DisambiguatorKey != "" {
		if v := ref.Disambiguators[chain.DisambiguatorKey]; v != "" {
			extra = append(extra, erpclient.Domain(chain.DisambiguatorField, "=ilike", v))
		}
	}
	for _, token := range cleanTokens(ref.Tokens) {
		for _, step := range chain.Steps {
			domain := append([]any{erpclient.Domain(step.Field, step.Op, token)}, extra...)
			id, found, err := r.searchOne(ctx, worker, chain.Model, domain)
			if err != nil || found {
				return id, found, err
			}
		}
	}
	return models.Identifier{}, false, nil
}
