package resolver

import (
	"context"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/erp_importer/erpclient"
	"bitbucket.org/mmdatafocus/erp_importer/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Resolver translates symbolic references (partner codes, product codes,
// tax rates, location names) into ERP identifiers, walking the canonical
// fallback chain for each kind. Positive and negative results are cached
// for the run, so resolution is deterministic and a missing reference is
// searched at most once.
type Resolver struct {
	call  erpclient.Caller
	cache *Cache
	log   *logrus.Logger

	allowCreatePartner bool
	partnerRole        models.PartnerRole
}

func New(call erpclient.Caller, log *logrus.Logger) *Resolver {
	return &Resolver{call: call, cache: NewCache(), log: log}
}

// AllowPartnerCreation lets the partner chain terminate in create, setting
// the rank field matching the role (vendor imports create suppliers).
func (r *Resolver) AllowPartnerCreation(role models.PartnerRole) {
	r.allowCreatePartner = true
	r.partnerRole = role
}

// Resolve walks the chain for the reference kind. It returns found=false
// for an unresolvable reference (the caller decides whether that is fatal)
// and an error only for transport or authentication problems.
func (r *Resolver) Resolve(ctx context.Context, worker int, ref models.SymbolicReference) (models.Identifier, bool, error) {
	key := Key(ref)
	if id, found, known := r.cache.Get(key); known {
		return id, found, nil
	}

	mu := r.cache.Lock(key)
	mu.Lock()
	defer mu.Unlock()
	if id, found, known := r.cache.Get(key); known {
		return id, found, nil
	}

	id, found, err := r.resolveUncached(ctx, worker, ref)
	if err != nil {
		// Transport errors are not cached; the next attempt may succeed.
		return models.Identifier{}, false, err
	}
	if found {
		r.cache.PutPositive(key, id)
	} else {
		r.cache.PutNegative(key)
		r.log.WithFields(logrus.Fields{
			"kind":   string(ref.Kind),
			"tokens": strings.Join(ref.Tokens, ", "),
		}).Debug("reference unresolved")
	}
	return id, found, nil
}

func (r *Resolver) resolveUncached(ctx context.Context, worker int, ref models.SymbolicReference) (models.Identifier, bool, error) {
	switch ref.Kind {
	case models.RefPartner:
		return r.resolvePartner(ctx, worker, ref)
	case models.RefProduct:
		return r.resolveProduct(ctx, worker, ref)
	case models.RefAccount:
		return r.resolveAccount(ctx, worker, ref)
	case models.RefTax:
		return r.resolveTax(ctx, worker, ref)
	case models.RefWarehouse:
		return r.resolveWarehouse(ctx, worker, ref)
	case models.RefPickingType:
		return r.resolvePickingType(ctx, worker, ref)
	case models.RefLocation:
		return r.resolveLocation(ctx, worker, ref)
	default:
		if chain, ok := simpleChains[ref.Kind]; ok {
			return r.runSimpleChain(ctx, worker, chain, ref)
		}
	}
	return models.Identifier{}, false, fmt.Errorf("no resolver chain for kind %q", ref.Kind)
}

// searchOne returns the first id matching the domain, zero when none.
func (r *Resolver) searchOne(ctx context.Context, worker int, model string, domain []any) (models.Identifier, bool, error) {
	ids, err := erpclient.Search(ctx, r.call, worker, model, domain, 1)
	if err != nil {
		return models.Identifier{}, false, err
	}
	if len(ids) == 0 {
		return models.Identifier{}, false, nil
	}
	return models.Identifier{Model: model, ID: ids[0]}, true, nil
}

// resolvePartner: persisted old code, current partner code, then
// case-insensitive exact name; create when the script allows it.
func (r *Resolver) resolvePartner(ctx context.Context, worker int, ref models.SymbolicReference) (models.Identifier, bool, error) {
	const model = "res.partner"
	for _, token := range cleanTokens(ref.Tokens) {
		for _, field := range []string{"x_old_code", "ref"} {
			id, found, err := r.searchOne(ctx, worker, model, []any{erpclient.Domain(field, "=", token)})
			if err != nil || found {
				return id, found, err
			}
		}
		id, found, err := r.searchOne(ctx, worker, model, []any{erpclient.Domain("name", "=ilike", token)})
		if err != nil || found {
			return id, found, err
		}
	}

	if r.allowCreatePartner {
		return r.createPartner(ctx, worker, ref)
	}
	return models.Identifier{}, false, nil
}

func (r *Resolver) createPartner(ctx context.Context, worker int, ref models.SymbolicReference) (models.Identifier, bool, error) {
	tokens := cleanTokens(ref.Tokens)
	if len(tokens) == 0 {
		return models.Identifier{}, false, nil
	}
	name := ref.Disambiguators["name"]
	if name == "" {
		name = tokens[0]
	}
	values := map[string]any{"name": name, "ref": tokens[0]}
	if r.partnerRole == models.PartnerRoleVendor {
		values["supplier_rank"] = int64(1)
	} else {
		values["customer_rank"] = int64(1)
	}
	id, err := erpclient.Create(ctx, r.call, worker, "res.partner", values)
	if err != nil {
		return models.Identifier{}, false, err
	}
	r.log.WithFields(logrus.Fields{"partner": name, "id": id, "role": string(r.partnerRole)}).Info("created missing partner")
	return models.Identifier{Model: "res.partner", ID: id}, true, nil
}

// resolveProduct: exact default code, exact legacy code, then partial
// matches on both and on name; for known prefixes the whole chain is
// retried without the prefix.
func (r *Resolver) resolveProduct(ctx context.Context, worker int, ref models.SymbolicReference) (models.Identifier, bool, error) {
	const model = "product.product"
	tokens := cleanTokens(ref.Tokens)

	id, found, err := r.productChain(ctx, worker, model, tokens)
	if err != nil || found {
		return id, found, err
	}

	// BG- prefixed codes appear both with and without the prefix in the
	// legacy data.
	var stripped []string
	for _, token := range tokens {
		for _, prefix := range []string{"BG-"} {
			if strings.HasPrefix(strings.ToUpper(token), prefix) {
				stripped = append(stripped, token[len(prefix):])
			}
		}
	}
	if len(stripped) > 0 {
		return r.productChain(ctx, worker, model, stripped)
	}
	return models.Identifier{}, false, nil
}

func (r *Resolver) productChain(ctx context.Context, worker int, model string, tokens []string) (models.Identifier, bool, error) {
	for _, token := range tokens {
		for _, field := range []string{"default_code", "x_old_product_code"} {
			id, found, err := r.searchOne(ctx, worker, model, []any{erpclient.Domain(field, "=", token)})
			if err != nil || found {
				return id, found, err
			}
		}
	}
	for _, token := range tokens {
		for _, field := range []string{"default_code", "x_old_product_code", "name"} {
			id, found, err := r.searchOne(ctx, worker, model, []any{erpclient.Domain(field, "ilike", token)})
			if err != nil || found {
				return id, found, err
			}
		}
	}
	return models.Identifier{}, false, nil
}

// resolveAccount: exact code with non-alphanumerics stripped, then
// case-insensitive prefix match.
func (r *Resolver) resolveAccount(ctx context.Context, worker int, ref models.SymbolicReference) (models.Identifier, bool, error) {
	const model = "account.account"
	for _, token := range cleanTokens(ref.Tokens) {
		code := stripNonAlnum(token)
		if code == "" {
			continue
		}
		id, found, err := r.searchOne(ctx, worker, model, []any{erpclient.Domain("code", "=", code)})
		if err != nil || found {
			return id, found, err
		}
		id, found, err = r.searchOne(ctx, worker, model, []any{erpclient.Domain("code", "=ilike", code+"%")})
		if err != nil || found {
			return id, found, err
		}
	}
	return models.Identifier{}, false, nil
}

// resolveTax parses the token as a raw or percent-suffixed rate and matches
// purchase/universal active taxes on amount within 0.01.
func (r *Resolver) resolveTax(ctx context.Context, worker int, ref models.SymbolicReference) (models.Identifier, bool, error) {
	const model = "account.tax"
	var want decimal.Decimal
	parsed := false
	for _, token := range cleanTokens(ref.Tokens) {
		token = strings.TrimSuffix(token, "%")
		d, err := decimal.NewFromString(strings.TrimSpace(token))
		if err == nil {
			want = d
			parsed = true
			break
		}
	}
	if !parsed {
		return models.Identifier{}, false, nil
	}

	domain := []any{
		erpclient.Domain("type_tax_use", "in", []any{"purchase", "none"}),
		erpclient.Domain("active", "=", true),
	}
	records, err := erpclient.SearchRead(ctx, r.call, worker, model, domain, []string{"id", "amount"}, 0)
	if err != nil {
		return models.Identifier{}, false, err
	}
	tolerance := decimal.NewFromFloat(0.01)
	for _, rec := range records {
		amount := decimal.NewFromFloat(erpclient.Float64(rec["amount"]))
		if amount.Sub(want).Abs().LessThanOrEqual(tolerance) {
			return models.Identifier{Model: model, ID: erpclient.Int64(rec["id"])}, true, nil
		}
	}
	return models.Identifier{}, false, nil
}

// resolveWarehouse: exact name, then case-insensitive partial.
func (r *Resolver) resolveWarehouse(ctx context.Context, worker int, ref models.SymbolicReference) (models.Identifier, bool, error) {
	const model = "stock.warehouse"
	for _, token := range cleanTokens(ref.Tokens) {
		id, found, err := r.searchOne(ctx, worker, model, []any{erpclient.Domain("name", "=", token)})
		if err != nil || found {
			return id, found, err
		}
		id, found, err = r.searchOne(ctx, worker, model, []any{erpclient.Domain("name", "ilike", token)})
		if err != nil || found {
			return id, found, err
		}
	}
	return models.Identifier{}, false, nil
}

// resolvePickingType: exact name, partial name, owning warehouse name, and
// finally the default incoming picking type.
func (r *Resolver) resolvePickingType(ctx context.Context, worker int, ref models.SymbolicReference) (models.Identifier, bool, error) {
	const model = "stock.picking.type"
	for _, token := range cleanTokens(ref.Tokens) {
		id, found, err := r.searchOne(ctx, worker, model, []any{erpclient.Domain("name", "=", token)})
		if err != nil || found {
			return id, found, err
		}
		id, found, err = r.searchOne(ctx, worker, model, []any{erpclient.Domain("name", "ilike", token)})
		if err != nil || found {
			return id, found, err
		}
		id, found, err = r.searchOne(ctx, worker, model, []any{
			erpclient.Domain("warehouse_id.name", "=ilike", token),
			erpclient.Domain("code", "=", "incoming"),
		})
		if err != nil || found {
			return id, found, err
		}
	}
	return r.searchOne(ctx, worker, model, []any{erpclient.Domain("code", "=", "incoming")})
}

// resolveLocation: special usage mappings for Customers/Vendors, then exact
// name, complete hierarchical name, partial name, and the internal Stock
// location as last resort.
func (r *Resolver) resolveLocation(ctx context.Context, worker int, ref models.SymbolicReference) (models.Identifier, bool, error) {
	const model = "stock.location"
	for _, token := range cleanTokens(ref.Tokens) {
		switch strings.ToLower(token) {
		case "customers":
			return r.searchOne(ctx, worker, model, []any{erpclient.Domain("usage", "=", "customer")})
		case "vendors", "suppliers":
			return r.searchOne(ctx, worker, model, []any{erpclient.Domain("usage", "=", "supplier")})
		}
		for _, field := range []string{"name", "complete_name"} {
			id, found, err := r.searchOne(ctx, worker, model, []any{erpclient.Domain(field, "=", token)})
			if err != nil || found {
				return id, found, err
			}
		}
		id, found, err := r.searchOne(ctx, worker, model, []any{erpclient.Domain("name", "ilike", token)})
		if err != nil || found {
			return id, found, err
		}
	}
	return r.searchOne(ctx, worker, model, []any{
		erpclient.Domain("usage", "=", "internal"),
		erpclient.Domain("name", "=ilike", "Stock"),
	})
}

func cleanTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.Join(strings.Fields(strings.TrimSpace(t)), " ")
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
