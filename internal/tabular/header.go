package tabular

import (
	"strings"

	"apalloc_backend/internal/money"
)

// RoleAliases maps a semantic role to the normalized header aliases
// that identify it. Roles are matched independently so a file is still
// usable when only some columns are recognized.
var RoleAliases = map[string][]string{
	"branch": {
		"branch", "branch_name", "location", "site", "office",
		"store", "entity", "branch_code",
	},
	"license": {
		"license", "licence", "product", "product_name", "subscription",
		"service", "sku", "plan", "item", "name",
	},
	"amount": {
		"amount", "charge", "cost", "extended_cost", "line_total",
		"total", "price", "net_amount", "subtotal",
	},
	"quantity":   {"qty", "quantity", "seats", "licenses", "units", "count"},
	"unit_price": {"unit_price", "price_per_unit", "rate", "unit_cost", "cost_per_license"},
	"email":      {"email", "user_email", "user_principal_name", "user_principal"},
	"first_name": {"first_name", "first", "given_name"},
	"last_name":  {"last_name", "last", "surname", "family_name"},
	"products":   {"team_products", "products", "product", "licenses", "license"},
	"username":   {"username", "branch", "location", "site"},
}

// MatchHeader resolves the original header that carries a role. The
// first pass is an exact match of normalized headers against the alias
// list; the fallback pass accepts bidirectional substring containment.
// Header order as given breaks ties; ok is false when nothing matches.
func MatchHeader(headers []string, aliases []string) (string, bool) {
	normalized := make([]string, len(headers))
	byNorm := make(map[string]string, len(headers))
	for i, h := range headers {
		norm := money.NormalizeHeader(h)
		normalized[i] = norm
		if _, seen := byNorm[norm]; !seen {
			byNorm[norm] = h
		}
	}

	for _, alias := range aliases {
		if original, ok := byNorm[alias]; ok {
			return original, true
		}
	}

	for i, norm := range normalized {
		if norm == "" {
			continue
		}
		for _, alias := range aliases {
			if strings.Contains(norm, alias) || strings.Contains(alias, norm) {
				return headers[i], true
			}
		}
	}
	return "", false
}

// MatchRole is MatchHeader against the shared role table.
func MatchRole(headers []string, role string) (string, bool) {
	return MatchHeader(headers, RoleAliases[role])
}
