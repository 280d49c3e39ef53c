package exports

import (
	"fmt"
	"strings"

	"apalloc_backend/internal/money"
	"apalloc_backend/internal/tabular"
)

// externalGuestMarker flags federated guest accounts in managed-tenant
// exports; those rows are not billable seats.
const externalGuestMarker = "#ext#"

// ParseSeatUsers reads a seat-license export (email, names, comma-
// separated product list) into user records. Rows without an email are
// skipped with a warning.
func ParseSeatUsers(t tabular.Table) UsersResult {
	result := UsersResult{Filename: t.Filename}
	if len(t.Headers) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no headers found; file skipped.", t.Filename))
		return result
	}

	emailCol, hasEmail := tabular.MatchHeader(t.Headers, []string{"email", "user_email"})
	firstCol, _ := tabular.MatchRole(t.Headers, "first_name")
	lastCol, _ := tabular.MatchRole(t.Headers, "last_name")
	productsCol, hasProducts := tabular.MatchRole(t.Headers, "products")

	if !hasEmail || !hasProducts {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: expected seat export columns (Email, Team Products) were not found.", t.Filename))
		return result
	}

	for i, row := range t.Rows {
		lineNumber := i + 2
		email := money.NormalizeEmail(row.Get(emailCol))
		if email == "" {
			result.RowsSkipped++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: row %d skipped (missing email).", t.Filename, lineNumber))
			continue
		}

		result.Users = append(result.Users, User{
			SourceFile: t.Filename,
			Email:      email,
			FirstName:  strings.TrimSpace(row.Get(firstCol)),
			LastName:   strings.TrimSpace(row.Get(lastCol)),
			Products:   splitTokens(row.Get(productsCol), ","),
		})
	}
	return result
}

// ParseManagedUsers reads a managed-tenant per-seat export. Licenses
// are split on "+"; rows that are unlicensed, tokenless, or external
// guests are not billable seats. Guests are skipped silently, missing
// emails with a warning. The office column resolves to a default
// branch through the alias table, falling back to defaultBranch.
func ParseManagedUsers(t tabular.Table, branchAliases map[string]string, defaultBranch string) UsersResult {
	result := UsersResult{Filename: t.Filename}
	if len(t.Headers) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no headers found; file skipped.", t.Filename))
		return result
	}

	emailCol, hasEmail := tabular.MatchRole(t.Headers, "email")
	firstCol, _ := tabular.MatchRole(t.Headers, "first_name")
	lastCol, _ := tabular.MatchRole(t.Headers, "last_name")
	officeCol, _ := tabular.MatchHeader(t.Headers, []string{"office", "branch", "location", "site"})
	licensesCol, hasLicenses := tabular.MatchHeader(t.Headers, []string{"licenses", "license", "products"})

	if !hasEmail || !hasLicenses {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: expected columns (User principal name, Licenses) were not found.", t.Filename))
		return result
	}

	for i, row := range t.Rows {
		lineNumber := i + 2
		email := money.NormalizeEmail(row.Get(emailCol))
		if email == "" {
			result.RowsSkipped++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: row %d skipped (missing email).", t.Filename, lineNumber))
			continue
		}
		if strings.Contains(email, externalGuestMarker) {
			result.RowsSkipped++
			continue
		}

		rawLicenses := strings.TrimSpace(row.Get(licensesCol))
		if rawLicenses == "" || strings.EqualFold(rawLicenses, "unlicensed") {
			result.RowsSkipped++
			continue
		}
		tokens := splitTokens(rawLicenses, "+")
		if len(tokens) == 0 {
			result.RowsSkipped++
			continue
		}

		office := strings.TrimSpace(row.Get(officeCol))
		result.Users = append(result.Users, User{
			SourceFile:    t.Filename,
			Email:         email,
			FirstName:     strings.TrimSpace(row.Get(firstCol)),
			LastName:      strings.TrimSpace(row.Get(lastCol)),
			Office:        office,
			DefaultBranch: resolveBranch(office, branchAliases, defaultBranch),
			Products:      tokens,
		})
	}
	return result
}

func splitTokens(raw, sep string) []string {
	var tokens []string
	for _, part := range strings.Split(raw, sep) {
		if token := strings.TrimSpace(part); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func resolveBranch(office string, aliases map[string]string, defaultBranch string) string {
	if mapped, ok := aliases[office]; ok {
		return mapped
	}
	if office == "" {
		return defaultBranch
	}
	return office
}
