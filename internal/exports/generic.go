package exports

import (
	"fmt"

	"apalloc_backend/internal/breakdown"
	"apalloc_backend/internal/money"
	"apalloc_backend/internal/tabular"

	"github.com/shopspring/decimal"
)

const (
	unmappedBranch  = "UNMAPPED_BRANCH"
	unmappedLicense = "UNMAPPED_LICENSE"
)

// ParseGeneric reads a plain breakdown export: one data row becomes one
// charge row. Amount comes from the amount column, falling back to
// quantity × unit price when both are present; rows with no resolvable
// amount are skipped with a warning.
func ParseGeneric(t tabular.Table) RowsResult {
	result := RowsResult{Filename: t.Filename}
	if len(t.Headers) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no headers found; file skipped.", t.Filename))
		return result
	}

	branchCol, _ := tabular.MatchRole(t.Headers, "branch")
	licenseCol, hasLicense := tabular.MatchRole(t.Headers, "license")
	amountCol, hasAmount := tabular.MatchRole(t.Headers, "amount")
	qtyCol, hasQty := tabular.MatchRole(t.Headers, "quantity")
	unitCol, hasUnit := tabular.MatchRole(t.Headers, "unit_price")

	if !hasLicense {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: could not confidently identify a license/product column.", t.Filename))
	}
	if !hasAmount && (!hasQty || !hasUnit) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: no amount column and no quantity+unit price pair found; rows may be skipped.", t.Filename))
	}

	for i, row := range t.Rows {
		lineNumber := i + 2 // 1-based, after the header row

		var amount decimal.Decimal
		amountOK := false
		if hasAmount {
			amount, amountOK = money.Parse(row.Get(amountCol))
		}
		if !amountOK && hasQty && hasUnit {
			qty, qtyOK := money.Parse(row.Get(qtyCol))
			unit, unitOK := money.Parse(row.Get(unitCol))
			if qtyOK && unitOK {
				amount = qty.Mul(unit)
				amountOK = true
			}
		}
		if !amountOK {
			result.RowsSkipped++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: row %d skipped (amount missing or invalid).", t.Filename, lineNumber))
			continue
		}

		branch := money.NormalizeText(row.Get(branchCol))
		if branch == "" {
			branch = unmappedBranch
		}
		license := money.NormalizeText(row.Get(licenseCol))
		if license == "" {
			license = unmappedLicense
		}
		result.Rows = append(result.Rows, breakdown.Row{
			SourceFile: t.Filename,
			Branch:     branch,
			License:    license,
			Amount:     amount,
		})
	}
	return result
}
