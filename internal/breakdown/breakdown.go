// Package breakdown holds the atomic allocation row and the pure
// reductions over it: the branch×license summary, branch totals, the
// home-office adjustment, and the deterministic CSV artifact.
package breakdown

import (
	"sort"

	"apalloc_backend/internal/money"

	"github.com/shopspring/decimal"
)

// Row is the atomic unit consumed by the reducer: one charge posted to
// one branch under one license. Rows are never persisted; every pass
// rebuilds them. Amount may be negative for reconciliation deltas.
type Row struct {
	SourceFile string          `json:"source_file"`
	Branch     string          `json:"branch"`
	License    string          `json:"license"`
	Amount     decimal.Decimal `json:"amount"`
}

// SummaryRow is one (branch, license) group. TotalAmount is the exact
// decimal sum of the matching rows, quantized once at the end.
type SummaryRow struct {
	Branch      string          `json:"branch"`
	License     string          `json:"license"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// BranchTotal is the branch-level pivot of a summary.
type BranchTotal struct {
	Branch      string          `json:"branch"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Build groups rows by (branch, license), sums exactly, quantizes once,
// and sorts by (branch, license). Order of the input rows does not
// affect the result.
func Build(rows []Row) []SummaryRow {
	type key struct{ branch, license string }
	grouped := make(map[key]decimal.Decimal)
	for _, row := range rows {
		k := key{row.Branch, row.License}
		grouped[k] = grouped[k].Add(row.Amount)
	}

	summary := make([]SummaryRow, 0, len(grouped))
	for k, total := range grouped {
		summary = append(summary, SummaryRow{
			Branch:      k.branch,
			License:     k.license,
			TotalAmount: money.Quantize(total),
		})
	}
	sortSummary(summary)
	return summary
}

// BranchTotals pivots a summary to per-branch totals, sorted by branch.
func BranchTotals(summary []SummaryRow) []BranchTotal {
	grouped := make(map[string]decimal.Decimal)
	for _, row := range summary {
		grouped[row.Branch] = grouped[row.Branch].Add(row.TotalAmount)
	}

	totals := make([]BranchTotal, 0, len(grouped))
	for branch, total := range grouped {
		totals = append(totals, BranchTotal{Branch: branch, TotalAmount: money.Quantize(total)})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Branch < totals[j].Branch })
	return totals
}

// GrandTotal sums a summary's quantized totals.
func GrandTotal(summary []SummaryRow) decimal.Decimal {
	total := decimal.Zero
	for _, row := range summary {
		total = total.Add(row.TotalAmount)
	}
	return money.Quantize(total)
}

// ApplyHomeOfficeAdjustment posts an invoice-total delta to a single
// visible (homeOffice, license) line instead of spreading it across
// branches. A zero delta returns the summary unchanged; otherwise the
// target row is found or created, adjusted, and the summary re-sorted.
func ApplyHomeOfficeAdjustment(summary []SummaryRow, delta decimal.Decimal, license, homeOffice string) []SummaryRow {
	if delta.IsZero() {
		return summary
	}

	updated := make([]SummaryRow, len(summary))
	copy(updated, summary)

	idx := -1
	for i, row := range updated {
		if row.Branch == homeOffice && row.License == license {
			idx = i
			break
		}
	}
	if idx < 0 {
		updated = append(updated, SummaryRow{Branch: homeOffice, License: license})
		idx = len(updated) - 1
	}

	updated[idx].TotalAmount = money.Quantize(updated[idx].TotalAmount.Add(delta))
	sortSummary(updated)
	return updated
}

func sortSummary(summary []SummaryRow) {
	sort.Slice(summary, func(i, j int) bool {
		if summary[i].Branch != summary[j].Branch {
			return summary[i].Branch < summary[j].Branch
		}
		return summary[i].License < summary[j].License
	})
}
