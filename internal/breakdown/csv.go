package breakdown

import (
	"encoding/csv"
	"strings"
)

// WriteCSV renders a summary as the export artifact: a branch-total
// pivot block first, a grand-total row, a blank separator, then the
// full detail block with each row's branch total alongside. Output is
// byte-for-byte reproducible for the same summary.
func WriteCSV(summary []SummaryRow) string {
	totals := BranchTotals(summary)
	byBranch := make(map[string]string, len(totals))

	var b strings.Builder
	w := csv.NewWriter(&b)

	_ = w.Write([]string{"Branch", "Total"})
	for _, row := range totals {
		amount := row.TotalAmount.StringFixed(2)
		byBranch[row.Branch] = amount
		_ = w.Write([]string{row.Branch, amount})
	}
	_ = w.Write([]string{"Grand Total", "", GrandTotal(summary).StringFixed(2)})
	_ = w.Write([]string{})

	_ = w.Write([]string{"Branch", "License", "TotalAmount", "BranchTotal"})
	for _, row := range summary {
		branchTotal, ok := byBranch[row.Branch]
		if !ok {
			branchTotal = row.TotalAmount.StringFixed(2)
		}
		_ = w.Write([]string{row.Branch, row.License, row.TotalAmount.StringFixed(2), branchTotal})
	}
	w.Flush()
	return b.String()
}
