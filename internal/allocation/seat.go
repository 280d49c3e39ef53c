package allocation

import (
	"fmt"
	"sort"
	"strings"

	"apalloc_backend/internal/breakdown"
	"apalloc_backend/internal/canonical"
	"apalloc_backend/internal/exports"
	"apalloc_backend/internal/invoice"
	"apalloc_backend/internal/money"

	"github.com/shopspring/decimal"
)

// seatVendor selects the vocabulary for seat-license product tokens.
const seatVendor = "adobe"

// AllocateSeats charges each export user's canonical products at the
// invoice's per-license unit cost. A product with no invoice price is
// excluded from totals with one warning per product, never zeroed. A
// user whose directory branch is unknown lands in UnresolvedEmails and
// contributes no rows.
func (e *Engine) AllocateSeats(users []exports.User, directory map[string]Profile, perLicenseCost map[string]decimal.Decimal) SeatResult {
	var result SeatResult

	warnings := canonical.NewWarningSet()
	accum := make(map[string]*userAccum)
	var order []string
	unresolved := make(map[string]struct{})

	for _, user := range users {
		email := money.NormalizeEmail(user.Email)
		if email == "" {
			continue
		}

		profile, hasProfile := directory[email]
		branch := ""
		if hasProfile {
			branch = money.NormalizeText(profile.Branch)
		}
		firstName := money.NormalizeText(user.FirstName)
		lastName := money.NormalizeText(user.LastName)
		if hasProfile {
			if firstName == "" {
				firstName = money.NormalizeText(profile.FirstName)
			}
			if lastName == "" {
				lastName = money.NormalizeText(profile.LastName)
			}
		}

		entry, ok := accum[email]
		if !ok {
			entry = &userAccum{row: UserRow{
				Email:     email,
				FirstName: firstName,
				LastName:  lastName,
				Branch:    branch,
			}}
			accum[email] = entry
			order = append(order, email)
		} else {
			if entry.row.Branch == "" {
				entry.row.Branch = branch
			}
			if entry.row.FirstName == "" {
				entry.row.FirstName = firstName
			}
			if entry.row.LastName == "" {
				entry.row.LastName = lastName
			}
		}

		for _, token := range user.Products {
			name, ok := e.vocab.Canonicalize(seatVendor, token)
			if !ok {
				warnings.AddOnce("product:"+token, fmt.Sprintf("Unrecognized product '%s' skipped.", token))
				continue
			}
			if !containsString(entry.licenses, name) {
				entry.licenses = append(entry.licenses, name)
			}
			cost, priced := perLicenseCost[name]
			if !priced {
				warnings.AddOnce("cost:"+name, fmt.Sprintf("No invoice price found for '%s'; charges skipped.", name))
				continue
			}
			entry.total = entry.total.Add(cost)
			if entry.row.Branch != "" {
				result.Rows = append(result.Rows, breakdown.Row{
					SourceFile: user.SourceFile,
					Branch:     entry.row.Branch,
					License:    name,
					Amount:     cost,
				})
			}
		}

		if entry.row.Branch == "" {
			if _, seen := unresolved[email]; !seen {
				unresolved[email] = struct{}{}
				result.UnresolvedEmails = append(result.UnresolvedEmails, email)
			}
		}
	}

	result.Warnings = warnings.Warnings()
	result.UserRows = finishUserRows(accum, order)
	return result
}

// AllocateSupport assigns each billable support block to a branch:
// keyword inference over the known branch list (high confidence), else
// the home office (low confidence, flagged for review). An explicit
// user update always wins. The review rows come back needs-review
// first, then by summary.
func (e *Engine) AllocateSupport(blocks []invoice.SupportBlock, updates []SupportUpdate) ([]breakdown.Row, []SupportRow, []string) {
	updatesByKey := make(map[string]string)
	for _, u := range updates {
		rowKey := money.NormalizeText(u.RowKey)
		if rowKey == "" {
			continue
		}
		updatesByKey[rowKey] = money.NormalizeText(u.Branch)
	}

	var rows []breakdown.Row
	var supportRows []SupportRow
	var warnings []string
	unresolvedReviews := 0

	for _, block := range blocks {
		branch, confidence, reason := e.inferSupportBranch(block.ChargeSummary)
		if submitted, ok := updatesByKey[block.RowKey]; ok {
			if submitted != "" {
				branch = submitted
			}
			confidence = "user"
			reason = "Branch set by user."
		}

		needsReview := confidence != "high" && confidence != "user"
		if needsReview {
			unresolvedReviews++
		}

		rows = append(rows, breakdown.Row{
			SourceFile: invoiceSourceFile,
			Branch:     branch,
			License:    "Support: " + block.ChargeSummary,
			Amount:     block.Amount,
		})
		supportRows = append(supportRows, SupportRow{
			RowKey:           block.RowKey,
			ChargeSummary:    block.ChargeSummary,
			BillableEntries:  block.BillableEntries,
			BillableHours:    block.BillableHours,
			Amount:           block.Amount,
			Branch:           branch,
			Confidence:       confidence,
			AssignmentReason: reason,
			NeedsReview:      needsReview,
		})
	}

	if unresolvedReviews > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d support block(s) defaulted to %s due to low-confidence matching. Review recommended.",
			unresolvedReviews, e.rules.HomeOffice))
	}

	sort.SliceStable(supportRows, func(i, j int) bool {
		if supportRows[i].NeedsReview != supportRows[j].NeedsReview {
			return supportRows[i].NeedsReview
		}
		return supportRows[i].ChargeSummary < supportRows[j].ChargeSummary
	})
	return rows, supportRows, warnings
}

// inferSupportBranch searches the charge summary for a known branch
// keyword. The home office is never inferred, only defaulted to.
func (e *Engine) inferSupportBranch(chargeSummary string) (branch, confidence, reason string) {
	summaryLower := strings.ToLower(chargeSummary)
	for _, known := range e.rules.KnownBranches {
		if known == e.rules.HomeOffice {
			continue
		}
		if strings.Contains(summaryLower, strings.ToLower(known)) {
			return known, "high", fmt.Sprintf("Found branch keyword '%s' in charge summary.", known)
		}
	}
	return e.rules.HomeOffice, "low", fmt.Sprintf("No explicit branch found in charge summary; defaulted to %s.", e.rules.HomeOffice)
}
