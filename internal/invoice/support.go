package invoice

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"apalloc_backend/internal/canonical"
	"apalloc_backend/internal/money"
	"apalloc_backend/internal/pdftext"

	"github.com/shopspring/decimal"
)

var (
	// Support invoices share the managed layout's Date/Invoice header
	// column pair, so the number pattern is the same.
	supportTotalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Invoice Total:\s*\$?\s*([0-9][0-9,]*\.\d{2})`),
		regexp.MustCompile(`(?i)Balance Due:\s*\$?\s*([0-9][0-9,]*\.\d{2})`),
	}

	chargeToRe = regexp.MustCompile(`(?i)Charge To:`)

	// Column header separating a block's charge description from its
	// per-entry body.
	entryTableRe = regexp.MustCompile(`(?i)Date\s+Staff\s+Notes\s+Bill\s+Hours\s+Rate\s+Ext Amt`)

	locationTailRe = regexp.MustCompile(`(?i)\s+Location:\s*.*$`)

	// A billable entry carries the Bill marker followed by hours, rate
	// and extended amount.
	billMarkerRe = regexp.MustCompile(`\bY\b`)
	billHoursRe  = regexp.MustCompile(`\bY\s+([0-9]+\.[0-9]+)`)
	billAmountRe = regexp.MustCompile(`\bY\s+[0-9]+\.[0-9]+\s+[0-9]+\.[0-9]+\s+\$?([0-9][0-9,]*\.[0-9]{2})`)

	blockSubtotalRe = regexp.MustCompile(`(?i)Subtotal:?\s*\$?\s*([0-9][0-9,]*\.\d{2})`)
)

// supportBlockTerminators end a block's body when they occur before
// the next Charge To header.
var supportBlockTerminators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Total Hours:`),
	regexp.MustCompile(`(?i)Invoice Subtotal:`),
	regexp.MustCompile(`(?i)Invoice Total:`),
	regexp.MustCompile(`(?i)Balance Due:`),
}

// splitSupportBlocks cuts the text into one segment per Charge To
// header. Each segment runs to the next header or the first
// terminator inside it, whichever comes first.
func splitSupportBlocks(text string) []string {
	starts := chargeToRe.FindAllStringIndex(text, -1)
	if starts == nil {
		return nil
	}

	blocks := make([]string, 0, len(starts))
	for i, loc := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		segment := text[loc[1]:end]
		for _, term := range supportBlockTerminators {
			if cut := term.FindStringIndex(segment); cut != nil && cut[0] < len(segment) {
				segment = segment[:cut[0]]
			}
		}
		blocks = append(blocks, segment)
	}
	return blocks
}

// supportChargeSummary derives the block's display summary from its
// header line: the client prefix before the first " / " and any
// trailing Location column are noise.
func supportChargeSummary(header string) string {
	summary := money.NormalizeText(header)
	if idx := strings.Index(summary, " / "); idx >= 0 {
		summary = summary[idx+len(" / "):]
	}
	summary = locationTailRe.ReplaceAllString(summary, "")
	return money.NormalizeText(summary)
}

// supportRowKey is stable across parses of the same invoice: the
// block's ordinal plus a short hash of its normalized summary, so a
// re-upload with reordered blocks never silently inherits another
// block's stored branch correction.
func supportRowKey(ordinal int, summary string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d:%s", ordinal, strings.ToLower(summary))))
	return fmt.Sprintf("%d:%s", ordinal, hex.EncodeToString(sum[:])[:10])
}

func scanSupportBlocks(text, filename string, warnings *canonical.WarningSet) []SupportBlock {
	var blocks []SupportBlock
	for i, segment := range splitSupportBlocks(text) {
		header := segment
		body := ""
		if loc := entryTableRe.FindStringIndex(segment); loc != nil {
			header = segment[:loc[0]]
			body = segment[loc[1]:]
		}
		summary := supportChargeSummary(header)
		ordinal := i + 1

		// Non-billable blocks (internal time, no-charge visits) are
		// skipped outright; only Bill=Y work is allocated.
		entries := len(billMarkerRe.FindAllString(body, -1))
		if entries == 0 {
			continue
		}

		hours := decimal.Zero
		for _, match := range billHoursRe.FindAllStringSubmatch(body, -1) {
			if value, ok := money.Parse(match[1]); ok {
				hours = hours.Add(value)
			}
		}

		amount := decimal.Zero
		haveAmount := false
		if match := blockSubtotalRe.FindStringSubmatch(body); match != nil {
			if value, ok := money.Parse(match[1]); ok {
				amount = value
				haveAmount = true
			}
		}
		if !haveAmount {
			for _, match := range billAmountRes(body) {
				if value, ok := money.Parse(match); ok {
					amount = amount.Add(value)
					haveAmount = true
				}
			}
		}
		if !haveAmount {
			warnings.Add(fmt.Sprintf("%s: dropping billable block '%s': no amount could be extracted.", filename, summary))
			continue
		}

		// The row key hashes the raw summary so it stays stable even
		// when the display name falls back to the ordinal placeholder.
		rowKey := supportRowKey(ordinal, summary)
		if summary == "" {
			summary = fmt.Sprintf("Support Block %d", ordinal)
		}

		blocks = append(blocks, SupportBlock{
			RowKey:          rowKey,
			ChargeSummary:   summary,
			BillableEntries: entries,
			BillableHours:   hours,
			Amount:          money.Quantize(amount),
		})
	}
	return blocks
}

func billAmountRes(body string) []string {
	matches := billAmountRe.FindAllStringSubmatch(body, -1)
	amounts := make([]string, 0, len(matches))
	for _, m := range matches {
		amounts = append(amounts, m[1])
	}
	return amounts
}

// ParseSupportInvoice extracts per-block billable charges from a
// time-billing support invoice.
func ParseSupportInvoice(ctx context.Context, ext pdftext.Extractor, filename string, raw []byte) SupportInvoice {
	result := SupportInvoice{Filename: filename}

	text, warning := extractText(ctx, ext, filename, raw)
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
		return result
	}

	result.InvoiceNumber = firstSubmatch(text, managedNumberRe)
	result.InvoiceTotal = moneyFromText(text, supportTotalRes)

	warnings := canonical.NewWarningSet()
	if result.InvoiceTotal == nil {
		warnings.Add(fmt.Sprintf("%s: could not extract support invoice total.", filename))
	}
	result.Blocks = scanSupportBlocks(text, filename, warnings)
	if len(result.Blocks) == 0 {
		warnings.Add(fmt.Sprintf("%s: no billable blocks could be extracted from invoice.", filename))
	}
	result.Warnings = warnings.Warnings()
	return result
}
