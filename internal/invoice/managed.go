package invoice

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"apalloc_backend/internal/canonical"
	"apalloc_backend/internal/money"
	"apalloc_backend/internal/pdftext"
)

var (
	managedNumberRe = regexp.MustCompile(`(?i)Date\s+Invoice\s*[0-9/]+\s+([0-9]{3,})`)

	managedTotalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Invoice Total:\s*\$?\s*([0-9][0-9,]*\.\d{2})`),
		regexp.MustCompile(`(?i)Balance Due:\s*\$?\s*([0-9][0-9,]*\.\d{2})`),
		regexp.MustCompile(`(?i)Invoice Subtotal:\s*\$?\s*([0-9][0-9,]*\.\d{2})`),
	}

	// A completed line item ends with three decimal-looking tokens:
	// quantity, unit price, amount. Anything before them on the same
	// physical line is an inline description fragment.
	managedLineRe = regexp.MustCompile(`^(.*?)([0-9][0-9,]*\.[0-9]{2})\s+\$?([0-9][0-9,]*\.[0-9]{2})\s+\$?([0-9][0-9,]*\.[0-9]{2})$`)
)

// managedSectionMarkers reset the scanner when contained in a line:
// category headings of the invoice's product table.
var managedSectionMarkers = []string{
	"products & other charges quantity price amount",
	"netwatch360 limited:",
	"dataprotect 360 backup products:",
	"microsoft 365 products:",
	"dropbox products:",
	"cloud server:",
	"password manager:",
}

// managedTrailerPrefixes reset the scanner when a line starts with
// them: totals, tax, and payment footer lines.
var managedTrailerPrefixes = []string{
	"total products & other",
	"invoice subtotal:",
	"sales tax:",
	"invoice total:",
	"payments:",
	"credits:",
	"balance due:",
	"please pay invoices at",
}

// scanState is the buffered line-item scanner's explicit state.
type scanState int

const (
	// scanIdle: no pending description fragments.
	scanIdle scanState = iota
	// scanBuffering: one or more wrapped description lines are pending
	// and will prefix the next completed line item.
	scanBuffering
)

// lineScanner accumulates wrapped description lines until a line with
// the trailing qty/price/amount triple closes the item out.
type lineScanner struct {
	state  scanState
	buffer []string
}

func (s *lineScanner) reset() {
	s.state = scanIdle
	s.buffer = s.buffer[:0]
}

func (s *lineScanner) push(line string) {
	s.state = scanBuffering
	s.buffer = append(s.buffer, line)
}

// close drains the buffer into a full description, appending the
// inline fragment from the closing line when present.
func (s *lineScanner) close(inline string) string {
	parts := s.buffer
	if inline != "" {
		parts = append(parts, inline)
	}
	description := money.NormalizeText(strings.Join(parts, " "))
	s.reset()
	return description
}

func isManagedSectionHeader(line string) bool {
	lowered := strings.ToLower(line)
	for _, marker := range managedSectionMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func isManagedTrailer(line string) bool {
	lowered := strings.ToLower(line)
	for _, prefix := range managedTrailerPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

// scanManagedLines runs the buffered scanner over the invoice text and
// returns the extracted line items, canonicalized through the msp
// vocabulary. Unmatched descriptions keep their normalized text as the
// canonical name so the charge stays visible to the allocation
// fallback rule.
func scanManagedLines(text string, vocab *canonical.Vocabulary, filename string, warnings *canonical.WarningSet) []Line {
	var lines []Line
	var scanner lineScanner

	for _, rawLine := range strings.Split(text, "\n") {
		line := money.NormalizeText(rawLine)
		if line == "" {
			continue
		}
		if isManagedSectionHeader(line) || isManagedTrailer(line) {
			scanner.reset()
			continue
		}

		match := managedLineRe.FindStringSubmatch(line)
		if match == nil {
			scanner.push(line)
			continue
		}

		description := scanner.close(money.NormalizeText(match[1]))
		if description == "" {
			continue
		}

		qty, qtyOK := money.Parse(match[2])
		price, priceOK := money.Parse(match[3])
		amount, amountOK := money.Parse(match[4])
		if !qtyOK || !priceOK || !amountOK {
			warnings.Add(fmt.Sprintf("%s: could not parse numeric amounts for line '%s'.", filename, description))
			continue
		}

		canonicalName, ok := vocab.Canonicalize("msp", description)
		if !ok {
			canonicalName = money.NormalizeText(description)
		}
		lines = append(lines, Line{
			Description:   description,
			CanonicalName: canonicalName,
			Quantity:      money.Quantize(qty),
			UnitPrice:     money.Quantize(price),
			Amount:        money.Quantize(amount),
		})
	}
	return lines
}

// ParseManagedInvoice extracts the line items of a managed-services
// invoice via the buffered scanner, plus invoice number and total.
func ParseManagedInvoice(ctx context.Context, ext pdftext.Extractor, vocab *canonical.Vocabulary, filename string, raw []byte) ManagedInvoice {
	result := ManagedInvoice{Filename: filename}

	text, warning := extractText(ctx, ext, filename, raw)
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
		return result
	}

	result.InvoiceNumber = firstSubmatch(text, managedNumberRe)
	result.InvoiceTotal = moneyFromText(text, managedTotalRes)
	warnings := canonical.NewWarningSet()
	if result.InvoiceTotal == nil {
		warnings.Add(fmt.Sprintf("%s: could not extract invoice total.", filename))
	}

	result.Lines = scanManagedLines(text, vocab, filename, warnings)
	if len(result.Lines) == 0 {
		warnings.Add(fmt.Sprintf("%s: no line items could be extracted from invoice.", filename))
	}
	result.Warnings = warnings.Warnings()
	return result
}
