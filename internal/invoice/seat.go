package invoice

import (
	"context"
	"fmt"
	"regexp"

	"apalloc_backend/internal/money"
	"apalloc_backend/internal/pdftext"

	"github.com/shopspring/decimal"
)

var (
	seatNumberBeforeRe = regexp.MustCompile(`(?i)([0-9]{6,})\s*Invoice Number`)
	seatNumberAfterRe  = regexp.MustCompile(`(?i)Invoice Number\s*([0-9]{6,})`)
	seatGrandTotalRe   = regexp.MustCompile(`(?i)GRAND TOTAL \(USD\)\s*([0-9][0-9,]*\.\d{2})`)
)

// seatLineProducts are the canonical products a seat invoice can
// price. Each gets a dedicated columnar pattern capturing quantity and
// extended line total:
//
//	<product> <qty> EA <list> <unit> <discount%> <net> <total>
var seatLineProducts = []string{
	"Illustrator",
	"Acrobat Pro",
	"Creative Cloud Pro",
	"InDesign",
	"Lightroom",
	"Photoshop",
	"Adobe Stock - 40 assets a month",
	"AI Assistant for Acrobat",
}

var seatLineRes = buildSeatLineRes()

func buildSeatLineRes() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(seatLineProducts))
	for _, product := range seatLineProducts {
		out[product] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(product) +
			`\s+([0-9]+)\s+EA\s+[0-9,]+\.\d{2}\s+[0-9,]+\.\d{2}\s+[0-9.]+%\s+[0-9,]+\.\d{2}\s+([0-9,]+\.\d{2})`)
	}
	return out
}

// ParseSeatInvoice extracts per-license unit costs from a seat-vendor
// invoice: for each known product, unit cost = line total / quantity,
// quantized to 2 fraction digits. Products not found are simply absent
// from the price map.
func ParseSeatInvoice(ctx context.Context, ext pdftext.Extractor, filename string, raw []byte) SeatInvoice {
	result := SeatInvoice{Filename: filename, PerLicenseCost: make(map[string]decimal.Decimal)}

	text, warning := extractText(ctx, ext, filename, raw)
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
		return result
	}

	result.InvoiceNumber = firstSubmatch(text, seatNumberBeforeRe, seatNumberAfterRe)

	if match := seatGrandTotalRe.FindStringSubmatch(text); match != nil {
		if total, ok := money.Parse(match[1]); ok {
			result.InvoiceTotal = &total
		}
	}
	if result.InvoiceTotal == nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: could not extract invoice grand total.", filename))
	}

	for product, pattern := range seatLineRes {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		qty, qtyOK := money.Parse(match[1])
		total, totalOK := money.Parse(match[2])
		if !qtyOK || !totalOK || qty.IsZero() {
			continue
		}
		result.PerLicenseCost[product] = money.Quantize(total.Div(qty))
	}

	if len(result.PerLicenseCost) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no line-item pricing could be extracted.", filename))
	}
	return result
}
