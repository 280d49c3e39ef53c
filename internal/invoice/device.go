package invoice

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"apalloc_backend/internal/pdftext"
)

var (
	deviceNumberRe = regexp.MustCompile(`(?i)Invoice:\s*#?\s*([A-Z0-9-]+)`)
	deviceCountRe  = regexp.MustCompile(`(?i)Total device count:\s*([0-9]+)`)

	deviceTotalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Total amount payable after discounts\s*\$?\s*([0-9][0-9,]*\.\d{2})`),
		regexp.MustCompile(`(?is)Amount Paid\s*\$?\s*([0-9][0-9,]*\.\d{2})`),
		regexp.MustCompile(`(?is)Sub Total\s*\$?\s*([0-9][0-9,]*\.\d{2})`),
	}
)

// ParseDeviceInvoice extracts invoice number, total, and billed device
// count from a device-vendor invoice. Only the total is structurally
// required; its absence is a warning, not a failure.
func ParseDeviceInvoice(ctx context.Context, ext pdftext.Extractor, filename string, raw []byte) DeviceInvoice {
	result := DeviceInvoice{Filename: filename}

	text, warning := extractText(ctx, ext, filename, raw)
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
		return result
	}

	result.InvoiceNumber = firstSubmatch(text, deviceNumberRe)
	result.InvoiceTotal = moneyFromText(text, deviceTotalRes)
	if result.InvoiceTotal == nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: could not extract invoice total.", filename))
	}

	if match := deviceCountRe.FindStringSubmatch(text); match != nil {
		if count, err := strconv.Atoi(match[1]); err == nil {
			result.BilledDeviceCount = &count
		}
	}
	return result
}
