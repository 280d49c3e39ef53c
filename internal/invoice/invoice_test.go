package invoice

import (
	"context"
	"strings"
	"testing"

	"apalloc_backend/internal/canonical"
	"apalloc_backend/internal/pdftext"
)

// staticText feeds a fixed text stream to a parser, standing in for
// the PDF backend.
type staticText string

func (s staticText) Extract(context.Context, []byte) (string, error) {
	return string(s), nil
}

func TestParseDeviceInvoice(t *testing.T) {
	text := staticText(`
Invoice: # INV-10023
Billing period: 08/01/2026 - 08/31/2026
Total device count: 57
Sub Total $120.00
Discounts $6.00
Total amount payable after discounts $114.00
`)
	got := ParseDeviceInvoice(context.Background(), text, "device.pdf", []byte("x"))

	if got.InvoiceNumber != "INV-10023" {
		t.Fatalf("invoice number = %q, want INV-10023", got.InvoiceNumber)
	}
	if got.InvoiceTotal == nil || got.InvoiceTotal.StringFixed(2) != "114.00" {
		t.Fatalf("invoice total = %v, want 114.00", got.InvoiceTotal)
	}
	if got.BilledDeviceCount == nil || *got.BilledDeviceCount != 57 {
		t.Fatalf("billed device count = %v, want 57", got.BilledDeviceCount)
	}
	if len(got.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", got.Warnings)
	}
}

func TestParseDeviceInvoiceMissingTotal(t *testing.T) {
	got := ParseDeviceInvoice(context.Background(), staticText("Invoice: #A1\n"), "device.pdf", []byte("x"))

	if got.InvoiceTotal != nil {
		t.Fatalf("invoice total = %v, want nil", got.InvoiceTotal)
	}
	if len(got.Warnings) != 1 || !strings.Contains(got.Warnings[0], "could not extract invoice total") {
		t.Fatalf("warnings = %v, want missing-total warning", got.Warnings)
	}
}

func TestParseDeviceInvoiceNoBackend(t *testing.T) {
	got := ParseDeviceInvoice(context.Background(), pdftext.Unavailable{}, "device.pdf", []byte("x"))

	if len(got.Warnings) != 1 || got.Warnings[0] != backendUnavailableWarning {
		t.Fatalf("warnings = %v, want unavailable-backend warning", got.Warnings)
	}
	if got.InvoiceTotal != nil || got.InvoiceNumber != "" {
		t.Fatalf("expected empty result without a backend, got %+v", got)
	}

	got = ParseDeviceInvoice(context.Background(), nil, "device.pdf", []byte("x"))
	if len(got.Warnings) != 1 || got.Warnings[0] != backendUnavailableWarning {
		t.Fatalf("nil extractor warnings = %v, want unavailable-backend warning", got.Warnings)
	}
}

func TestParseSeatInvoice(t *testing.T) {
	text := staticText(`
845200113 Invoice Number
Acrobat Pro 4 EA 30.00 28.00 10.0% 25.20 100.80
Photoshop 2 EA 35.00 35.00 0.0% 35.00 70.00
GRAND TOTAL (USD) 170.80
`)
	got := ParseSeatInvoice(context.Background(), text, "seat.pdf", []byte("x"))

	if got.InvoiceNumber != "845200113" {
		t.Fatalf("invoice number = %q, want 845200113", got.InvoiceNumber)
	}
	if got.InvoiceTotal == nil || got.InvoiceTotal.StringFixed(2) != "170.80" {
		t.Fatalf("grand total = %v, want 170.80", got.InvoiceTotal)
	}
	if unit, ok := got.PerLicenseCost["Acrobat Pro"]; !ok || unit.StringFixed(2) != "25.20" {
		t.Fatalf("Acrobat Pro unit cost = %v, want 25.20", unit)
	}
	if unit, ok := got.PerLicenseCost["Photoshop"]; !ok || unit.StringFixed(2) != "35.00" {
		t.Fatalf("Photoshop unit cost = %v, want 35.00", unit)
	}
	if _, ok := got.PerLicenseCost["Illustrator"]; ok {
		t.Fatalf("Illustrator should be absent from price map")
	}
	if len(got.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", got.Warnings)
	}
}

func TestParseSeatInvoiceNoPricing(t *testing.T) {
	got := ParseSeatInvoice(context.Background(), staticText("GRAND TOTAL (USD) 10.00\n"), "seat.pdf", []byte("x"))

	if len(got.PerLicenseCost) != 0 {
		t.Fatalf("price map = %v, want empty", got.PerLicenseCost)
	}
	if len(got.Warnings) != 1 || !strings.Contains(got.Warnings[0], "no line-item pricing") {
		t.Fatalf("warnings = %v, want no-pricing warning", got.Warnings)
	}
}

func TestParseManagedInvoice(t *testing.T) {
	vocab := canonical.MustLoad()
	text := staticText(`
Date Invoice
08/01/2026 204431
Products & Other Charges Quantity Price Amount
NetWatch360 Limited:
Managed User/Workstation
Support Agreement 30.00 $30.00 $900.00
Microsoft 365 Products:
Microsoft 365 Business
Premium 12.00 $22.00 $264.00
Total Products & Other Charges $1,164.00
Invoice Subtotal: $1,164.00
Invoice Total: $1,164.00
`)
	got := ParseManagedInvoice(context.Background(), text, vocab, "managed.pdf", []byte("x"))

	if got.InvoiceNumber != "204431" {
		t.Fatalf("invoice number = %q, want 204431", got.InvoiceNumber)
	}
	if got.InvoiceTotal == nil || got.InvoiceTotal.StringFixed(2) != "1164.00" {
		t.Fatalf("invoice total = %v, want 1164.00", got.InvoiceTotal)
	}
	if len(got.Lines) != 2 {
		t.Fatalf("got %d lines, want 2: %+v", len(got.Lines), got.Lines)
	}

	first := got.Lines[0]
	if first.Description != "Managed User/Workstation Support Agreement" {
		t.Fatalf("line 1 description = %q", first.Description)
	}
	if first.CanonicalName != "Workstation" {
		t.Fatalf("line 1 canonical = %q, want Workstation", first.CanonicalName)
	}
	if first.Quantity.StringFixed(2) != "30.00" || first.UnitPrice.StringFixed(2) != "30.00" || first.Amount.StringFixed(2) != "900.00" {
		t.Fatalf("line 1 numbers = %v %v %v", first.Quantity, first.UnitPrice, first.Amount)
	}

	second := got.Lines[1]
	if second.CanonicalName != "Microsoft Business Premium Annual" {
		t.Fatalf("line 2 canonical = %q, want Microsoft Business Premium Annual", second.CanonicalName)
	}
	if second.Amount.StringFixed(2) != "264.00" {
		t.Fatalf("line 2 amount = %v, want 264.00", second.Amount)
	}
	if len(got.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", got.Warnings)
	}
}

func TestParseManagedInvoiceUnknownLineKeepsDescription(t *testing.T) {
	vocab := canonical.MustLoad()
	text := staticText(`
Products & Other Charges Quantity Price Amount
One-Time Project Surcharge 1.00 $50.00 $50.00
Invoice Total: $50.00
`)
	got := ParseManagedInvoice(context.Background(), text, vocab, "managed.pdf", []byte("x"))

	if len(got.Lines) != 1 {
		t.Fatalf("got %d lines, want 1: %+v", len(got.Lines), got.Lines)
	}
	if got.Lines[0].CanonicalName != "One-Time Project Surcharge" {
		t.Fatalf("canonical = %q, want raw description fallback", got.Lines[0].CanonicalName)
	}
}

func TestParseManagedInvoiceSectionResetsBuffer(t *testing.T) {
	vocab := canonical.MustLoad()
	// The wrapped fragment before the section marker must not leak
	// into the first line of the following section.
	text := staticText(`
Products & Other Charges Quantity Price Amount
Orphan fragment with no closing line
Dropbox Products:
Dropbox Business Standard 5.00 $18.00 $90.00
Invoice Total: $90.00
`)
	got := ParseManagedInvoice(context.Background(), text, vocab, "managed.pdf", []byte("x"))

	if len(got.Lines) != 1 {
		t.Fatalf("got %d lines, want 1: %+v", len(got.Lines), got.Lines)
	}
	if got.Lines[0].Description != "Dropbox Business Standard" {
		t.Fatalf("description = %q, buffer leaked across section marker", got.Lines[0].Description)
	}
}

func TestParseSupportInvoice(t *testing.T) {
	text := staticText(`
Date Invoice
07/03/2025 5521
Charge To: Acme Holdings / Network outage troubleshooting Location: Main Office
Date Staff Notes Bill Hours Rate Ext Amt
01/05/2026 TS Replaced failed switch Y 2.00 150.00 $300.00
01/06/2026 TS Courtesy follow-up N 1.00 150.00 $150.00
Charge To: Acme Holdings / Printer deployment Location: Sugar Hill
Date Staff Notes Bill Hours Rate Ext Amt
01/07/2026 JD Installed print server Y 1.50 150.00 $225.00
Total Hours: 3.50
Invoice Total: $525.00
`)
	got := ParseSupportInvoice(context.Background(), text, "support.pdf", []byte("x"))

	if got.InvoiceNumber != "5521" {
		t.Fatalf("invoice number = %q, want 5521", got.InvoiceNumber)
	}
	if len(got.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2: %+v", len(got.Blocks), got.Blocks)
	}

	first := got.Blocks[0]
	if first.ChargeSummary != "Network outage troubleshooting" {
		t.Fatalf("block 1 summary = %q", first.ChargeSummary)
	}
	if first.BillableEntries != 1 {
		t.Fatalf("block 1 billable entries = %d, want 1", first.BillableEntries)
	}
	if first.BillableHours.StringFixed(2) != "2.00" {
		t.Fatalf("block 1 hours = %v, want 2.00", first.BillableHours)
	}
	if first.Amount.StringFixed(2) != "300.00" {
		t.Fatalf("block 1 amount = %v, want 300.00", first.Amount)
	}
	if !strings.HasPrefix(first.RowKey, "1:") || len(first.RowKey) != len("1:")+10 {
		t.Fatalf("block 1 row key = %q", first.RowKey)
	}

	second := got.Blocks[1]
	if second.ChargeSummary != "Printer deployment" {
		t.Fatalf("block 2 summary = %q", second.ChargeSummary)
	}
	if second.Amount.StringFixed(2) != "225.00" {
		t.Fatalf("block 2 amount = %v, want 225.00", second.Amount)
	}
	if !strings.HasPrefix(second.RowKey, "2:") {
		t.Fatalf("block 2 row key = %q", second.RowKey)
	}
}

func TestParseSupportInvoiceRowKeyStable(t *testing.T) {
	text := staticText(`
Charge To: Acme Holdings / Managed backup review Location: St. Pete
Date Staff Notes Bill Hours Rate Ext Amt
02/01/2026 TS Audit Y 1.00 150.00 $150.00
`)
	a := ParseSupportInvoice(context.Background(), text, "support.pdf", []byte("x"))
	b := ParseSupportInvoice(context.Background(), text, "support.pdf", []byte("x"))

	if len(a.Blocks) != 1 || len(b.Blocks) != 1 {
		t.Fatalf("blocks = %d / %d, want 1 each", len(a.Blocks), len(b.Blocks))
	}
	if a.Blocks[0].RowKey != b.Blocks[0].RowKey {
		t.Fatalf("row keys differ across parses: %q vs %q", a.Blocks[0].RowKey, b.Blocks[0].RowKey)
	}
}

func TestParseSupportInvoiceDropsAmountlessBlock(t *testing.T) {
	text := staticText(`
Charge To: Acme Holdings / Quoted work, not yet billed Location: Main Office
Date Staff Notes Bill Hours Rate Ext Amt
03/01/2026 TS Scoping only Y 0.50 150.00
Charge To: Acme Holdings / Server patching Location: Main Office
Date Staff Notes Bill Hours Rate Ext Amt
03/02/2026 TS Patched host Y 1.00 150.00 $150.00
`)
	got := ParseSupportInvoice(context.Background(), text, "support.pdf", []byte("x"))

	if len(got.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1: %+v", len(got.Blocks), got.Blocks)
	}
	if got.Blocks[0].ChargeSummary != "Server patching" {
		t.Fatalf("kept block = %q, want Server patching", got.Blocks[0].ChargeSummary)
	}
	// Ordinals follow document position, not kept position.
	if !strings.HasPrefix(got.Blocks[0].RowKey, "2:") {
		t.Fatalf("row key = %q, want document ordinal 2", got.Blocks[0].RowKey)
	}
	found := false
	for _, w := range got.Warnings {
		if strings.Contains(w, "dropping billable block") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v, want dropped-block warning", got.Warnings)
	}
}

func TestParseSupportInvoiceSkipsNonBillableBlock(t *testing.T) {
	text := staticText(`
Charge To: Acme Holdings / Warranty rework Location: Main Office
Date Staff Notes Bill Hours Rate Ext Amt
04/01/2026 TS Redid earlier fix N 2.00 150.00 $300.00
Subtotal: $300.00
Charge To: Acme Holdings / Firewall upgrade Location: Main Office
Date Staff Notes Bill Hours Rate Ext Amt
04/02/2026 TS Swapped appliance Y 1.00 150.00 $150.00
Invoice Total: $150.00
`)
	got := ParseSupportInvoice(context.Background(), text, "support.pdf", []byte("x"))

	if len(got.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1: %+v", len(got.Blocks), got.Blocks)
	}
	if got.Blocks[0].ChargeSummary != "Firewall upgrade" {
		t.Fatalf("kept block = %q, want Firewall upgrade", got.Blocks[0].ChargeSummary)
	}
	// A subtotal on a no-charge block must not resurrect it, and its
	// silent skip produces no warning.
	for _, w := range got.Warnings {
		if strings.Contains(w, "dropping billable block") {
			t.Fatalf("warnings = %v, non-billable skip should be silent", got.Warnings)
		}
	}
}

func TestParseSupportInvoiceVendorNumberLayout(t *testing.T) {
	text := staticText(`
Date Invoice
07/03/2025 41372
Charge To: Acme Holdings / Switch replacement Location: Main Office
Date Staff Notes Bill Hours Rate Ext Amt
05/01/2026 TS Replaced switch Y 1.00 150.00 $150.00
Invoice Total: $150.00
`)
	got := ParseSupportInvoice(context.Background(), text, "support.pdf", []byte("x"))

	if got.InvoiceNumber != "41372" {
		t.Fatalf("invoice number = %q, want 41372", got.InvoiceNumber)
	}
}

func TestParseSupportInvoiceEmptySummaryFallsBack(t *testing.T) {
	text := staticText(`
Charge To:
Date Staff Notes Bill Hours Rate Ext Amt
06/01/2026 TS Emergency visit Y 1.00 150.00 $150.00
`)
	got := ParseSupportInvoice(context.Background(), text, "support.pdf", []byte("x"))

	if len(got.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1: %+v", len(got.Blocks), got.Blocks)
	}
	if got.Blocks[0].ChargeSummary != "Support Block 1" {
		t.Fatalf("summary = %q, want Support Block 1", got.Blocks[0].ChargeSummary)
	}
	if !strings.HasPrefix(got.Blocks[0].RowKey, "1:") {
		t.Fatalf("row key = %q", got.Blocks[0].RowKey)
	}
}

func TestParseSupportInvoiceMissingTotalWarns(t *testing.T) {
	text := staticText(`
Charge To: Acme Holdings / Backup audit Location: Main Office
Date Staff Notes Bill Hours Rate Ext Amt
07/01/2026 TS Verified restores Y 1.00 150.00 $150.00
Subtotal: $150.00
`)
	got := ParseSupportInvoice(context.Background(), text, "support.pdf", []byte("x"))

	// A block subtotal must never be mistaken for the invoice total.
	if got.InvoiceTotal != nil {
		t.Fatalf("invoice total = %v, want nil", got.InvoiceTotal)
	}
	found := false
	for _, w := range got.Warnings {
		if strings.Contains(w, "could not extract support invoice total") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v, want missing-total warning", got.Warnings)
	}
	if len(got.Blocks) != 1 || got.Blocks[0].Amount.StringFixed(2) != "150.00" {
		t.Fatalf("blocks = %+v, want one 150.00 block", got.Blocks)
	}
}
