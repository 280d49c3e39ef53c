package service

import (
	"context"
	"fmt"

	"apalloc_backend/internal/analysis/transport"
	"apalloc_backend/internal/exports"
	"apalloc_backend/internal/invoice"
	"apalloc_backend/internal/tabular"
)

// analyzeDirect handles the two pass-through vendors: exports already
// carry charge rows, so there is no directory, no gate and no
// corrections. The device vendor additionally reconciles against its
// invoice totals when one is uploaded.
func (s *Service) analyzeDirect(ctx context.Context, vendor, sessionID string, req AnalyzeRequest) (transport.AnalyzeResponse, error) {
	deviceOpts := exports.DefaultDeviceOptions()

	parse := exports.ParseGeneric
	if vendor == transport.VendorDevice {
		parse = func(t tabular.Table) exports.RowsResult {
			return exports.ParseDevice(t, deviceOpts)
		}
	}

	results, warnings := parseUploads(ctx, req.CSVFiles, parse)
	rows, files, parseWarnings := collectRowResults(results)
	warnings = append(warnings, parseWarnings...)

	resp := transport.AnalyzeResponse{
		VendorType: vendor,
		SessionID:  sessionID,
		Files:      files,
	}

	var invoiceMeta *transport.InvoiceMeta
	homeOffice := s.engine.Rules().HomeOffice

	switch {
	case req.InvoiceFile != nil && vendor == transport.VendorDevice:
		parsed := invoice.ParseDeviceInvoice(ctx, s.extractor, req.InvoiceFile.Filename, req.InvoiceFile.Data)
		warnings = append(warnings, parsed.Warnings...)
		invoiceMeta = &transport.InvoiceMeta{
			Filename:          req.InvoiceFile.Filename,
			SizeBytes:         len(req.InvoiceFile.Data),
			InvoiceNumber:     parsed.InvoiceNumber,
			InvoiceTotal:      parsed.InvoiceTotal,
			BilledDeviceCount: parsed.BilledDeviceCount,
		}

		if parsed.BilledDeviceCount != nil && *parsed.BilledDeviceCount != len(rows) {
			warnings = append(warnings,
				fmt.Sprintf("Invoice says %d devices, but CSV has %d rows.", *parsed.BilledDeviceCount, len(rows)))
		}

		resp.Summary, resp.Totals, resp.Reconciliation, resp.BreakdownCSV =
			buildReport(rows, parsed.InvoiceTotal, deviceOpts.License, homeOffice)

	case req.InvoiceFile != nil:
		invoiceMeta = &transport.InvoiceMeta{
			Filename:  req.InvoiceFile.Filename,
			SizeBytes: len(req.InvoiceFile.Data),
			Note:      "Invoice uploaded as reference. Generic invoice parsing is not enabled yet.",
		}
		resp.Summary, resp.Totals, resp.Reconciliation, resp.BreakdownCSV =
			buildReport(rows, nil, "", homeOffice)

	default:
		if vendor == transport.VendorDevice {
			warnings = append(warnings, "No invoice uploaded. Home Office add-on adjustment was not applied.")
		}
		resp.Summary, resp.Totals, resp.Reconciliation, resp.BreakdownCSV =
			buildReport(rows, nil, "", homeOffice)
	}

	resp.Invoice = invoiceMeta
	resp.Warnings = warnings
	return resp, nil
}
