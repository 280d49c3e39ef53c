package service

import (
	"context"

	"apalloc_backend/internal/analysis/session"
	"apalloc_backend/internal/analysis/transport"
	"apalloc_backend/internal/invoice"
	"apalloc_backend/platform/apperr"
)

// analyzeSupport allocates the billable blocks of a time-billing
// invoice. Low-confidence branch inference never gates the report;
// it is flagged for review and finalized anyway.
func (s *Service) analyzeSupport(ctx context.Context, sessionID string, req AnalyzeRequest, corrections session.Corrections) (transport.AnalyzeResponse, error) {
	if req.InvoiceFile == nil || req.InvoiceFile.Filename == "" {
		return transport.AnalyzeResponse{}, apperr.BadRequest(msgInvoiceRequired)
	}

	rules := s.engine.Rules()
	var warnings []string

	parsed := invoice.ParseSupportInvoice(ctx, s.extractor, req.InvoiceFile.Filename, req.InvoiceFile.Data)
	warnings = append(warnings, parsed.Warnings...)
	if len(parsed.Blocks) == 0 {
		return transport.AnalyzeResponse{}, apperr.BadRequest("Could not parse billable support blocks (Bill=Y) from invoice.")
	}

	rows, supportRows, allocWarnings := s.engine.AllocateSupport(parsed.Blocks, corrections.SupportUpdates)
	warnings = append(warnings, allocWarnings...)

	needsReview := false
	for _, row := range supportRows {
		if row.NeedsReview {
			needsReview = true
			break
		}
	}

	resp := transport.AnalyzeResponse{
		VendorType:           transport.VendorSupport,
		SessionID:            sessionID,
		NeedsSupportReview:   needsReview,
		SupportRows:          supportRows,
		SupportBranchOptions: rules.KnownBranches,
		Invoice: &transport.InvoiceMeta{
			Filename:       req.InvoiceFile.Filename,
			SizeBytes:      len(req.InvoiceFile.Data),
			InvoiceNumber:  parsed.InvoiceNumber,
			InvoiceTotal:   parsed.InvoiceTotal,
			BillableBlocks: len(parsed.Blocks),
		},
	}
	if needsReview {
		resp.Message = "Some support blocks were defaulted to Home Office with low confidence. " +
			"Review the branch column, then analyze again."
	}

	resp.Summary, resp.Totals, resp.Reconciliation, resp.BreakdownCSV =
		buildReport(rows, parsed.InvoiceTotal, "Support Invoice Adjustment", rules.HomeOffice)
	resp.Warnings = warnings
	if !needsReview {
		s.clearSession(ctx, sessionID)
	}
	return resp, nil
}
