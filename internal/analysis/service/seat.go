package service

import (
	"context"
	"sort"

	"apalloc_backend/internal/analysis/session"
	"apalloc_backend/internal/analysis/transport"
	"apalloc_backend/internal/exports"
	"apalloc_backend/internal/invoice"
	"apalloc_backend/platform/apperr"
)

// analyzeSeat runs the seat-vendor pipeline: per-license invoice
// pricing joined against export seats, gated on every user having a
// directory branch.
func (s *Service) analyzeSeat(ctx context.Context, sessionID string, req AnalyzeRequest, corrections session.Corrections) (transport.AnalyzeResponse, error) {
	if req.InvoiceFile == nil || req.InvoiceFile.Filename == "" {
		return transport.AnalyzeResponse{}, apperr.BadRequest(msgInvoiceRequired)
	}

	var warnings []string

	parsed := invoice.ParseSeatInvoice(ctx, s.extractor, req.InvoiceFile.Filename, req.InvoiceFile.Data)
	warnings = append(warnings, parsed.Warnings...)
	if len(parsed.PerLicenseCost) == 0 {
		return transport.AnalyzeResponse{}, apperr.BadRequest("Could not parse invoice line-item pricing.")
	}

	results, uploadWarnings := parseUploads(ctx, req.CSVFiles, exports.ParseSeatUsers)
	warnings = append(warnings, uploadWarnings...)
	exportUsers, files, parseWarnings := collectUserResults(results)
	warnings = append(warnings, parseWarnings...)

	if err := s.applyUserUpdates(ctx, transport.VendorSeat, corrections.UserUpdates); err != nil {
		return transport.AnalyzeResponse{}, err
	}
	profiles, directoryCount, err := s.snapshotProfiles(ctx, transport.VendorSeat)
	if err != nil {
		return transport.AnalyzeResponse{}, err
	}

	result := s.engine.AllocateSeats(exportUsers, profiles, parsed.PerLicenseCost)
	warnings = append(warnings, result.Warnings...)

	missing, err := s.missingUsers(ctx, transport.VendorSeat, exportUsers)
	if err != nil {
		return transport.AnalyzeResponse{}, err
	}

	licenses := make([]string, 0, len(parsed.PerLicenseCost))
	for name := range parsed.PerLicenseCost {
		licenses = append(licenses, name)
	}
	sort.Strings(licenses)

	resp := transport.AnalyzeResponse{
		VendorType:   transport.VendorSeat,
		SessionID:    sessionID,
		UserRows:     result.UserRows,
		MissingUsers: missing,
		Files:        files,
		Invoice: &transport.InvoiceMeta{
			Filename:       req.InvoiceFile.Filename,
			SizeBytes:      len(req.InvoiceFile.Data),
			InvoiceNumber:  parsed.InvoiceNumber,
			InvoiceTotal:   parsed.InvoiceTotal,
			ParsedLicenses: licenses,
			DirectoryUsers: directoryCount,
		},
	}

	if len(result.UnresolvedEmails) > 0 {
		resp.NeedsUserEnrichment = true
		resp.Message = "Some users are missing a branch. Enter branch values, then analyze again."
		resp.NewUsers = newUserRows(result.UserRows, result.UnresolvedEmails)
		resp.Warnings = warnings
		return resp, nil
	}

	if err := s.touchSeen(ctx, transport.VendorSeat, exportUsers); err != nil {
		return transport.AnalyzeResponse{}, err
	}

	resp.Summary, resp.Totals, resp.Reconciliation, resp.BreakdownCSV =
		buildReport(result.Rows, parsed.InvoiceTotal, "Adobe Invoice Adjustment", s.engine.Rules().HomeOffice)
	resp.Warnings = warnings
	s.clearSession(ctx, sessionID)
	return resp, nil
}
