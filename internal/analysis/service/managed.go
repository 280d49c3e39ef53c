package service

import (
	"context"
	"sort"
	"strings"

	"apalloc_backend/internal/allocation"
	"apalloc_backend/internal/analysis/session"
	"apalloc_backend/internal/analysis/transport"
	"apalloc_backend/internal/directory/repository"
	"apalloc_backend/internal/exports"
	"apalloc_backend/internal/invoice"
	"apalloc_backend/internal/money"
	"apalloc_backend/internal/tabular"
	"apalloc_backend/platform/apperr"
)

// analyzeManaged runs the full managed-vendor pipeline: buffered
// invoice line scan, per-seat export join, directory seeding from the
// export office column, policy-driven allocation, and a finalization
// gate on unresolved users and outstanding branch prompts.
func (s *Service) analyzeManaged(ctx context.Context, sessionID string, req AnalyzeRequest, corrections session.Corrections) (transport.AnalyzeResponse, error) {
	if req.InvoiceFile == nil || req.InvoiceFile.Filename == "" {
		return transport.AnalyzeResponse{}, apperr.BadRequest(msgInvoiceRequired)
	}

	rules := s.engine.Rules()
	var warnings []string

	parsed := invoice.ParseManagedInvoice(ctx, s.extractor, s.engine.Vocabulary(), req.InvoiceFile.Filename, req.InvoiceFile.Data)
	warnings = append(warnings, parsed.Warnings...)
	if len(parsed.Lines) == 0 {
		return transport.AnalyzeResponse{}, apperr.BadRequest("Could not parse invoice line items.")
	}

	results, uploadWarnings := parseUploads(ctx, req.CSVFiles, func(t tabular.Table) exports.UsersResult {
		return exports.ParseManagedUsers(t, rules.BranchAliases, "")
	})
	warnings = append(warnings, uploadWarnings...)
	exportUsers, files, parseWarnings := collectUserResults(results)
	warnings = append(warnings, parseWarnings...)

	if err := s.applyUserUpdates(ctx, transport.VendorManaged, corrections.UserUpdates); err != nil {
		return transport.AnalyzeResponse{}, err
	}
	if err := s.seedFromExports(ctx, exportUsers); err != nil {
		return transport.AnalyzeResponse{}, err
	}
	profiles, directoryCount, err := s.snapshotProfiles(ctx, transport.VendorManaged)
	if err != nil {
		return transport.AnalyzeResponse{}, err
	}

	result := s.engine.Allocate(allocation.Input{
		Users:             exportUsers,
		Directory:         profiles,
		Lines:             parsed.Lines,
		PromptSubmissions: corrections.PromptSubmissions,
	})
	warnings = append(warnings, result.Warnings...)

	missing, err := s.missingUsers(ctx, transport.VendorManaged, exportUsers)
	if err != nil {
		return transport.AnalyzeResponse{}, err
	}

	resp := transport.AnalyzeResponse{
		VendorType:    transport.VendorManaged,
		SessionID:     sessionID,
		UserRows:      result.UserRows,
		NonUserRows:   result.NonUserRows,
		BranchPrompts: result.BranchPrompts,
		MissingUsers:  missing,
		Files:         files,
		Invoice: &transport.InvoiceMeta{
			Filename:       req.InvoiceFile.Filename,
			SizeBytes:      len(req.InvoiceFile.Data),
			InvoiceNumber:  parsed.InvoiceNumber,
			InvoiceTotal:   parsed.InvoiceTotal,
			ParsedLicenses: canonicalNames(parsed.Lines),
			DirectoryUsers: directoryCount,
		},
	}

	needsEnrichment := len(result.UnresolvedEmails) > 0
	needsBranches := len(result.BranchPrompts) > 0
	if needsEnrichment || needsBranches {
		var parts []string
		if needsEnrichment {
			parts = append(parts, "Some users are missing a branch.")
		}
		if needsBranches {
			parts = append(parts, "Some branch-tethered charges need branch assignments.")
		}
		parts = append(parts, "Enter missing values, then analyze again.")

		resp.NeedsUserEnrichment = needsEnrichment
		resp.NeedsBranchAssignment = needsBranches
		resp.Message = strings.Join(parts, " ")
		resp.NewUsers = newUserRows(result.UserRows, result.UnresolvedEmails)
		resp.Warnings = warnings
		return resp, nil
	}

	if err := s.touchSeen(ctx, transport.VendorManaged, exportUsers); err != nil {
		return transport.AnalyzeResponse{}, err
	}

	resp.Summary, resp.Totals, resp.Reconciliation, resp.BreakdownCSV =
		buildReport(result.Rows, parsed.InvoiceTotal, rules.AdjustmentLicense, rules.HomeOffice)
	resp.Warnings = warnings
	s.clearSession(ctx, sessionID)
	return resp, nil
}

// seedFromExports gives first-time managed users their export office
// branch as the directory starting point. Existing directory entries
// are never overwritten by the export.
func (s *Service) seedFromExports(ctx context.Context, exportUsers []exports.User) error {
	snapshot, err := s.directory.Snapshot(ctx, transport.VendorManaged)
	if err != nil {
		return err
	}

	var seeds []repository.UpsertUser
	for _, u := range exportUsers {
		email := money.NormalizeEmail(u.Email)
		if email == "" {
			continue
		}
		if _, ok := snapshot[email]; ok {
			continue
		}
		seeds = append(seeds, repository.UpsertUser{
			Email:     email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Branch:    u.DefaultBranch,
		})
	}
	if len(seeds) == 0 {
		return nil
	}
	return s.directory.UpsertRows(ctx, transport.VendorManaged, seeds)
}

func canonicalNames(lines []invoice.Line) []string {
	seen := make(map[string]struct{}, len(lines))
	var names []string
	for _, line := range lines {
		if _, ok := seen[line.CanonicalName]; ok {
			continue
		}
		seen[line.CanonicalName] = struct{}{}
		names = append(names, line.CanonicalName)
	}
	sort.Strings(names)
	return names
}
