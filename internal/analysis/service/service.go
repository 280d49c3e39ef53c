// Package service orchestrates one analysis pass: parse the uploaded
// artifacts, replay accumulated corrections, run allocation, and either
// finalize the report or return the needs-more-input payload.
package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"apalloc_backend/internal/allocation"
	"apalloc_backend/internal/analysis/session"
	"apalloc_backend/internal/analysis/transport"
	"apalloc_backend/internal/breakdown"
	"apalloc_backend/internal/directory/repository"
	"apalloc_backend/internal/exports"
	"apalloc_backend/internal/money"
	"apalloc_backend/internal/pdftext"
	"apalloc_backend/internal/tabular"
	"apalloc_backend/platform/apperr"
	"apalloc_backend/platform/logger"
)

const (
	msgCSVRequired     = "At least one CSV export file is required."
	msgInvoiceRequired = "This vendor type requires an invoice PDF upload."
)

// Upload is one received multipart file, already read into memory.
type Upload struct {
	Filename string
	Data     []byte
}

// AnalyzeRequest is one analysis pass. Corrections carries only what
// was submitted with this request; the session store replays earlier
// submissions under the same session id.
type AnalyzeRequest struct {
	VendorType  string
	SessionID   string
	CSVFiles    []Upload
	InvoiceFile *Upload
	Corrections session.Corrections
}

// Directory is the slice of the directory service the pipelines use.
type Directory interface {
	UpsertRows(ctx context.Context, vendor string, rows []repository.UpsertUser) error
	TouchSeen(ctx context.Context, vendor string, rows []repository.SeenUser) error
	Snapshot(ctx context.Context, vendor string) (map[string]repository.User, error)
	FindMissing(ctx context.Context, vendor string, activeEmails []string) ([]repository.User, error)
}

// Service wires the parsers, the allocation engine, the directory and
// the session store into the per-vendor pipelines.
type Service struct {
	log       *logger.Logger
	engine    *allocation.Engine
	extractor pdftext.Extractor
	directory Directory
	sessions  *session.Store
}

func New(log *logger.Logger, engine *allocation.Engine, extractor pdftext.Extractor, directory Directory, sessions *session.Store) *Service {
	return &Service{
		log:       log,
		engine:    engine,
		extractor: extractor,
		directory: directory,
		sessions:  sessions,
	}
}

// Analyze dispatches to the vendor pipeline. A missing vendor type
// defaults to the generic pass-through pipeline.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (transport.AnalyzeResponse, error) {
	vendor := strings.ToLower(strings.TrimSpace(req.VendorType))
	if vendor == "" {
		vendor = transport.VendorGeneric
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	corrections, err := s.sessions.Merge(ctx, sessionID, req.Corrections)
	if err != nil {
		return transport.AnalyzeResponse{}, apperr.Wrap(apperr.KindInternal, "could not load session corrections", err).WithOp("analysis.Analyze")
	}

	var resp transport.AnalyzeResponse
	switch vendor {
	case transport.VendorGeneric, transport.VendorDevice:
		if len(req.CSVFiles) == 0 {
			return transport.AnalyzeResponse{}, apperr.BadRequest(msgCSVRequired)
		}
		resp, err = s.analyzeDirect(ctx, vendor, sessionID, req)
	case transport.VendorSeat:
		if len(req.CSVFiles) == 0 {
			return transport.AnalyzeResponse{}, apperr.BadRequest(msgCSVRequired)
		}
		resp, err = s.analyzeSeat(ctx, sessionID, req, corrections)
	case transport.VendorManaged:
		if len(req.CSVFiles) == 0 {
			return transport.AnalyzeResponse{}, apperr.BadRequest(msgCSVRequired)
		}
		resp, err = s.analyzeManaged(ctx, sessionID, req, corrections)
	case transport.VendorSupport:
		resp, err = s.analyzeSupport(ctx, sessionID, req, corrections)
	default:
		return transport.AnalyzeResponse{}, apperr.BadRequest(
			"Unsupported vendor_type. Use 'generic', 'mdm', 'adobe', 'msp', or 'msp_support'.")
	}
	if err != nil {
		return transport.AnalyzeResponse{}, err
	}

	finalized := !resp.NeedsUserEnrichment && !resp.NeedsBranchAssignment
	s.log.AnalysisPass(vendor, sessionID, finalized, len(resp.Warnings))

	return resp, nil
}

// parseUploads decodes every CSV upload concurrently, preserving the
// upload order. Empty files and unreadable headers degrade to a
// warning slot; only named files with content reach the parser.
func parseUploads[T any](ctx context.Context, uploads []Upload, parse func(tabular.Table) T) ([]T, []string) {
	parsed := make([]*T, len(uploads))
	slotWarnings := make([]string, len(uploads))

	g, _ := errgroup.WithContext(ctx)
	for i, upload := range uploads {
		if upload.Filename == "" {
			continue
		}
		i, upload := i, upload
		g.Go(func() error {
			if len(upload.Data) == 0 {
				slotWarnings[i] = fmt.Sprintf("%s: empty file skipped.", upload.Filename)
				return nil
			}
			table, err := tabular.ReadCSV(upload.Filename, bytes.NewReader(upload.Data))
			if err != nil {
				slotWarnings[i] = fmt.Sprintf("%s: could not read a header row; file skipped.", upload.Filename)
				return nil
			}
			result := parse(table)
			parsed[i] = &result
			return nil
		})
	}
	// Workers never fail; defects become warnings.
	_ = g.Wait()

	results := make([]T, 0, len(uploads))
	var warnings []string
	for i := range uploads {
		if slotWarnings[i] != "" {
			warnings = append(warnings, slotWarnings[i])
		}
		if parsed[i] != nil {
			results = append(results, *parsed[i])
		}
	}
	return results, warnings
}

func collectRowResults(results []exports.RowsResult) ([]breakdown.Row, []transport.FileSummary, []string) {
	var rows []breakdown.Row
	var files []transport.FileSummary
	var warnings []string
	for _, r := range results {
		rows = append(rows, r.Rows...)
		files = append(files, transport.FileSummary{
			Filename:     r.Filename,
			RowsIngested: len(r.Rows),
			RowsSkipped:  r.RowsSkipped,
		})
		warnings = append(warnings, r.Warnings...)
	}
	return rows, files, warnings
}

func collectUserResults(results []exports.UsersResult) ([]exports.User, []transport.FileSummary, []string) {
	var users []exports.User
	var files []transport.FileSummary
	var warnings []string
	for _, r := range results {
		users = append(users, r.Users...)
		files = append(files, transport.FileSummary{
			Filename:     r.Filename,
			RowsIngested: len(r.Users),
			RowsSkipped:  r.RowsSkipped,
		})
		warnings = append(warnings, r.Warnings...)
	}
	return users, files, warnings
}

// applyUserUpdates upserts branch-bearing corrections into the vendor
// directory. Branchless entries stay pending for the next gate check.
func (s *Service) applyUserUpdates(ctx context.Context, vendor string, updates []transport.UserUpdate) error {
	rows := make([]repository.UpsertUser, 0, len(updates))
	for _, u := range updates {
		if strings.TrimSpace(u.Branch) == "" {
			continue
		}
		rows = append(rows, repository.UpsertUser{
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Branch:    u.Branch,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return s.directory.UpsertRows(ctx, vendor, rows)
}

func (s *Service) snapshotProfiles(ctx context.Context, vendor string) (map[string]allocation.Profile, int, error) {
	snapshot, err := s.directory.Snapshot(ctx, vendor)
	if err != nil {
		return nil, 0, err
	}
	profiles := make(map[string]allocation.Profile, len(snapshot))
	for email, u := range snapshot {
		profiles[email] = allocation.Profile{
			Email:     email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Branch:    u.Branch,
			Active:    u.IsActive,
		}
	}
	return profiles, len(snapshot), nil
}

func (s *Service) missingUsers(ctx context.Context, vendor string, exportUsers []exports.User) ([]transport.MissingUser, error) {
	emails := make([]string, 0, len(exportUsers))
	seen := make(map[string]struct{}, len(exportUsers))
	for _, u := range exportUsers {
		email := money.NormalizeEmail(u.Email)
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}

	missing, err := s.directory.FindMissing(ctx, vendor, emails)
	if err != nil {
		return nil, err
	}
	result := make([]transport.MissingUser, 0, len(missing))
	for _, u := range missing {
		var lastSeen *string
		if u.LastSeenAt != nil {
			v := u.LastSeenAt.UTC().Format(time.RFC3339)
			lastSeen = &v
		}
		result = append(result, transport.MissingUser{
			Email:      u.Email,
			FirstName:  u.FirstName,
			LastName:   u.LastName,
			Branch:     u.Branch,
			LastSeenAt: lastSeen,
		})
	}
	return result, nil
}

func (s *Service) touchSeen(ctx context.Context, vendor string, exportUsers []exports.User) error {
	rows := make([]repository.SeenUser, 0, len(exportUsers))
	for _, u := range exportUsers {
		rows = append(rows, repository.SeenUser{
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		})
	}
	return s.directory.TouchSeen(ctx, vendor, rows)
}

// buildReport reduces allocation rows to the final summary, absorbing
// any invoice-total drift into one home-office adjustment line.
func buildReport(rows []breakdown.Row, invoiceTotal *decimal.Decimal, adjustmentLicense, homeOffice string) ([]breakdown.SummaryRow, transport.Totals, *transport.Reconciliation, string) {
	summary := breakdown.Build(rows)

	var reconciliation *transport.Reconciliation
	if invoiceTotal != nil {
		baseTotal := breakdown.GrandTotal(summary)
		adjustment := money.Quantize(invoiceTotal.Sub(baseTotal))
		summary = breakdown.ApplyHomeOfficeAdjustment(summary, adjustment, adjustmentLicense, homeOffice)
		reconciliation = &transport.Reconciliation{
			BaseTotal:            baseTotal,
			InvoiceTotal:         *invoiceTotal,
			HomeOfficeAdjustment: adjustment,
		}
	}

	totals := transport.Totals{
		LineItems:  len(summary),
		GrandTotal: breakdown.GrandTotal(summary),
	}
	return summary, totals, reconciliation, breakdown.WriteCSV(summary)
}

// clearSession drops a finalized session; failure only costs redis
// memory until the TTL, so it is logged and swallowed.
func (s *Service) clearSession(ctx context.Context, sessionID string) {
	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		s.log.WithContext(ctx).Warn("could not clear analysis session", "session_id", sessionID, "error", err)
	}
}

func newUserRows(userRows []allocation.UserRow, unresolved []string) []allocation.UserRow {
	unresolvedSet := make(map[string]struct{}, len(unresolved))
	for _, email := range unresolved {
		unresolvedSet[email] = struct{}{}
	}
	var rows []allocation.UserRow
	for _, row := range userRows {
		if _, ok := unresolvedSet[row.Email]; ok {
			rows = append(rows, row)
		}
	}
	return rows
}
