// Package transport defines request and response shapes for the
// analysis module.
package transport

import (
	"apalloc_backend/internal/allocation"
	"apalloc_backend/internal/breakdown"

	"github.com/shopspring/decimal"
)

// Vendor pipeline identifiers accepted by the analyze endpoint.
const (
	VendorGeneric = "generic"
	VendorDevice  = "mdm"
	VendorSeat    = "adobe"
	VendorManaged = "msp"
	VendorSupport = "msp_support"
)

// UserUpdate is one submitted directory correction: branch (and
// optionally names) for a user the previous pass reported unresolved.
type UserUpdate struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Branch    string `json:"branch"`
}

// FileSummary reports per-file ingest counts.
type FileSummary struct {
	Filename     string `json:"filename"`
	RowsIngested int    `json:"rows_ingested"`
	RowsSkipped  int    `json:"rows_skipped"`
}

// InvoiceMeta echoes what was extracted from the uploaded invoice.
type InvoiceMeta struct {
	Filename          string           `json:"filename"`
	SizeBytes         int              `json:"size_bytes"`
	InvoiceNumber     string           `json:"invoice_number,omitempty"`
	InvoiceTotal      *decimal.Decimal `json:"invoice_total,omitempty"`
	BilledDeviceCount *int             `json:"billed_device_count,omitempty"`
	ParsedLicenses    []string         `json:"parsed_licenses,omitempty"`
	DirectoryUsers    int              `json:"directory_users,omitempty"`
	BillableBlocks    int              `json:"billable_blocks,omitempty"`
	Note              string           `json:"note,omitempty"`
}

// Totals summarizes the final breakdown.
type Totals struct {
	LineItems  int             `json:"line_items"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Reconciliation reports how the invoice total was absorbed.
type Reconciliation struct {
	BaseTotal            decimal.Decimal `json:"base_total"`
	InvoiceTotal         decimal.Decimal `json:"invoice_total"`
	HomeOfficeAdjustment decimal.Decimal `json:"home_office_adjustment"`
}

// MissingUser is an active directory entry absent from the uploaded
// exports.
type MissingUser struct {
	Email      string  `json:"email"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Branch     string  `json:"branch"`
	LastSeenAt *string `json:"last_seen_at"`
}

// AnalyzeResponse is the full outcome of one analysis pass. When
// NeedsUserEnrichment or NeedsBranchAssignment is set the pass is not
// finalized: Summary and BreakdownCSV are empty and the caller must
// resubmit with corrections under the same session id.
type AnalyzeResponse struct {
	VendorType            string                    `json:"vendor_type"`
	SessionID             string                    `json:"session_id"`
	NeedsUserEnrichment   bool                      `json:"needs_user_enrichment"`
	NeedsBranchAssignment bool                      `json:"needs_non_user_branch_assignment"`
	NeedsSupportReview    bool                      `json:"needs_support_review,omitempty"`
	Message               string                    `json:"message,omitempty"`
	NewUsers              []allocation.UserRow      `json:"new_users"`
	UserRows              []allocation.UserRow      `json:"user_rows"`
	NonUserRows           []allocation.NonUserRow   `json:"non_user_rows"`
	BranchPrompts         []allocation.BranchPrompt `json:"non_user_branch_prompts"`
	SupportRows           []allocation.SupportRow   `json:"support_rows,omitempty"`
	SupportBranchOptions  []string                  `json:"support_branch_options,omitempty"`
	MissingUsers          []MissingUser             `json:"missing_users"`
	Invoice               *InvoiceMeta              `json:"invoice"`
	Files                 []FileSummary             `json:"files"`
	Summary               []breakdown.SummaryRow    `json:"summary"`
	Totals                Totals                    `json:"totals"`
	Reconciliation        *Reconciliation           `json:"reconciliation"`
	Warnings              []string                  `json:"warnings"`
	BreakdownCSV          string                    `json:"breakdown_csv"`
}
