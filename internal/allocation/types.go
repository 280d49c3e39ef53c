package allocation

import (
	"apalloc_backend/internal/breakdown"

	"github.com/shopspring/decimal"
)

// Profile is the directory snapshot entry the engine reads. Lifecycle
// belongs to the directory collaborator; the engine never mutates one.
type Profile struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Branch    string `json:"branch"`
	Active    bool   `json:"active"`
}

// UserRow is the per-user summary built alongside allocation rows.
type UserRow struct {
	Email       string          `json:"email"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Branch      string          `json:"branch"`
	LicenseList string          `json:"license_list"`
	UserTotal   decimal.Decimal `json:"user_total"`
	KnownUser   bool            `json:"known_user"`
}

// NonUserRow is a grouped view of charges that did not attach to a
// person: fixed-branch items and reconciliation deltas.
type NonUserRow struct {
	Branch         string          `json:"branch"`
	License        string          `json:"license"`
	AllocationType string          `json:"allocation_type"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// BranchPrompt is an outstanding allocation decision: one
// un-attributable extra unit of a sequentially distributed charge.
// Prompts live only within one pass; callers persist resolved choices
// and resubmit them as PromptSubmissions on the next pass.
type BranchPrompt struct {
	LineKey           string          `json:"line_key"`
	PromptIndex       int             `json:"prompt_index"`
	License           string          `json:"license"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Quantity          int             `json:"quantity"`
	AlreadyAssigned   []string        `json:"already_assigned_branches"`
	AvailableBranches []string        `json:"available_branches"`
	SubmittedBranch   string          `json:"branch"`
	ValidationError   string          `json:"validation_error,omitempty"`
}

// PromptSubmission is a resolved branch choice for one prompt, keyed
// by the stable (line_key, prompt_index) identity.
type PromptSubmission struct {
	LineKey     string `json:"line_key"`
	PromptIndex int    `json:"prompt_index"`
	Branch      string `json:"branch"`
}

// SupportUpdate overrides the inferred branch of one support block.
type SupportUpdate struct {
	RowKey string `json:"row_key"`
	Branch string `json:"branch"`
}

// SupportRow is the reviewable view of one allocated support block.
type SupportRow struct {
	RowKey           string          `json:"row_key"`
	ChargeSummary    string          `json:"charge_summary"`
	BillableEntries  int             `json:"billable_entries"`
	BillableHours    decimal.Decimal `json:"billable_hours"`
	Amount           decimal.Decimal `json:"amount"`
	Branch           string          `json:"branch"`
	Confidence       string          `json:"confidence"`
	AssignmentReason string          `json:"assignment_reason"`
	NeedsReview      bool            `json:"needs_review"`
}

// Result is one full allocation pass over a managed-services invoice.
// While UnresolvedEmails or BranchPrompts are non-empty the pass is
// incomplete: the caller must gather input and re-invoke, and no
// directory side effects may run.
type Result struct {
	Rows             []breakdown.Row `json:"rows"`
	UserRows         []UserRow       `json:"user_rows"`
	NonUserRows      []NonUserRow    `json:"non_user_rows"`
	Warnings         []string        `json:"warnings"`
	UnresolvedEmails []string        `json:"unresolved_emails"`
	BranchPrompts    []BranchPrompt  `json:"branch_prompts"`
}

// SeatResult is one allocation pass over a seat-vendor export set.
type SeatResult struct {
	Rows             []breakdown.Row `json:"rows"`
	UserRows         []UserRow       `json:"user_rows"`
	Warnings         []string        `json:"warnings"`
	UnresolvedEmails []string        `json:"unresolved_emails"`
}
