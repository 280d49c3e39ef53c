package allocation

import (
	"strings"
	"testing"

	"apalloc_backend/internal/canonical"
	"apalloc_backend/internal/exports"
	"apalloc_backend/internal/invoice"
	"apalloc_backend/internal/money"

	"github.com/shopspring/decimal"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	rules, err := LoadRules()
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	vocab, err := canonical.Load()
	if err != nil {
		t.Fatalf("canonical.Load: %v", err)
	}
	return NewEngine(rules, vocab)
}

func line(name string, qty, unit, amount string) invoice.Line {
	return invoice.Line{
		Description:   name,
		CanonicalName: name,
		Quantity:      money.MustParse(qty),
		UnitPrice:     money.MustParse(unit),
		Amount:        money.MustParse(amount),
	}
}

func hasWarning(warnings []string, fragment string) bool {
	for _, w := range warnings {
		if strings.Contains(w, fragment) {
			return true
		}
	}
	return false
}

func TestFixedBranchPolicy(t *testing.T) {
	e := newTestEngine(t)
	got := e.Allocate(Input{Lines: []invoice.Line{
		line("Dark Web Monitoring", "1", "45.00", "45.00"),
	}})

	if len(got.Rows) != 1 {
		t.Fatalf("rows = %+v, want 1", got.Rows)
	}
	if got.Rows[0].Branch != "Home Office" || got.Rows[0].Amount.StringFixed(2) != "45.00" {
		t.Fatalf("row = %+v", got.Rows[0])
	}
	if len(got.BranchPrompts) != 0 || len(got.Warnings) != 0 {
		t.Fatalf("prompts/warnings = %v / %v, want none", got.BranchPrompts, got.Warnings)
	}
	if len(got.NonUserRows) != 1 || got.NonUserRows[0].AllocationType != "Fixed Branch Item" {
		t.Fatalf("non-user rows = %+v", got.NonUserRows)
	}
}

func TestUnmappedCanonicalNameFallsBack(t *testing.T) {
	e := newTestEngine(t)
	got := e.Allocate(Input{Lines: []invoice.Line{
		line("Mystery Charge", "1", "10.00", "10.00"),
	}})

	if len(got.Rows) != 1 || got.Rows[0].Branch != "Home Office" {
		t.Fatalf("rows = %+v, want single Home Office row", got.Rows)
	}
	if !hasWarning(got.Warnings, "Mystery Charge: no allocation rule configured") {
		t.Fatalf("warnings = %v, want unmapped-rule warning", got.Warnings)
	}
}

func TestSequentialWithinBranchListNoPrompts(t *testing.T) {
	e := newTestEngine(t)
	// 13 district branches; quantity 5 fills the first 5.
	got := e.Allocate(Input{Lines: []invoice.Line{
		line("NetWatch360 Managed Firewall", "5", "100.00", "500.00"),
	}})

	if len(got.BranchPrompts) != 0 {
		t.Fatalf("prompts = %+v, want none", got.BranchPrompts)
	}
	if len(got.Rows) != 5 {
		t.Fatalf("rows = %+v, want 5", got.Rows)
	}
	wantBranches := []string{"Acworth", "Canton", "Charleston", "Cobb", "Color Burst"}
	for i, branch := range wantBranches {
		if got.Rows[i].Branch != branch || got.Rows[i].Amount.StringFixed(2) != "100.00" {
			t.Fatalf("row %d = %+v, want %s @ 100.00", i, got.Rows[i], branch)
		}
	}
	if !hasWarning(got.Warnings, "used the first 5 branches") {
		t.Fatalf("warnings = %v, want short-quantity warning", got.Warnings)
	}
}

func TestSequentialOverflowEmitsPrompts(t *testing.T) {
	e := newTestEngine(t)
	// 13 district branches, quantity 15: two extra units.
	got := e.Allocate(Input{Lines: []invoice.Line{
		line("NetWatch360 Managed Firewall", "15", "100.00", "1500.00"),
	}})

	if len(got.BranchPrompts) != 2 {
		t.Fatalf("prompts = %+v, want 2", got.BranchPrompts)
	}
	for i, prompt := range got.BranchPrompts {
		if prompt.PromptIndex != i+1 {
			t.Fatalf("prompt %d index = %d, want %d", i, prompt.PromptIndex, i+1)
		}
		if prompt.LineKey != "1:NetWatch360 Managed Firewall" {
			t.Fatalf("prompt line key = %q", prompt.LineKey)
		}
		if len(prompt.AlreadyAssigned) != 13 {
			t.Fatalf("already assigned = %v, want full district list", prompt.AlreadyAssigned)
		}
		for _, available := range prompt.AvailableBranches {
			for _, taken := range prompt.AlreadyAssigned {
				if available == taken {
					t.Fatalf("available branch %q is already assigned", available)
				}
			}
		}
	}
	// 13 posted units, no residual while prompts are outstanding.
	if len(got.Rows) != 13 {
		t.Fatalf("rows = %d, want 13", len(got.Rows))
	}
	if !hasWarning(got.Warnings, "2 extra branch assignment(s) required") {
		t.Fatalf("warnings = %v, want outstanding-prompts warning", got.Warnings)
	}
}

func TestSequentialOverflowResolvedBySubmissions(t *testing.T) {
	e := newTestEngine(t)
	got := e.Allocate(Input{
		Lines: []invoice.Line{line("NetWatch360 Managed Firewall", "15", "100.00", "1505.00")},
		PromptSubmissions: []PromptSubmission{
			{LineKey: "1:NetWatch360 Managed Firewall", PromptIndex: 1, Branch: "Sugar Hill"},
			{LineKey: "1:NetWatch360 Managed Firewall", PromptIndex: 2, Branch: "Grayson"},
		},
	})

	if len(got.BranchPrompts) != 0 {
		t.Fatalf("prompts = %+v, want none", got.BranchPrompts)
	}
	// 13 list units + 2 submitted + 5.00 residual to Home Office.
	if len(got.Rows) != 16 {
		t.Fatalf("rows = %d, want 16", len(got.Rows))
	}
	last := got.Rows[len(got.Rows)-1]
	if last.Branch != "Home Office" || last.Amount.StringFixed(2) != "5.00" {
		t.Fatalf("residual row = %+v, want Home Office @ 5.00", last)
	}
}

func TestSequentialRejectsAlreadyAssignedBranch(t *testing.T) {
	e := newTestEngine(t)
	got := e.Allocate(Input{
		Lines: []invoice.Line{line("NetWatch360 Managed Firewall", "14", "100.00", "1400.00")},
		PromptSubmissions: []PromptSubmission{
			{LineKey: "1:NetWatch360 Managed Firewall", PromptIndex: 1, Branch: "Tampa"},
		},
	})

	if len(got.BranchPrompts) != 1 {
		t.Fatalf("prompts = %+v, want re-emitted prompt", got.BranchPrompts)
	}
	prompt := got.BranchPrompts[0]
	if prompt.SubmittedBranch != "Tampa" {
		t.Fatalf("submitted branch = %q, want the rejected submission echoed", prompt.SubmittedBranch)
	}
	if !strings.Contains(prompt.ValidationError, "already assigned") {
		t.Fatalf("validation error = %q", prompt.ValidationError)
	}
	if !hasWarning(got.Warnings, "branch 'Tampa' is already assigned") {
		t.Fatalf("warnings = %v", got.Warnings)
	}
}

func TestSplitThreshold(t *testing.T) {
	e := newTestEngine(t)
	got := e.Allocate(Input{Lines: []invoice.Line{
		line("Firewall Security Subscription Main Office", "1", "150.00", "150.00"),
	}})

	if len(got.Rows) != 2 {
		t.Fatalf("rows = %+v, want 2", got.Rows)
	}
	if got.Rows[0].Branch != "Sugar Hill" || got.Rows[0].Amount.StringFixed(2) != "97.00" {
		t.Fatalf("threshold row = %+v", got.Rows[0])
	}
	if got.Rows[1].Branch != "Home Office" || got.Rows[1].Amount.StringFixed(2) != "53.00" {
		t.Fatalf("remainder row = %+v", got.Rows[1])
	}

	below := e.Allocate(Input{Lines: []invoice.Line{
		line("Firewall Security Subscription Main Office", "1", "80.00", "80.00"),
	}})
	if len(below.Rows) != 1 || below.Rows[0].Branch != "Home Office" {
		t.Fatalf("below-threshold rows = %+v", below.Rows)
	}
	if !hasWarning(below.Warnings, "below expected split baseline") {
		t.Fatalf("warnings = %v", below.Warnings)
	}
}

func TestDynamicMatchReconciliationDelta(t *testing.T) {
	e := newTestEngine(t)
	users := []exports.User{
		{SourceFile: "u.csv", Email: "a@x.com", LastName: "Ames", DefaultBranch: "Tampa",
			Products: []string{"Microsoft 365 Business Premium"}},
		{SourceFile: "u.csv", Email: "b@x.com", LastName: "Bell", DefaultBranch: "Canton",
			Products: []string{"Exchange Online (Plan 1)"}},
		{SourceFile: "u.csv", Email: "c@x.com", LastName: "Cole", DefaultBranch: "Cobb",
			Products: []string{"Dropbox Business"}},
	}
	// Two of three users match Workstation; invoice says four.
	got := e.Allocate(Input{
		Users: users,
		Lines: []invoice.Line{line("Workstation", "4", "30.00", "120.00")},
	})

	if len(got.Rows) != 3 {
		t.Fatalf("rows = %+v, want 2 user rows + 1 delta", got.Rows)
	}
	delta := got.Rows[2]
	if delta.Branch != "Home Office" || delta.Amount.StringFixed(2) != "60.00" {
		t.Fatalf("delta row = %+v, want Home Office @ 60.00 (120 - 2x30)", delta)
	}
	if !hasWarning(got.Warnings, "Workstation: invoice quantity is 4, matched users are 2") {
		t.Fatalf("warnings = %v", got.Warnings)
	}
	if len(got.NonUserRows) != 1 || got.NonUserRows[0].AllocationType != "Invoice Delta" {
		t.Fatalf("non-user rows = %+v", got.NonUserRows)
	}

	var ames UserRow
	for _, row := range got.UserRows {
		if row.Email == "a@x.com" {
			ames = row
		}
	}
	if ames.LicenseList != "Workstation" || ames.UserTotal.StringFixed(2) != "30.00" {
		t.Fatalf("user row = %+v", ames)
	}
}

func TestDirectoryBranchWinsOverExportDefault(t *testing.T) {
	e := newTestEngine(t)
	got := e.Allocate(Input{
		Users: []exports.User{{Email: "a@x.com", DefaultBranch: "Tampa",
			Products: []string{"Microsoft 365 Business Premium"}}},
		Directory: map[string]Profile{
			"a@x.com": {Email: "a@x.com", Branch: "Savannah", Active: true},
		},
		Lines: []invoice.Line{line("Microsoft Business Premium Annual", "1", "22.00", "22.00")},
	})

	if len(got.Rows) != 1 || got.Rows[0].Branch != "Savannah" {
		t.Fatalf("rows = %+v, want directory branch Savannah", got.Rows)
	}
	if len(got.UnresolvedEmails) != 0 {
		t.Fatalf("unresolved = %v, want none", got.UnresolvedEmails)
	}
}

func TestUserWithoutBranchIsUnresolved(t *testing.T) {
	e := newTestEngine(t)
	got := e.Allocate(Input{
		Users: []exports.User{{Email: "Nobody@X.com",
			Products: []string{"Microsoft 365 Business Premium"}}},
		Lines: []invoice.Line{line("Microsoft Business Premium Annual", "1", "22.00", "22.00")},
	})

	if len(got.UnresolvedEmails) != 1 || got.UnresolvedEmails[0] != "nobody@x.com" {
		t.Fatalf("unresolved = %v, want normalized email", got.UnresolvedEmails)
	}
	// The unresolved user's portion is never posted to a blank branch.
	for _, row := range got.Rows {
		if row.Branch == "" {
			t.Fatalf("blank branch allocated: %+v", row)
		}
	}
}

func TestAllocateSeats(t *testing.T) {
	e := newTestEngine(t)
	users := []exports.User{
		{SourceFile: "adobe.csv", Email: "a@x.com", FirstName: "Amy", LastName: "Ames",
			Products: []string{"Acrobat Pro DC", "Photoshop"}},
		{SourceFile: "adobe.csv", Email: "b@x.com", FirstName: "Ben", LastName: "Bell",
			Products: []string{"Acrobat Pro"}},
	}
	directory := map[string]Profile{
		"a@x.com": {Email: "a@x.com", Branch: "Tampa", Active: true},
	}
	got := e.AllocateSeats(users, directory, map[string]decimal.Decimal{
		"Acrobat Pro": money.MustParse("25.20"),
	})

	if len(got.Rows) != 1 {
		t.Fatalf("rows = %+v, want 1 (only the priced product of the known user)", got.Rows)
	}
	if got.Rows[0].Branch != "Tampa" || got.Rows[0].License != "Acrobat Pro" {
		t.Fatalf("row = %+v", got.Rows[0])
	}
	if len(got.UnresolvedEmails) != 1 || got.UnresolvedEmails[0] != "b@x.com" {
		t.Fatalf("unresolved = %v", got.UnresolvedEmails)
	}
	if !hasWarning(got.Warnings, "No invoice price found for 'Photoshop'") {
		t.Fatalf("warnings = %v", got.Warnings)
	}

	var ames UserRow
	for _, row := range got.UserRows {
		if row.Email == "a@x.com" {
			ames = row
		}
	}
	if ames.LicenseList != "Acrobat Pro, Photoshop" {
		t.Fatalf("license list = %q", ames.LicenseList)
	}
	if ames.UserTotal.StringFixed(2) != "25.20" {
		t.Fatalf("user total = %v, want only the priced product", ames.UserTotal)
	}
}

func TestAllocateSupport(t *testing.T) {
	e := newTestEngine(t)
	blocks := []invoice.SupportBlock{
		{RowKey: "1:abc", ChargeSummary: "Tampa switch replacement",
			BillableEntries: 1, BillableHours: money.MustParse("2.00"), Amount: money.MustParse("300.00")},
		{RowKey: "2:def", ChargeSummary: "General network review",
			BillableEntries: 1, BillableHours: money.MustParse("1.00"), Amount: money.MustParse("150.00")},
	}

	rows, supportRows, warnings := e.AllocateSupport(blocks, nil)

	if len(rows) != 2 {
		t.Fatalf("rows = %+v, want 2", rows)
	}
	if rows[0].Branch != "Tampa" || rows[0].License != "Support: Tampa switch replacement" {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[1].Branch != "Home Office" {
		t.Fatalf("row 1 = %+v, want low-confidence Home Office", rows[1])
	}
	// Needs-review rows sort first.
	if !supportRows[0].NeedsReview || supportRows[0].RowKey != "2:def" {
		t.Fatalf("support rows order = %+v", supportRows)
	}
	if supportRows[1].Confidence != "high" {
		t.Fatalf("confidence = %q, want high", supportRows[1].Confidence)
	}
	if !hasWarning(warnings, "1 support block(s) defaulted to Home Office") {
		t.Fatalf("warnings = %v", warnings)
	}

	// An explicit update overrides inference and clears the review flag.
	rows, supportRows, warnings = e.AllocateSupport(blocks, []SupportUpdate{
		{RowKey: "2:def", Branch: "Grayson"},
	})
	if rows[1].Branch != "Grayson" {
		t.Fatalf("overridden row = %+v", rows[1])
	}
	for _, row := range supportRows {
		if row.NeedsReview {
			t.Fatalf("support row still needs review: %+v", row)
		}
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none after override", warnings)
	}
}
