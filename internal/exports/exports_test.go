package exports

import (
	"strings"
	"testing"

	"apalloc_backend/internal/tabular"
)

func mustTable(t *testing.T, csvText string) tabular.Table {
	t.Helper()
	table, err := tabular.ReadCSV("test.csv", strings.NewReader(csvText))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return table
}

func TestParseGeneric_AmountColumn(t *testing.T) {
	table := mustTable(t, "Branch,License,Amount\nA,Product A,100.50\nA,Product A,99.50\n")
	result := ParseGeneric(table)
	if len(result.Rows) != 2 || result.RowsSkipped != 0 {
		t.Fatalf("expected 2 rows, 0 skipped; got %d/%d", len(result.Rows), result.RowsSkipped)
	}
	if result.Rows[0].Branch != "A" || result.Rows[0].License != "Product A" {
		t.Fatalf("unexpected row: %+v", result.Rows[0])
	}
}

func TestParseGeneric_QtyUnitFallbackAndSkips(t *testing.T) {
	table := mustTable(t, "Location,Product,Seats,Rate\nB,Thing,3,4.50\nB,Thing,x,4.50\n")
	result := ParseGeneric(table)
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	if result.Rows[0].Amount.StringFixed(2) != "13.50" {
		t.Fatalf("expected 13.50, got %s", result.Rows[0].Amount.StringFixed(2))
	}
	if result.RowsSkipped != 1 {
		t.Fatalf("expected 1 skipped row, got %d", result.RowsSkipped)
	}
	if len(result.Warnings) == 0 {
		t.Fatalf("expected a skip warning")
	}
}

func TestParseGeneric_PlaceholdersForBlankColumns(t *testing.T) {
	table := mustTable(t, "Branch,License,Amount\n,,10.00\n")
	result := ParseGeneric(table)
	if result.Rows[0].Branch != "UNMAPPED_BRANCH" || result.Rows[0].License != "UNMAPPED_LICENSE" {
		t.Fatalf("expected placeholders, got %+v", result.Rows[0])
	}
}

func TestParseDevice_AliasRemapAndFixedCost(t *testing.T) {
	table := mustTable(t, "Username,Model\nDefault User,Pixel\nAcworth,iPhone\n,Tab\n")
	result := ParseDevice(table, DefaultDeviceOptions())
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if result.Rows[0].Branch != "Home Office" {
		t.Fatalf("expected alias remap to Home Office, got %q", result.Rows[0].Branch)
	}
	if result.Rows[1].Branch != "Acworth" {
		t.Fatalf("expected passthrough branch, got %q", result.Rows[1].Branch)
	}
	for _, row := range result.Rows {
		if row.Amount.StringFixed(2) != "2.00" || row.License != "UEM Cloud Pro Edition" {
			t.Fatalf("expected fixed per-device cost, got %+v", row)
		}
	}
	if result.RowsSkipped != 1 {
		t.Fatalf("expected blank row skipped, got %d", result.RowsSkipped)
	}
}

func TestParseSeatUsers(t *testing.T) {
	table := mustTable(t, "Email,First Name,Last Name,Team Products\nJane@Example.com,Jane,Doe,\"Photoshop, Acrobat Pro DC\"\n,,Nameless,Photoshop\n")
	result := ParseSeatUsers(table)
	if len(result.Users) != 1 || result.RowsSkipped != 1 {
		t.Fatalf("expected 1 user and 1 skip, got %d/%d", len(result.Users), result.RowsSkipped)
	}
	u := result.Users[0]
	if u.Email != "jane@example.com" {
		t.Fatalf("email must be normalized, got %q", u.Email)
	}
	if len(u.Products) != 2 || u.Products[0] != "Photoshop" || u.Products[1] != "Acrobat Pro DC" {
		t.Fatalf("unexpected products: %v", u.Products)
	}
}

func TestParseManagedUsers(t *testing.T) {
	csvText := "User principal name,First name,Last name,Office,Licenses\n" +
		"alice@example.com,Alice,Smith,Acworth,Microsoft 365 Business Premium+Power BI Pro\n" +
		"guest_ext#EXT#@tenant.example.com,G,U,Acworth,Microsoft 365 F3\n" +
		"bob@example.com,Bob,Jones,,Unlicensed\n" +
		"carol@example.com,Carol,King,Corporate,Exchange Online (Plan 1)\n"
	table := mustTable(t, csvText)
	aliases := map[string]string{"": "Home Office", "Corporate": "Home Office", "Process Smart": "Home Office"}
	result := ParseManagedUsers(table, aliases, "Home Office")

	if len(result.Users) != 2 {
		t.Fatalf("expected 2 billable users, got %d", len(result.Users))
	}
	if result.RowsSkipped != 2 {
		t.Fatalf("expected guest and unlicensed rows skipped, got %d", result.RowsSkipped)
	}
	alice := result.Users[0]
	if alice.DefaultBranch != "Acworth" || len(alice.Products) != 2 {
		t.Fatalf("unexpected alice: %+v", alice)
	}
	carol := result.Users[1]
	if carol.DefaultBranch != "Home Office" {
		t.Fatalf("office alias must map Corporate to Home Office, got %q", carol.DefaultBranch)
	}
	// Guests skip silently; only header-level warnings remain.
	for _, w := range result.Warnings {
		if strings.Contains(w, "guest") {
			t.Fatalf("guest skip must be silent, got %q", w)
		}
	}
}

func TestParsers_NoHeaderRow(t *testing.T) {
	empty := tabular.Table{Filename: "x.csv"}
	if r := ParseGeneric(empty); len(r.Warnings) != 1 || len(r.Rows) != 0 {
		t.Fatalf("generic: expected warning-only result")
	}
	if r := ParseSeatUsers(empty); len(r.Warnings) != 1 || len(r.Users) != 0 {
		t.Fatalf("seat: expected warning-only result")
	}
}
