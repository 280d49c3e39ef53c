package tabular

import (
	"strings"
	"testing"
)

func TestMatchHeader_ExactBeatsSubstring(t *testing.T) {
	headers := []string{"Branch Code", "Branch"}
	got, ok := MatchHeader(headers, RoleAliases["branch"])
	if !ok {
		t.Fatalf("expected a match")
	}
	// "branch" is an exact alias; "branch_code" only matches later in the
	// alias list, so exact order decides.
	if got != "Branch" {
		t.Fatalf("expected Branch, got %q", got)
	}
}

func TestMatchHeader_SubstringFallback(t *testing.T) {
	headers := []string{"Monthly Charge Total"}
	got, ok := MatchHeader(headers, RoleAliases["amount"])
	if !ok {
		t.Fatalf("expected substring fallback to match")
	}
	if got != "Monthly Charge Total" {
		t.Fatalf("got %q", got)
	}
}

func TestMatchHeader_NoMatch(t *testing.T) {
	if _, ok := MatchHeader([]string{"Serial Number"}, RoleAliases["email"]); ok {
		t.Fatalf("expected no match for unrelated header")
	}
}

func TestMatchHeader_InputOrderTieBreak(t *testing.T) {
	headers := []string{"Location", "Site"}
	got, _ := MatchHeader(headers, []string{"location", "site"})
	if got != "Location" {
		t.Fatalf("expected first alias to win, got %q", got)
	}
}

func TestReadCSV(t *testing.T) {
	in := "Branch,License,Amount\nA,Product A,100.50\nA,Product A,99.50\nshort\n"
	table, err := ReadCSV("test.csv", strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Headers) != 3 {
		t.Fatalf("expected 3 headers, got %d", len(table.Headers))
	}
	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(table.Rows))
	}
	if table.Rows[0].Get("Amount") != "100.50" {
		t.Fatalf("expected 100.50, got %q", table.Rows[0].Get("Amount"))
	}
	// Short rows pad missing columns with empty strings.
	if table.Rows[2].Get("Amount") != "" {
		t.Fatalf("expected padded empty field, got %q", table.Rows[2].Get("Amount"))
	}
}

func TestReadCSV_NoHeader(t *testing.T) {
	if _, err := ReadCSV("empty.csv", strings.NewReader("")); err == nil {
		t.Fatalf("expected ErrNoHeader for empty file")
	}
}
