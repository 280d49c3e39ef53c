package money

import "testing"

func TestParse_CurrencyAndThousands(t *testing.T) {
	d, ok := Parse("$1,234.50")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if d.String() != "1234.5" {
		t.Fatalf("expected 1234.5, got %s", d.String())
	}
}

func TestParse_ParenthesizedNegative(t *testing.T) {
	d, ok := Parse("(45.00)")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if d.String() != "-45" {
		t.Fatalf("expected -45, got %s", d.String())
	}
}

func TestParse_LeadingMinus(t *testing.T) {
	d, ok := Parse("-12.30")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if !d.Equal(MustParse("-12.30")) {
		t.Fatalf("expected -12.30, got %s", d.String())
	}
}

func TestParse_ParenthesizedWithInnerMinus(t *testing.T) {
	// Both negativity checks trigger the same flag; the result stays negative.
	d, ok := Parse("(-5.00)")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if d.String() != "-5" {
		t.Fatalf("expected -5, got %s", d.String())
	}
}

func TestParse_Garbage(t *testing.T) {
	if _, ok := Parse("abc"); ok {
		t.Fatalf("expected parse to fail for non-numeric input")
	}
	if _, ok := Parse(""); ok {
		t.Fatalf("expected parse to fail for empty input")
	}
	if _, ok := Parse("$1.2.3"); ok {
		t.Fatalf("expected parse to fail for malformed number")
	}
}

func TestQuantize(t *testing.T) {
	d := MustParse("10.005")
	if Quantize(d).String() != "10.01" {
		t.Fatalf("expected 10.01, got %s", Quantize(d).String())
	}
}

func TestNormalizeText(t *testing.T) {
	got := NormalizeText("  Adobe Stock – 40   assets\ta month ")
	want := "Adobe Stock - 40 assets a month"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if NormalizeEmail("  User@Example.COM ") != "user@example.com" {
		t.Fatalf("email normalization should trim and lowercase")
	}
}

func TestNormalizeHeader(t *testing.T) {
	if NormalizeHeader(" Branch Name ") != "branch_name" {
		t.Fatalf("expected branch_name, got %q", NormalizeHeader(" Branch Name "))
	}
	if NormalizeHeader("Unit-Price ($)") != "unit_price" {
		t.Fatalf("expected unit_price, got %q", NormalizeHeader("Unit-Price ($)"))
	}
}
