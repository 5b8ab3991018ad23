package fallback

import (
	"errors"
	"strings"
	"testing"

	"github.com/kingrea/calcforge/internal/validate"
	"github.com/kingrea/calcforge/internal/workitem"
)

var arbitraryNames = []string{
	"",
	"Widget Gizmo",
	"Mortgage Payment Calculator",
	"BMI Drywall Payroll Probate Factorial Recipe",
	"TODO placeholder FIXME",
	"func Calculate() { panic(\"unimplemented\") }",
	"401(k) Match",
	"Überschlag Rechner",
	strings.Repeat("long name ", 40),
}

func TestGenerateIsTotalAndValid(t *testing.T) {
	for _, category := range workitem.Categories {
		for _, name := range arbitraryNames {
			src, err := Generate(name, category)
			if err != nil {
				t.Fatalf("Generate(%q, %s): %v", name, category, err)
			}
			if v := validate.Validate(src, name, category); !v.Valid {
				t.Fatalf("Generate(%q, %s) failed validation: %s\n%s", name, category, v.Reason, src)
			}
		}
	}
}

func TestEveryRuleRendersValidSource(t *testing.T) {
	for _, category := range workitem.Categories {
		table, err := Rules(category)
		if err != nil {
			t.Fatalf("Rules(%s): %v", category, err)
		}
		if last := table[len(table)-1]; last.ID != "default" || len(last.Terms) != 0 {
			t.Fatalf("%s table must end in the default rule, got %+v", category, last)
		}
		for _, r := range table {
			src, err := r.Render(category)
			if err != nil {
				t.Fatalf("%s/%s: %v", category, r.ID, err)
			}
			if v := validate.Validate(src, "x", category); !v.Valid {
				t.Fatalf("%s/%s failed validation: %s\n%s", category, r.ID, v.Reason, src)
			}
		}
	}
}

func TestSelectFirstMatchWins(t *testing.T) {
	cases := []struct {
		name     string
		category workitem.Category
		rule     string
	}{
		{"Mortgage Payment Calculator", workitem.CategoryFinance, "mortgage"},
		{"Mortgage Interest Savings", workitem.CategoryFinance, "mortgage"},
		{"Savings Interest", workitem.CategoryFinance, "compound"},
		{"Car Loan", workitem.CategoryFinance, "loan"},
		{"Net Worth", workitem.CategoryFinance, "default"},
		{"Break Even Profit", workitem.CategoryBusiness, "breakeven"},
		{"BMI Calculator", workitem.CategoryHealth, "bmi"},
		{"Concrete Slab Volume", workitem.CategoryConstruction, "slab"},
		{"Tip Splitter", workitem.CategoryLifestyle, "tip"},
		{"Anything", workitem.CategoryUnknown, "default"},
	}
	for _, tc := range cases {
		r, err := Select(tc.name, tc.category)
		if err != nil {
			t.Fatal(err)
		}
		if r.ID != tc.rule {
			t.Fatalf("Select(%q, %s) = %s, want %s", tc.name, tc.category, r.ID, tc.rule)
		}
	}
}

func TestMortgageFallbackAmortizes(t *testing.T) {
	src, err := Generate("Mortgage Payment Calculator", workitem.CategoryFinance)
	if err != nil {
		t.Fatal(err)
	}
	body := src[strings.Index(src, "func Calculate("):strings.Index(src, "func Report(")]
	if !strings.Contains(body, "math.Pow(") {
		t.Fatalf("expected an exponentiation in the amortization body:\n%s", body)
	}
	if !strings.Contains(body, " / ") {
		t.Fatalf("expected a division in the amortization body:\n%s", body)
	}
}

func TestGenerateNeverEmbedsName(t *testing.T) {
	name := "Zyxwvut Quux"
	for _, category := range workitem.Categories {
		src, err := Generate(name, category)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(strings.ToLower(src), "zyxwvut") {
			t.Fatalf("%s fallback embedded the item name", category)
		}
	}
}

func TestDefaultSumsAndClassifies(t *testing.T) {
	src, err := Generate("Net Worth", workitem.CategoryFinance)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"total += v", "tier = 4", "math.Abs(total)"} {
		if !strings.Contains(src, want) {
			t.Fatalf("default template missing %q:\n%s", want, src)
		}
	}
}

func TestGenerateRejectsUndeclaredCategory(t *testing.T) {
	_, err := Generate("Anything", workitem.Category("astrology"))
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}
