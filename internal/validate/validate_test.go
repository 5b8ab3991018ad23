package validate

import (
	"strings"
	"testing"

	"github.com/kingrea/calcforge/internal/workitem"
)

const mortgageSource = `package calculator

import (
	"fmt"
	"math"
)

// Calculate returns the monthly mortgage payment for a loan.
func Calculate(in map[string]float64) (map[string]float64, error) {
	principal := in["principal"]
	rate := in["annualRate"] / 12 / 100
	months := in["years"] * 12
	if months <= 0 {
		return nil, fmt.Errorf("years must be positive")
	}
	if rate == 0 {
		return map[string]float64{"payment": principal / months}, nil
	}
	factor := math.Pow(1+rate, months)
	return map[string]float64{"payment": principal * rate * factor / (factor - 1)}, nil
}

// Report formats the payment result.
func Report(out map[string]float64) string {
	return fmt.Sprintf("Monthly payment: %.2f", out["payment"])
}
`

func stubFor(keyword string) string {
	return `package calculator

// Calculate returns the ` + keyword + ` result.
func Calculate(in map[string]float64) (map[string]float64, error) {
	return map[string]float64{"` + keyword + `": 42}, nil
}

func Report(out map[string]float64) string {
	return "` + keyword + `"
}
`
}

func TestValidateAcceptsRealComputation(t *testing.T) {
	v := Validate(mortgageSource, "Mortgage Payment Calculator", workitem.CategoryFinance)
	if !v.Valid {
		t.Fatalf("expected valid content, got %q", v.Reason)
	}
	if v.Err() != nil {
		t.Fatalf("valid verdict should carry no error")
	}
}

func TestValidateRejectsStubsInEveryCategory(t *testing.T) {
	for _, category := range workitem.Categories {
		keyword := category.Keywords()[0]
		v := Validate(stubFor(keyword), "Stub "+string(category), category)
		if v.Valid {
			t.Fatalf("%s stub accepted", category)
		}
		if !strings.Contains(v.Reason, "no arithmetic") {
			t.Fatalf("%s stub rejected for the wrong reason: %q", category, v.Reason)
		}
	}
}

func TestValidateIgnoresTrivialCalls(t *testing.T) {
	src := `package calculator

import "fmt"

func Calculate(in map[string]float64) (map[string]float64, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("no payment inputs")
	}
	return map[string]float64{"payment": float64(len(in))}, nil
}

func Report(out map[string]float64) string { return "payment" }
`
	v := Validate(src, "Payment", workitem.CategoryFinance)
	if v.Valid || !strings.Contains(v.Reason, "no arithmetic") {
		t.Fatalf("expected trivial calls to be rejected, got %+v", v)
	}
}

func TestValidateAcceptsHelperCall(t *testing.T) {
	src := `package calculator

func Calculate(in map[string]float64) (map[string]float64, error) {
	return monthlyPayment(in), nil
}

func monthlyPayment(in map[string]float64) map[string]float64 {
	return map[string]float64{"payment": in["principal"] / in["months"]}
}

func Report(out map[string]float64) string { return "payment result" }
`
	if v := Validate(src, "Payment", workitem.CategoryFinance); !v.Valid {
		t.Fatalf("helper call should count as computation: %q", v.Reason)
	}
}

func TestValidateArithmeticOutsideCalculateDoesNotCount(t *testing.T) {
	src := `package calculator

func Calculate(in map[string]float64) (map[string]float64, error) {
	return map[string]float64{"payment": 1}, nil
}

func Report(out map[string]float64) string {
	_ = out["payment"] * 2
	return "payment"
}
`
	if v := Validate(src, "Payment", workitem.CategoryFinance); v.Valid {
		t.Fatalf("arithmetic in Report must not satisfy the Calculate check")
	}
}

func TestValidateRejectsCrossDomainContamination(t *testing.T) {
	health := strings.NewReplacer("mortgage payment", "bmi", "mortgage", "bmi", "payment", "calories", "principal", "weight", "loan", "body").Replace(mortgageSource)
	v := Validate(health, "Mortgage Payment Calculator", workitem.CategoryFinance)
	if v.Valid {
		t.Fatalf("finance content made of health vocabulary was accepted")
	}

	mixed := strings.Replace(mortgageSource, "for a loan.", "for a loan, adjusted by bmi.", 1)
	v = Validate(mixed, "Mortgage Payment Calculator", workitem.CategoryFinance)
	if v.Valid || !strings.Contains(v.Reason, "health vocabulary") {
		t.Fatalf("expected health contamination, got %+v", v)
	}

	v = Validate(strings.Replace(health, "for a body.", "for a body and mortgage.", 1), "BMI Calculator", workitem.CategoryHealth)
	if v.Valid || !strings.Contains(v.Reason, "finance vocabulary") {
		t.Fatalf("expected the check to run in the other direction too, got %+v", v)
	}
}

func TestValidateRejectsMissingStructure(t *testing.T) {
	cases := map[string]struct {
		src    string
		reason string
	}{
		"no report": {
			src:    strings.Replace(mortgageSource, "func Report(", "func Render(", 1),
			reason: "missing entry point Report",
		},
		"no package": {
			src:    strings.Replace(mortgageSource, "package calculator", "", 1),
			reason: "missing package clause",
		},
		"syntax error": {
			src:    strings.Replace(mortgageSource, "factor := math.Pow(1+rate, months)", "factor := math.Pow(1+rate, months", 1),
			reason: "does not parse",
		},
		"placeholder": {
			src:    strings.Replace(mortgageSource, "// Report formats", "// TODO: Report formats", 1),
			reason: "placeholder",
		},
		"unimplemented panic": {
			src:    strings.Replace(mortgageSource, "principal := in[\"principal\"]", "panic(\"unimplemented\")\n\tprincipal := in[\"principal\"]", 1),
			reason: "placeholder",
		},
	}
	for name, tc := range cases {
		v := Validate(tc.src, "Mortgage Payment Calculator", workitem.CategoryFinance)
		if v.Valid {
			t.Fatalf("%s: accepted", name)
		}
		if !strings.Contains(v.Reason, tc.reason) {
			t.Fatalf("%s: reason %q, want it to mention %q", name, v.Reason, tc.reason)
		}
	}
}

func TestValidateRequiresSubjectReference(t *testing.T) {
	src := `package calculator

func Calculate(in map[string]float64) (map[string]float64, error) {
	return map[string]float64{"percent": in["part"] / in["whole"] * 100}, nil
}

func Report(out map[string]float64) string { return "percent" }
`
	v := Validate(src, "Widget Gizmo", workitem.CategoryMath)
	if v.Valid || !strings.Contains(v.Reason, "never refers") {
		t.Fatalf("expected subject check to fail, got %+v", v)
	}
	if v := Validate(src, "Percent Of Whole", workitem.CategoryMath); !v.Valid {
		t.Fatalf("name token should satisfy the subject check: %q", v.Reason)
	}
}

func TestValidateRequiresDeclaredEntryPoints(t *testing.T) {
	commented := strings.Replace(mortgageSource, `// Report formats the payment result.
func Report(out map[string]float64) string {
	return fmt.Sprintf("Monthly payment: %.2f", out["payment"])
}`, `// Callers render the payment with func Report(out) once it exists.
var _ = fmt.Sprint`, 1)
	v := Validate(commented, "Mortgage Payment Calculator", workitem.CategoryFinance)
	if v.Valid || v.Reason != "missing entry point Report" {
		t.Fatalf("a Report mentioned only in a comment must be rejected, got %+v", v)
	}

	wrong := strings.Replace(mortgageSource, "func Report(out map[string]float64) string {", "func Report(out map[string]float64, unit string) string {", 1)
	v = Validate(wrong, "Mortgage Payment Calculator", workitem.CategoryFinance)
	if v.Valid || !strings.Contains(v.Reason, "Report has signature") {
		t.Fatalf("expected a signature rejection, got %+v", v)
	}

	method := strings.Replace(mortgageSource, "func Calculate(in", "func (calc) Calculate(in", 1) + "\ntype calc struct{}\n"
	if v := Validate(method, "Mortgage Payment Calculator", workitem.CategoryFinance); v.Valid || v.Reason != "missing entry point Calculate" {
		t.Fatalf("a method does not count as the Calculate entry point, got %+v", v)
	}
}

func TestValidatePlaceholderMarkersMatchWholeWords(t *testing.T) {
	src := `package calculator

import "fmt"

// Calculate returns the share of savings set aside for charity.
func Calculate(in map[string]float64) (map[string]float64, error) {
	totalToDonate := in["savings"] * in["percent"] / 100
	return map[string]float64{"totalToDonate": totalToDonate}, nil
}

// Report formats the donation result.
func Report(out map[string]float64) string {
	return fmt.Sprintf("Donate %.2f from savings", out["totalToDonate"])
}
`
	if v := Validate(src, "Charity Savings Calculator", workitem.CategoryFinance); !v.Valid {
		t.Fatalf("identifier containing todo letters rejected: %q", v.Reason)
	}
	if v := Validate(strings.Replace(src, "// Report formats", "// todo: Report formats", 1), "Charity Savings Calculator", workitem.CategoryFinance); v.Valid {
		t.Fatalf("a todo comment must still be rejected")
	}
}

func TestValidateAcceptsAmbiguousAndOwnVocabulary(t *testing.T) {
	dates := `package calculator

import "fmt"

var months = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Calculate returns the number of days between two dates.
func Calculate(in map[string]float64) (map[string]float64, error) {
	days := in["endDay"] - in["startDay"]
	return map[string]float64{"days": days}, nil
}

// Report formats the date difference.
func Report(out map[string]float64) string {
	return fmt.Sprintf("%.0f days (%s to %s)", out["days"], months[0], months[11])
}
`
	if v := Validate(dates, "Date Difference Calculator", workitem.CategoryLifestyle); !v.Valid {
		t.Fatalf("month abbreviations must not count as contamination: %q", v.Reason)
	}

	recipe := `package calculator

import "fmt"

// Calculate returns the calories per serving of a recipe.
func Calculate(in map[string]float64) (map[string]float64, error) {
	if in["servings"] <= 0 {
		return nil, fmt.Errorf("servings must be positive")
	}
	return map[string]float64{"calories": in["totalCalories"] / in["servings"]}, nil
}

// Report formats the recipe calories.
func Report(out map[string]float64) string {
	return fmt.Sprintf("%.0f calories per serving", out["calories"])
}
`
	if v := Validate(recipe, "Recipe Calorie Calculator", workitem.CategoryHealth); !v.Valid {
		t.Fatalf("vocabulary from the item name must not count as contamination: %q", v.Reason)
	}
	if v := Validate(recipe, "Calorie Counter", workitem.CategoryHealth); v.Valid || !strings.Contains(v.Reason, "lifestyle vocabulary") {
		t.Fatalf("recipe outside the item name is still contamination, got %+v", v)
	}
}
