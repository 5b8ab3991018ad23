// Package fallback produces deterministic calculator source when the
// generation service cannot deliver acceptable content. Every declared
// category has an ordered rule table ending in a default, so Generate is
// total over workitem.Categories.
package fallback

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"go/format"
	"text/template"

	"github.com/kingrea/calcforge/internal/workitem"
)

// ErrUnknownCategory is returned for categories outside workitem.Categories.
var ErrUnknownCategory = errors.New("fallback: unknown category")

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("fallback").ParseFS(templateFS, "templates/*.tmpl"))

// Rule pairs a name predicate with the template that renders it. A rule
// without terms matches every name.
type Rule struct {
	ID       string
	Terms    []string
	Template string
}

// Match reports whether any of the rule's terms occurs in name.
func (r Rule) Match(name workitem.Text) bool {
	if len(r.Terms) == 0 {
		return true
	}
	_, ok := name.FirstOf(r.Terms)
	return ok
}

// Render executes the rule's template for category.
func (r Rule) Render(category workitem.Category) (string, error) {
	data := struct {
		Category workitem.Category
		Rule     string
		Subject  string
	}{category, r.ID, subjects[category]}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, r.Template, data); err != nil {
		return "", fmt.Errorf("fallback: render %s/%s: %w", category, r.ID, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("fallback: format %s/%s: %w", category, r.ID, err)
	}
	return string(src), nil
}

// subjects name the quantity the category default sums. Each is one of the
// category's keywords.
var subjects = map[workitem.Category]string{
	workitem.CategoryFinance:      "balance",
	workitem.CategoryBusiness:     "revenue",
	workitem.CategoryLegal:        "fees",
	workitem.CategoryHealth:       "health",
	workitem.CategoryConstruction: "material",
	workitem.CategoryMath:         "number",
	workitem.CategoryLifestyle:    "budget",
	workitem.CategoryUnknown:      "value",
}

var defaultRule = Rule{ID: "default", Template: "default.go.tmpl"}

var rules = map[workitem.Category][]Rule{
	workitem.CategoryFinance: {
		{ID: "mortgage", Terms: []string{"mortgage payment", "mortgage", "amortization", "home loan"}, Template: "finance_mortgage.go.tmpl"},
		{ID: "compound", Terms: []string{"compound", "savings", "investment", "retirement", "future value"}, Template: "finance_compound.go.tmpl"},
		{ID: "loan", Terms: []string{"loan", "interest", "debt", "credit card"}, Template: "finance_loan.go.tmpl"},
	},
	workitem.CategoryBusiness: {
		{ID: "breakeven", Terms: []string{"break even", "breakeven"}, Template: "business_breakeven.go.tmpl"},
		{ID: "margin", Terms: []string{"margin", "profit", "markup"}, Template: "business_margin.go.tmpl"},
		{ID: "roi", Terms: []string{"roi", "return on investment"}, Template: "business_roi.go.tmpl"},
	},
	workitem.CategoryLegal: {
		{ID: "settlement", Terms: []string{"settlement", "damages", "injury", "contingency"}, Template: "legal_settlement.go.tmpl"},
		{ID: "support", Terms: []string{"child support", "support", "alimony", "custody"}, Template: "legal_support.go.tmpl"},
	},
	workitem.CategoryHealth: {
		{ID: "bmi", Terms: []string{"bmi", "body mass"}, Template: "health_bmi.go.tmpl"},
		{ID: "calorie", Terms: []string{"calorie", "calories", "bmr", "tdee", "metabolic"}, Template: "health_calorie.go.tmpl"},
		{ID: "hydration", Terms: []string{"water", "hydration"}, Template: "health_hydration.go.tmpl"},
	},
	workitem.CategoryConstruction: {
		{ID: "slab", Terms: []string{"concrete", "slab", "footing", "cement"}, Template: "construction_slab.go.tmpl"},
		{ID: "paint", Terms: []string{"paint", "wall"}, Template: "construction_paint.go.tmpl"},
		{ID: "tile", Terms: []string{"tile", "floor", "flooring", "deck"}, Template: "construction_tile.go.tmpl"},
	},
	workitem.CategoryMath: {
		{ID: "percent", Terms: []string{"percent", "percentage"}, Template: "math_percent.go.tmpl"},
		{ID: "average", Terms: []string{"average", "mean"}, Template: "math_average.go.tmpl"},
		{ID: "ratio", Terms: []string{"ratio", "proportion"}, Template: "math_ratio.go.tmpl"},
	},
	workitem.CategoryLifestyle: {
		{ID: "tip", Terms: []string{"tip", "gratuity"}, Template: "lifestyle_tip.go.tmpl"},
		{ID: "fuel", Terms: []string{"fuel", "gas", "mileage", "trip"}, Template: "lifestyle_fuel.go.tmpl"},
	},
	workitem.CategoryUnknown: nil,
}

// Rules returns the ordered rule table for category, default last.
func Rules(category workitem.Category) ([]Rule, error) {
	table, ok := rules[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	out := append([]Rule(nil), table...)
	return append(out, defaultRule), nil
}

// Select returns the first rule of category matching name.
func Select(name string, category workitem.Category) (Rule, error) {
	table, err := Rules(category)
	if err != nil {
		return Rule{}, err
	}
	text := workitem.Normalize(name)
	for _, r := range table {
		if r.Match(text) {
			return r, nil
		}
	}
	return defaultRule, nil
}

// Generate returns calculator source for name in category. The name only
// selects a rule; it is never embedded in the output.
func Generate(name string, category workitem.Category) (string, error) {
	r, err := Select(name, category)
	if err != nil {
		return "", err
	}
	return r.Render(category)
}
