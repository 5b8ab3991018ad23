package workitem

import (
	"strings"
	"unicode"
)

// keywords are the terms at least one of which must appear in content
// generated for the category.
var keywords = map[Category][]string{
	CategoryFinance: {
		"payment", "principal", "interest", "loan", "mortgage", "savings",
		"investment", "balance", "deposit", "amortization", "compound", "annuity",
	},
	CategoryBusiness: {
		"revenue", "profit", "margin", "cost", "price", "sales", "break even",
		"markup", "payroll", "employee", "inventory", "roi",
	},
	CategoryLegal: {
		"legal", "fee", "fees", "statute", "court", "settlement", "damages",
		"contract", "filing", "attorney", "liability", "alimony", "probate",
	},
	CategoryHealth: {
		"bmi", "calorie", "calories", "weight", "height", "heart", "body",
		"dose", "dosage", "protein", "hydration", "pregnancy", "health",
	},
	CategoryConstruction: {
		"concrete", "square feet", "area", "material", "lumber", "paint",
		"tile", "roof", "drywall", "gravel", "brick", "volume", "waste",
	},
	CategoryMath: {
		"percentage", "percent", "ratio", "fraction", "average", "mean", "sum",
		"equation", "exponent", "factorial", "root", "number",
	},
	CategoryLifestyle: {
		"tip", "age", "date", "days", "hours", "sleep", "travel", "fuel",
		"recipe", "servings", "budget", "time",
	},
	CategoryUnknown: {
		"value", "values", "total", "result", "input", "inputs",
	},
}

// reserved is vocabulary specific enough to one category that its presence
// in another category's content signals cross-domain contamination.
var reserved = map[Category][]string{
	CategoryFinance:      {"mortgage", "amortization", "annuity", "escrow"},
	CategoryBusiness:     {"payroll", "ebitda", "markup", "wholesale"},
	CategoryLegal:        {"plaintiff", "defendant", "statute", "alimony", "probate", "attorney"},
	CategoryHealth:       {"bmi", "calorie", "calories", "blood pressure", "heart rate", "dosage", "pregnancy"},
	CategoryConstruction: {"drywall", "rebar", "lumber", "concrete", "mortar", "shingles"},
	CategoryMath:         {"factorial", "quadratic", "hypotenuse", "logarithm", "derivative"},
	CategoryLifestyle:    {"recipe", "sleep cycle", "horoscope", "zodiac"},
}

// Keywords returns the presence vocabulary of the category.
func (c Category) Keywords() []string {
	return append([]string(nil), keywords[c]...)
}

// Text is content normalized for whole-word term lookups: lowercase words
// separated by single spaces, camelCase split into words.
type Text string

// Normalize converts free-form source or prose into Text.
func Normalize(content string) Text {
	var b strings.Builder
	b.Grow(len(content) + 2)
	b.WriteByte(' ')
	var prev rune
	space := true
	for _, r := range content {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if unicode.IsUpper(r) && unicode.IsLower(prev) && !space {
				b.WriteByte(' ')
			}
			b.WriteRune(unicode.ToLower(r))
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
		prev = r
	}
	if !space {
		b.WriteByte(' ')
	}
	return Text(b.String())
}

// Has reports whether term occurs in t as a whole word or word sequence.
func (t Text) Has(term string) bool {
	needle := strings.TrimSpace(string(Normalize(term)))
	if needle == "" {
		return false
	}
	return strings.Contains(string(t), " "+needle+" ")
}

// HasPrefix reports whether any word in t starts with prefix.
func (t Text) HasPrefix(prefix string) bool {
	needle := strings.TrimSpace(string(Normalize(prefix)))
	if needle == "" {
		return false
	}
	return strings.Contains(string(t), " "+needle)
}

// FirstOf returns the first term present in t.
func (t Text) FirstOf(terms []string) (string, bool) {
	for _, term := range terms {
		if t.Has(term) {
			return term, true
		}
	}
	return "", false
}

// Contamination returns the first reserved term of a category other than c
// found in t. Terms that occur in name belong to the item and never count.
func (t Text) Contamination(c Category, name Text) (Category, string, bool) {
	for _, other := range Categories {
		if other == c {
			continue
		}
		for _, term := range reserved[other] {
			if t.Has(term) && !name.Has(term) {
				return other, term, true
			}
		}
	}
	return "", "", false
}

// ForeignTerms lists the reserved vocabulary of every category other than
// c, minus the terms that occur in name.
func ForeignTerms(c Category, name Text) []string {
	var out []string
	for _, other := range Categories {
		if other == c {
			continue
		}
		for _, term := range reserved[other] {
			if !name.Has(term) {
				out = append(out, term)
			}
		}
	}
	return out
}
