package workitem

import "testing"

func TestSlugAndIdent(t *testing.T) {
	cases := []struct {
		name  string
		slug  string
		ident string
	}{
		{"Mortgage Payment Calculator", "mortgage-payment-calculator", "mortgagepaymentcalculator"},
		{"  401(k) Match  ", "401-k-match", "calc401kmatch"},
		{"Café Tip Splitter", "caf-tip-splitter", "caftipsplitter"},
		{"Go", "go", "gocalc"},
		{"!!!", "item", "item"},
	}
	for _, tc := range cases {
		item := New(tc.name, CategoryFinance)
		if got := item.Slug(); got != tc.slug {
			t.Fatalf("Slug(%q) = %q, want %q", tc.name, got, tc.slug)
		}
		if got := item.Ident(); got != tc.ident {
			t.Fatalf("Ident(%q) = %q, want %q", tc.name, got, tc.ident)
		}
	}
}

func TestPriorityFollowsCategoryTable(t *testing.T) {
	for i, c := range Categories {
		if c.Priority() != i+1 {
			t.Fatalf("%s priority = %d, want %d", c, c.Priority(), i+1)
		}
	}
	if Category("astrology").Priority() <= CategoryUnknown.Priority() {
		t.Fatalf("undeclared category must sort last")
	}
	if New("x", CategoryHealth).Priority != CategoryHealth.Priority() {
		t.Fatalf("New must derive priority from category")
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Finance ")
	if err != nil || c != CategoryFinance {
		t.Fatalf("ParseCategory = %q, %v", c, err)
	}
	if _, err := ParseCategory("astrology"); err == nil {
		t.Fatalf("expected error for undeclared category")
	}
}

func TestNormalizeMatchesWholeWords(t *testing.T) {
	text := Normalize(`func monthlyPayment(in map[string]float64) { bmiScore := in["heart_rate"] }`)
	for _, term := range []string{"payment", "monthly", "bmi", "heart rate"} {
		if !text.Has(term) {
			t.Fatalf("expected %q in %q", term, text)
		}
	}
	for _, term := range []string{"pay", "rate limit", "score card"} {
		if text.Has(term) {
			t.Fatalf("did not expect %q in %q", term, text)
		}
	}
}

func TestContaminationIsSymmetric(t *testing.T) {
	health := Normalize("compute the bmi from weight and height")
	if other, term, ok := health.Contamination(CategoryFinance, ""); !ok || other != CategoryHealth || term != "bmi" {
		t.Fatalf("finance content with health vocabulary: got %s %q %v", other, term, ok)
	}
	finance := Normalize("monthly mortgage payment")
	if other, _, ok := finance.Contamination(CategoryHealth, ""); !ok || other != CategoryFinance {
		t.Fatalf("health content with finance vocabulary must be contaminated")
	}
	if _, _, ok := finance.Contamination(CategoryFinance, ""); ok {
		t.Fatalf("own vocabulary is not contamination")
	}
}

func TestContaminationExemptsItemName(t *testing.T) {
	content := Normalize("scale the recipe servings and sum the calories")
	if _, term, ok := content.Contamination(CategoryHealth, Normalize("Recipe Calorie Calculator")); ok {
		t.Fatalf("term %q comes from the item name and must not count", term)
	}
	if _, term, ok := content.Contamination(CategoryHealth, Normalize("Calorie Counter")); !ok || term != "recipe" {
		t.Fatalf("recipe outside the item name is contamination, got %q %v", term, ok)
	}
	for _, term := range ForeignTerms(CategoryHealth, Normalize("Recipe Calorie Calculator")) {
		if term == "recipe" {
			t.Fatalf("foreign terms must skip words of the item name")
		}
	}
}

func TestMonthAbbreviationsAreNotFinanceVocabulary(t *testing.T) {
	content := Normalize(`months := []string{"Jan", "Feb", "Mar", "Apr", "May"}`)
	if other, term, ok := content.Contamination(CategoryLifestyle, Normalize("Date Difference Calculator")); ok {
		t.Fatalf("month names flagged as %s vocabulary %q", other, term)
	}
}
