package generation

import (
	"strings"
	"testing"

	"github.com/kingrea/calcforge/internal/validate"
	"github.com/kingrea/calcforge/internal/workitem"
)

func TestLibraryCoversEveryCategory(t *testing.T) {
	lib, err := LoadLibrary()
	if err != nil {
		t.Fatalf("load library: %v", err)
	}
	for _, category := range workitem.Categories {
		p := lib.Prompt(workitem.New("Sample", category))
		if !strings.Contains(p.User, strings.TrimSpace(lib.Categories[string(category)])) {
			t.Fatalf("%s prompt is missing its guidance", category)
		}
	}
}

func TestPromptListsOtherDomainsVocabulary(t *testing.T) {
	lib, err := LoadLibrary()
	if err != nil {
		t.Fatal(err)
	}
	p := lib.Prompt(workitem.New("BMI Calculator", workitem.CategoryHealth))
	if !strings.Contains(p.User, "mortgage") {
		t.Fatalf("health prompt should warn against finance vocabulary")
	}
	if strings.Contains(p.User, "Never use these words from other domains: bmi") || strings.Contains(p.User, ", bmi,") {
		t.Fatalf("health prompt must not forbid its own vocabulary")
	}
}

func TestLibraryExamplePassesValidation(t *testing.T) {
	lib, err := LoadLibrary()
	if err != nil {
		t.Fatal(err)
	}
	if v := validate.Validate(lib.Example, "Tip Calculator", workitem.CategoryLifestyle); !v.Valid {
		t.Fatalf("structural example is not acceptable itself: %s", v.Reason)
	}
}

func TestParseLibraryRejectsMissingGuidance(t *testing.T) {
	data := []byte("system: hi\nexample: package calculator\ncategories:\n  finance: money\n")
	if _, err := parseLibrary(data); err == nil {
		t.Fatalf("expected error for incomplete guidance")
	}
}

func TestPromptKeepsItemNameVocabulary(t *testing.T) {
	lib, err := LoadLibrary()
	if err != nil {
		t.Fatal(err)
	}
	p := lib.Prompt(workitem.New("Recipe Calorie Calculator", workitem.CategoryHealth))
	if !strings.Contains(p.User, "zodiac") {
		t.Fatalf("health prompt should still warn against lifestyle vocabulary")
	}
	if strings.Contains(strings.ToLower(p.User), "recipe,") || strings.Contains(p.User, ", recipe.") {
		t.Fatalf("prompt must not forbid a word of the item name:\n%s", p.User)
	}
}
