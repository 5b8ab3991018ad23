package backlog

import "github.com/kingrea/calcforge/internal/workitem"

type rule struct {
	term     string
	category workitem.Category
}

// primaryRules are checked in order against whole words of the item name;
// the first hit decides the category.
var primaryRules = []rule{
	{"mortgage", workitem.CategoryFinance},
	{"loan", workitem.CategoryFinance},
	{"interest", workitem.CategoryFinance},
	{"amortization", workitem.CategoryFinance},
	{"savings", workitem.CategoryFinance},
	{"retirement", workitem.CategoryFinance},
	{"investment", workitem.CategoryFinance},
	{"apr", workitem.CategoryFinance},
	{"annuity", workitem.CategoryFinance},
	{"credit card", workitem.CategoryFinance},
	{"bmi", workitem.CategoryHealth},
	{"calorie", workitem.CategoryHealth},
	{"calories", workitem.CategoryHealth},
	{"body fat", workitem.CategoryHealth},
	{"heart rate", workitem.CategoryHealth},
	{"pregnancy", workitem.CategoryHealth},
	{"due date", workitem.CategoryHealth},
	{"dosage", workitem.CategoryHealth},
	{"macro", workitem.CategoryHealth},
	{"profit", workitem.CategoryBusiness},
	{"margin", workitem.CategoryBusiness},
	{"markup", workitem.CategoryBusiness},
	{"break even", workitem.CategoryBusiness},
	{"roi", workitem.CategoryBusiness},
	{"payroll", workitem.CategoryBusiness},
	{"revenue", workitem.CategoryBusiness},
	{"inventory", workitem.CategoryBusiness},
	{"settlement", workitem.CategoryLegal},
	{"alimony", workitem.CategoryLegal},
	{"child support", workitem.CategoryLegal},
	{"court", workitem.CategoryLegal},
	{"statute", workitem.CategoryLegal},
	{"legal", workitem.CategoryLegal},
	{"probate", workitem.CategoryLegal},
	{"concrete", workitem.CategoryConstruction},
	{"drywall", workitem.CategoryConstruction},
	{"roofing", workitem.CategoryConstruction},
	{"lumber", workitem.CategoryConstruction},
	{"paint", workitem.CategoryConstruction},
	{"tile", workitem.CategoryConstruction},
	{"gravel", workitem.CategoryConstruction},
	{"brick", workitem.CategoryConstruction},
	{"percentage", workitem.CategoryMath},
	{"percent", workitem.CategoryMath},
	{"fraction", workitem.CategoryMath},
	{"ratio", workitem.CategoryMath},
	{"average", workitem.CategoryMath},
	{"factorial", workitem.CategoryMath},
	{"quadratic", workitem.CategoryMath},
	{"exponent", workitem.CategoryMath},
	{"tip", workitem.CategoryLifestyle},
	{"age", workitem.CategoryLifestyle},
	{"sleep", workitem.CategoryLifestyle},
	{"fuel", workitem.CategoryLifestyle},
	{"recipe", workitem.CategoryLifestyle},
	{"travel", workitem.CategoryLifestyle},
}

// broadRules run only when no primary rule matched. They use word prefixes
// so plurals and derived forms still land somewhere sensible.
var broadRules = []rule{
	{"pay", workitem.CategoryFinance},
	{"tax", workitem.CategoryFinance},
	{"debt", workitem.CategoryFinance},
	{"invest", workitem.CategoryFinance},
	{"sal", workitem.CategoryBusiness},
	{"cost", workitem.CategoryBusiness},
	{"price", workitem.CategoryBusiness},
	{"busin", workitem.CategoryBusiness},
	{"lawy", workitem.CategoryLegal},
	{"attorn", workitem.CategoryLegal},
	{"contract", workitem.CategoryLegal},
	{"fit", workitem.CategoryHealth},
	{"weight", workitem.CategoryHealth},
	{"diet", workitem.CategoryHealth},
	{"health", workitem.CategoryHealth},
	{"build", workitem.CategoryConstruction},
	{"roof", workitem.CategoryConstruction},
	{"floor", workitem.CategoryConstruction},
	{"deck", workitem.CategoryConstruction},
	{"square", workitem.CategoryMath},
	{"equat", workitem.CategoryMath},
	{"number", workitem.CategoryMath},
	{"date", workitem.CategoryLifestyle},
	{"time", workitem.CategoryLifestyle},
	{"day", workitem.CategoryLifestyle},
}

// FallbackCategory is assigned when neither sweep matches.
const FallbackCategory = workitem.CategoryUnknown

// Classify assigns a category to a calculator name.
func Classify(name string) workitem.Category {
	text := workitem.Normalize(name)
	for _, r := range primaryRules {
		if text.Has(r.term) {
			return r.category
		}
	}
	for _, r := range broadRules {
		if text.HasPrefix(r.term) {
			return r.category
		}
	}
	return FallbackCategory
}
