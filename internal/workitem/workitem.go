// Package workitem defines the unit of work the pipeline processes: one
// pending calculator named in the checklist, classified into a domain
// category.
package workitem

import (
	"fmt"
	"go/token"
	"strings"
	"unicode"
)

// Category is the domain bucket a calculator belongs to.
type Category string

const (
	CategoryFinance      Category = "finance"
	CategoryBusiness     Category = "business"
	CategoryLegal        Category = "legal"
	CategoryHealth       Category = "health"
	CategoryConstruction Category = "construction"
	CategoryMath         Category = "math"
	CategoryLifestyle    Category = "lifestyle"
	CategoryUnknown      Category = "unknown"
)

// Categories lists every declared category in priority order.
var Categories = []Category{
	CategoryFinance,
	CategoryBusiness,
	CategoryHealth,
	CategoryMath,
	CategoryConstruction,
	CategoryLegal,
	CategoryLifestyle,
	CategoryUnknown,
}

var priorities = map[Category]int{
	CategoryFinance:      1,
	CategoryBusiness:     2,
	CategoryHealth:       3,
	CategoryMath:         4,
	CategoryConstruction: 5,
	CategoryLegal:        6,
	CategoryLifestyle:    7,
	CategoryUnknown:      8,
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	_, ok := priorities[c]
	return ok
}

// Priority returns the processing rank of the category; lower runs first.
// Undeclared categories sort after everything else.
func (c Category) Priority() int {
	if p, ok := priorities[c]; ok {
		return p
	}
	return len(priorities) + 1
}

// ParseCategory converts user input into a declared category.
func ParseCategory(value string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(value)))
	if !c.Valid() {
		return "", fmt.Errorf("workitem: unknown category %q", value)
	}
	return c, nil
}

// Item is one pending calculator. Items are immutable after parsing and
// unique by Name.
type Item struct {
	Name     string
	Category Category
	Priority int
}

// New builds an item with the priority derived from its category.
func New(name string, category Category) Item {
	return Item{
		Name:     strings.TrimSpace(name),
		Category: category,
		Priority: category.Priority(),
	}
}

// Slug returns the lowercase hyphenated directory name for the item.
func (i Item) Slug() string {
	return Slugify(i.Name)
}

// Ident returns a Go identifier derived from the slug, used as the import
// alias in the catalog index.
func (i Item) Ident() string {
	return identFromSlug(i.Slug())
}

// Slugify lowercases name and joins its alphanumeric runs with hyphens.
func Slugify(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	if b.Len() == 0 {
		return "item"
	}
	return b.String()
}

// Identifier returns a Go identifier derived from an arbitrary name.
func Identifier(name string) string {
	return identFromSlug(Slugify(name))
}

func identFromSlug(slug string) string {
	ident := strings.ReplaceAll(slug, "-", "")
	if ident == "" {
		ident = "item"
	}
	if ident[0] >= '0' && ident[0] <= '9' {
		ident = "calc" + ident
	}
	if token.IsKeyword(ident) {
		ident += "calc"
	}
	return ident
}
