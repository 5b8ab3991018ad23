// Package catalog maintains the central Go file that imports and registers
// every generated calculator. The file is parsed into an Index, changed as a
// set of imports and registrations, and rendered back to text only when
// something was added.
package catalog

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// ErrMalformed indicates the catalog file lacks the expected structure.
var ErrMalformed = errors.New("catalog: malformed index")

// Import is one aliased import of a generated package.
type Import struct {
	Alias string
	Path  string
}

// Block groups the registrations of one category inside the register
// function.
type Block struct {
	Category      string
	Registrations []string
}

// Index is the parsed catalog file. Text outside the import block and the
// register function body is carried through unchanged.
type Index struct {
	Imports []Import
	Blocks  []Block

	funcName string
	head     []string
	middle   []string
	tail     []string
	funcLine string
}

// Skeleton returns an empty index for package pkg with a register function
// called funcName.
func Skeleton(pkg, funcName string) *Index {
	head := []string{
		"// Code generated by calcforge. Registrations below are maintained automatically.",
		"",
		"package " + pkg,
		"",
	}
	middle := []string{
		"",
		"// Calculator is implemented by the Definition of every generated package.",
		"type Calculator interface {",
		"\tID() string",
		"\tGroup() string",
		"\tRun(in map[string]float64) (map[string]float64, error)",
		"}",
		"",
		"// Registry holds registered calculators in registration order.",
		"type Registry struct {",
		"\tbyID  map[string]Calculator",
		"\torder []Calculator",
		"}",
		"",
		"// New returns a registry holding every generated calculator.",
		"func New() *Registry {",
		"\tr := &Registry{byID: map[string]Calculator{}}",
		"\t" + funcName + "(r)",
		"\treturn r",
		"}",
		"",
		"// Add registers c. A second calculator with the same ID is ignored.",
		"func (r *Registry) Add(c Calculator) {",
		"\tif _, ok := r.byID[c.ID()]; ok {",
		"\t\treturn",
		"\t}",
		"\tr.byID[c.ID()] = c",
		"\tr.order = append(r.order, c)",
		"}",
		"",
		"// Get returns the calculator registered under id.",
		"func (r *Registry) Get(id string) (Calculator, bool) {",
		"\tc, ok := r.byID[id]",
		"\treturn c, ok",
		"}",
		"",
		"// All returns every calculator in registration order.",
		"func (r *Registry) All() []Calculator {",
		"\treturn append([]Calculator(nil), r.order...)",
		"}",
		"",
	}
	return &Index{
		funcName: funcName,
		head:     head,
		middle:   middle,
		tail:     []string{""},
		funcLine: registerFuncLine(funcName),
	}
}

func registerFuncLine(funcName string) string {
	return "func " + funcName + "(r *Registry) {"
}

// Parse reads catalog text. The register function must exist; the import
// block may be absent.
func Parse(text, funcName string) (*Index, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	idx := &Index{funcName: funcName}

	funcStart := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "func "+funcName+"(") {
			funcStart = i
			break
		}
	}
	if funcStart < 0 {
		return nil, fmt.Errorf("%w: no %s function", ErrMalformed, funcName)
	}
	funcEnd := -1
	for i := funcStart + 1; i < len(lines); i++ {
		if lines[i] == "}" {
			funcEnd = i
			break
		}
	}
	if funcEnd < 0 {
		return nil, fmt.Errorf("%w: %s is not closed", ErrMalformed, funcName)
	}

	importStart, importEnd := -1, -1
	for i := 0; i < funcStart; i++ {
		if strings.TrimSpace(lines[i]) == "import (" {
			importStart = i
			break
		}
	}
	if importStart >= 0 {
		for i := importStart + 1; i < funcStart; i++ {
			if strings.TrimSpace(lines[i]) == ")" {
				importEnd = i
				break
			}
		}
		if importEnd < 0 {
			return nil, fmt.Errorf("%w: import block is not closed", ErrMalformed)
		}
		for _, line := range lines[importStart+1 : importEnd] {
			imp, ok, err := parseImport(line)
			if err != nil {
				return nil, err
			}
			if ok {
				idx.Imports = append(idx.Imports, imp)
			}
		}
		idx.head = append(idx.head, lines[:importStart]...)
		idx.middle = append(idx.middle, lines[importEnd+1:funcStart]...)
	} else {
		split := packageLine(lines[:funcStart]) + 1
		idx.head = append(idx.head, lines[:split]...)
		idx.middle = append(idx.middle, lines[split:funcStart]...)
	}

	idx.funcLine = lines[funcStart]
	idx.Blocks = parseBlocks(lines[funcStart+1 : funcEnd])
	idx.tail = append(idx.tail, lines[funcEnd+1:]...)
	return idx, nil
}

func packageLine(lines []string) int {
	for i, line := range lines {
		if strings.HasPrefix(line, "package ") {
			return i
		}
	}
	return -1
}

func parseImport(line string) (Import, bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "//") {
		return Import{}, false, nil
	}
	alias := ""
	quoted := trimmed
	if i := strings.IndexByte(trimmed, ' '); i > 0 && !strings.HasPrefix(trimmed, `"`) {
		alias = trimmed[:i]
		quoted = strings.TrimSpace(trimmed[i+1:])
	}
	path, err := strconv.Unquote(quoted)
	if err != nil {
		return Import{}, false, fmt.Errorf("%w: import %q: %v", ErrMalformed, trimmed, err)
	}
	return Import{Alias: alias, Path: path}, true, nil
}

func parseBlocks(body []string) []Block {
	var blocks []Block
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "//"):
			blocks = append(blocks, Block{Category: strings.TrimSpace(strings.TrimPrefix(trimmed, "//"))})
		default:
			if len(blocks) == 0 {
				blocks = append(blocks, Block{})
			}
			last := &blocks[len(blocks)-1]
			last.Registrations = append(last.Registrations, trimmed)
		}
	}
	return blocks
}

// Render returns the canonical text of the index.
func (idx *Index) Render() string {
	var b strings.Builder
	writeLines(&b, idx.head)
	middle := idx.middle
	headBlank := len(idx.head) > 0 && idx.head[len(idx.head)-1] == ""
	middleBlank := len(middle) > 0 && middle[0] == ""
	if len(idx.Imports) > 0 {
		if !headBlank {
			b.WriteString("\n")
		}
		b.WriteString("import (\n")
		for _, imp := range idx.Imports {
			if imp.Alias != "" {
				fmt.Fprintf(&b, "\t%s %s\n", imp.Alias, strconv.Quote(imp.Path))
			} else {
				fmt.Fprintf(&b, "\t%s\n", strconv.Quote(imp.Path))
			}
		}
		b.WriteString(")\n")
		if !middleBlank {
			b.WriteString("\n")
		}
	} else if headBlank && middleBlank {
		middle = middle[1:]
	}
	writeLines(&b, middle)
	b.WriteString(idx.funcLine + "\n")
	for i, block := range idx.Blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		if block.Category != "" {
			b.WriteString("\t// " + block.Category + "\n")
		}
		for _, stmt := range block.Registrations {
			b.WriteString("\t" + stmt + "\n")
		}
	}
	b.WriteString("}")
	for _, line := range idx.tail {
		b.WriteString("\n" + line)
	}
	return b.String()
}

func writeLines(b *strings.Builder, lines []string) {
	for _, line := range lines {
		b.WriteString(line + "\n")
	}
}

// Check parses the rendered index as Go source.
func (idx *Index) Check() error {
	if _, err := parser.ParseFile(token.NewFileSet(), "registry.go", idx.Render(), parser.SkipObjectResolution); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// ImportFor returns the import of path, if present.
func (idx *Index) ImportFor(path string) (Import, bool) {
	for _, imp := range idx.Imports {
		if imp.Path == path {
			return imp, true
		}
	}
	return Import{}, false
}

// HasRegistration reports whether stmt appears in any block.
func (idx *Index) HasRegistration(stmt string) bool {
	for _, block := range idx.Blocks {
		for _, existing := range block.Registrations {
			if existing == stmt {
				return true
			}
		}
	}
	return false
}

// AddImport inserts path under alias unless it is already imported. It
// returns the alias in use and whether the index changed. A taken alias is
// suffixed with a number.
func (idx *Index) AddImport(alias, path string) (string, bool) {
	if existing, ok := idx.ImportFor(path); ok {
		return existing.Alias, false
	}
	candidate := alias
	for n := 2; idx.aliasTaken(candidate); n++ {
		candidate = alias + strconv.Itoa(n)
	}
	idx.Imports = append(idx.Imports, Import{Alias: candidate, Path: path})
	return candidate, true
}

func (idx *Index) aliasTaken(alias string) bool {
	for _, imp := range idx.Imports {
		if imp.Alias == alias {
			return true
		}
	}
	return false
}

// AddRegistration inserts stmt into the category block, appending a new
// block when the category has none. It reports whether the index changed.
func (idx *Index) AddRegistration(category, stmt string) bool {
	if idx.HasRegistration(stmt) {
		return false
	}
	for i := range idx.Blocks {
		if idx.Blocks[i].Category == category {
			idx.Blocks[i].Registrations = append(idx.Blocks[i].Registrations, stmt)
			return true
		}
	}
	idx.Blocks = append(idx.Blocks, Block{Category: category, Registrations: []string{stmt}})
	return true
}

// RegistrationFor returns the statement that registers the package imported
// as alias.
func RegistrationFor(alias string) string {
	return "r.Add(" + alias + ".Definition)"
}
