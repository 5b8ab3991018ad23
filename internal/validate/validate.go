// Package validate is the acceptability gate generated calculator source must
// pass before it is written to disk. It is pure: no I/O, no clock.
package validate

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"regexp"
	"strings"

	"golang.org/x/tools/go/ast/inspector"

	"github.com/kingrea/calcforge/internal/workitem"
)

// Entry points every calculator must declare.
const (
	CalculateFunc = "Calculate"
	ReportFunc    = "Report"
)

// Verdict is the outcome of one validation pass.
type Verdict struct {
	Valid  bool
	Reason string
}

func accept() Verdict {
	return Verdict{Valid: true}
}

func reject(format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// Err returns the verdict as an error, nil when valid.
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	return fmt.Errorf("validate: %s", v.Reason)
}

var packageClause = regexp.MustCompile(`(?m)^package [A-Za-z_][A-Za-z0-9_]*\s*$`)

// placeholderWords are matched as whole words, so identifiers such as
// totalToDonate do not trip them.
var placeholderWords = []string{
	"todo",
	"fixme",
	"not implemented",
	"placeholder",
	"your code here",
}

// placeholderMarkers are matched case-insensitively anywhere in the source.
var placeholderMarkers = []string{
	`panic("unimplemented`,
}

// entrySignatures are the parameter and result types each entry point must
// declare.
var entrySignatures = map[string]struct{ params, results []string }{
	CalculateFunc: {[]string{"map[string]float64"}, []string{"map[string]float64", "error"}},
	ReportFunc:    {[]string{"map[string]float64"}, []string{"string"}},
}

// nameStopWords never count as a significant token of an item name.
var nameStopWords = map[string]struct{}{
	"calculator": {}, "calc": {}, "estimator": {}, "tool": {},
	"the": {}, "and": {}, "for": {}, "with": {}, "your": {},
}

// Validate runs every check in order and returns the first failure.
func Validate(content, name string, category workitem.Category) Verdict {
	for _, entry := range []string{CalculateFunc, ReportFunc} {
		if !strings.Contains(content, "func "+entry+"(") {
			return reject("missing entry point %s", entry)
		}
	}

	if !packageClause.MatchString(content) {
		return reject("missing package clause")
	}
	file, err := parser.ParseFile(token.NewFileSet(), "calculator.go", content, parser.ParseComments)
	if err != nil {
		return reject("content does not parse: %v", err)
	}

	for _, entry := range []string{CalculateFunc, ReportFunc} {
		fn := FindFunc(file, entry)
		if fn == nil {
			return reject("missing entry point %s", entry)
		}
		if !hasSignature(fn, entrySignatures[entry].params, entrySignatures[entry].results) {
			return reject("%s has signature %s", entry, types.ExprString(fn.Type))
		}
	}

	text := workitem.Normalize(content)
	if marker, ok := text.FirstOf(placeholderWords); ok {
		return reject("contains placeholder marker %q", marker)
	}
	lower := strings.ToLower(content)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return reject("contains placeholder marker %q", marker)
		}
	}

	if _, ok := text.FirstOf(category.Keywords()); !ok {
		return reject("no %s keyword present", category)
	}
	if other, term, ok := text.Contamination(category, workitem.Normalize(name)); ok {
		return reject("%s content contains %s vocabulary %q", category, other, term)
	}

	calc := FindFunc(file, CalculateFunc)
	if calc.Body == nil {
		return reject("%s has no body", CalculateFunc)
	}
	if !computes(file, calc) {
		return reject("%s performs no arithmetic and calls no helper", CalculateFunc)
	}

	if !mentionsSubject(text, name, category) {
		return reject("content never refers to %q or its category", name)
	}
	return accept()
}

// FindFunc returns the top-level, receiver-less function called name.
func FindFunc(file *ast.File, name string) *ast.FuncDecl {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if ok && fn.Recv == nil && fn.Name.Name == name {
			return fn
		}
	}
	return nil
}

func hasSignature(fn *ast.FuncDecl, params, results []string) bool {
	return sameTypes(fn.Type.Params, params) && sameTypes(fn.Type.Results, results)
}

// sameTypes compares a field list, one entry per declared name, against want.
func sameTypes(fields *ast.FieldList, want []string) bool {
	var got []string
	if fields != nil {
		for _, field := range fields.List {
			typ := types.ExprString(field.Type)
			for n := max(1, len(field.Names)); n > 0; n-- {
				got = append(got, typ)
			}
		}
	}
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

var arithmeticOps = map[token.Token]struct{}{
	token.ADD: {}, token.SUB: {}, token.MUL: {}, token.QUO: {}, token.REM: {},
}

var arithmeticAssign = map[token.Token]struct{}{
	token.ADD_ASSIGN: {}, token.SUB_ASSIGN: {}, token.MUL_ASSIGN: {}, token.QUO_ASSIGN: {}, token.REM_ASSIGN: {},
}

// trivialCalls do not count as computation: builtins, basic conversions and
// error construction.
var trivialCalls = map[string]struct{}{
	"len": {}, "cap": {}, "make": {}, "new": {}, "append": {}, "copy": {}, "delete": {},
	"panic": {}, "recover": {}, "print": {}, "println": {}, "clear": {},
	"float64": {}, "float32": {}, "int": {}, "int64": {}, "int32": {}, "uint": {}, "string": {},
	"errors.New": {}, "fmt.Errorf": {}, "fmt.Sprintf": {}, "fmt.Sprint": {},
}

// computes reports whether fn's body holds an arithmetic expression, an
// arithmetic op-assign or a call to a non-trivial helper.
func computes(file *ast.File, fn *ast.FuncDecl) bool {
	found := false
	ins := inspector.New([]*ast.File{file})
	filter := []ast.Node{
		(*ast.BinaryExpr)(nil),
		(*ast.AssignStmt)(nil),
		(*ast.CallExpr)(nil),
	}
	ins.WithStack(filter, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push || found || len(stack) < 2 || stack[1] != fn {
			return !found
		}
		switch node := n.(type) {
		case *ast.BinaryExpr:
			_, found = arithmeticOps[node.Op]
		case *ast.AssignStmt:
			_, found = arithmeticAssign[node.Tok]
		case *ast.CallExpr:
			_, trivial := trivialCalls[callName(node.Fun)]
			found = !trivial
		}
		return !found
	})
	return found
}

func callName(fun ast.Expr) string {
	switch f := fun.(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		if pkg, ok := f.X.(*ast.Ident); ok {
			return pkg.Name + "." + f.Sel.Name
		}
		return f.Sel.Name
	case *ast.ParenExpr:
		return callName(f.X)
	}
	return ""
}

func mentionsSubject(text workitem.Text, name string, category workitem.Category) bool {
	for _, word := range significantTokens(name) {
		if text.Has(word) {
			return true
		}
	}
	if text.Has(string(category)) {
		return true
	}
	return text.Has("calculate") && (text.Has("result") || text.Has("results"))
}

func significantTokens(name string) []string {
	var out []string
	for _, word := range strings.Fields(string(workitem.Normalize(name))) {
		if len(word) < 3 {
			continue
		}
		if _, stop := nameStopWords[word]; stop {
			continue
		}
		out = append(out, word)
	}
	return out
}
