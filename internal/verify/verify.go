// Package verify re-reads a written artifact set from disk and checks the
// structural contract every calculator package must satisfy before it is
// marked complete.
package verify

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kingrea/calcforge/internal/artifact"
	"github.com/kingrea/calcforge/internal/validate"
	"github.com/kingrea/calcforge/internal/workitem"
)

// Names of the individual checks, reported in Failure.Check.
const (
	CheckFiles      = "files"
	CheckEntryPoint = "entry-point"
	CheckValidation = "validation-contract"
	CheckTests      = "test-suite"
	CheckTypes      = "types"
	CheckManifest   = "manifest"
	CheckInterpret  = "interpret"
)

// Failure reports the first check a directory did not pass.
type Failure struct {
	Check  string
	Reason string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("verify: %s: %s", f.Check, f.Reason)
}

func fail(check, format string, args ...any) *Failure {
	return &Failure{Check: check, Reason: fmt.Sprintf(format, args...)}
}

// Verifier runs the on-disk checks.
type Verifier struct {
	interpret bool
	timeout   time.Duration
}

// Option customizes a Verifier.
type Option func(*Verifier)

// WithInterpreter enables the interpreted smoke run of Calculate, bounded by
// timeout.
func WithInterpreter(timeout time.Duration) Option {
	return func(v *Verifier) {
		v.interpret = true
		if timeout > 0 {
			v.timeout = timeout
		}
	}
}

// New returns a verifier. The smoke run is off unless WithInterpreter is
// given.
func New(opts ...Option) *Verifier {
	v := &Verifier{timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks dir, the package written for item. The returned error is a
// *Failure for contract violations.
func (v *Verifier) Verify(dir string, item workitem.Item) error {
	for _, result := range artifact.Check(dir) {
		if result.State != artifact.StateReady {
			return fail(CheckFiles, "%s is %s", result.Ref.Dest, result.State)
		}
	}

	fset := token.NewFileSet()
	content, src, err := parseFile(fset, dir, artifact.ContentFile)
	if err != nil {
		return fail(CheckEntryPoint, "%v", err)
	}
	if err := entryPointOnTopic(fset, content, src, item.Category); err != nil {
		return err
	}

	for _, ref := range []artifact.FileRef{artifact.Validation, artifact.ValidationRules} {
		file, _, err := parseFile(fset, dir, ref.Dest)
		if err != nil {
			return fail(CheckValidation, "%v", err)
		}
		if err := validationContract(ref.Dest, file); err != nil {
			return err
		}
	}

	tests, _, err := parseFile(fset, dir, artifact.TestFile.Dest)
	if err != nil {
		return fail(CheckTests, "%v", err)
	}
	if err := testSuite(tests); err != nil {
		return err
	}

	types, _, err := parseFile(fset, dir, artifact.Types.Dest)
	if err != nil {
		return fail(CheckTypes, "%v", err)
	}
	if !declaresType(types) {
		return fail(CheckTypes, "%s declares no type", artifact.Types.Dest)
	}

	manifest, err := artifact.ReadManifest(dir)
	if err != nil {
		return fail(CheckManifest, "%v", err)
	}
	if err := manifest.VerifyChecksums(dir); err != nil {
		return fail(CheckManifest, "%v", err)
	}

	if v.interpret {
		if err := smokeRun(dir, v.timeout); err != nil {
			return fail(CheckInterpret, "%v", err)
		}
	}
	return nil
}

func parseFile(fset *token.FileSet, dir, name string) (*ast.File, []byte, error) {
	src, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, nil, err
	}
	file, err := parser.ParseFile(fset, name, src, parser.ParseComments)
	if err != nil {
		return nil, nil, err
	}
	return file, src, nil
}

// entryPointOnTopic requires a category keyword in the doc comment or body
// of Calculate itself, not just anywhere in the file.
func entryPointOnTopic(fset *token.FileSet, file *ast.File, src []byte, category workitem.Category) error {
	fn := validate.FindFunc(file, validate.CalculateFunc)
	if fn == nil || fn.Body == nil {
		return fail(CheckEntryPoint, "%s is not declared", validate.CalculateFunc)
	}
	start := fn.Pos()
	if fn.Doc != nil {
		start = fn.Doc.Pos()
	}
	text := workitem.Normalize(string(src[fset.Position(start).Offset:fset.Position(fn.End()).Offset]))
	if _, ok := text.FirstOf(category.Keywords()); !ok {
		return fail(CheckEntryPoint, "%s never mentions a %s keyword", validate.CalculateFunc, category)
	}
	return nil
}

// validationContract requires every Validate* function to accept the inputs
// of related calculators as a trailing variadic map parameter.
func validationContract(name string, file *ast.File) error {
	found := 0
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Validate") {
			continue
		}
		found++
		params := fn.Type.Params.List
		if len(params) == 0 {
			return fail(CheckValidation, "%s in %s takes no parameters", fn.Name.Name, name)
		}
		ellipsis, ok := params[len(params)-1].Type.(*ast.Ellipsis)
		if !ok {
			return fail(CheckValidation, "%s in %s has no variadic related-inputs parameter", fn.Name.Name, name)
		}
		if _, ok := ellipsis.Elt.(*ast.MapType); !ok {
			return fail(CheckValidation, "%s in %s must take ...map related inputs", fn.Name.Name, name)
		}
	}
	if found == 0 {
		return fail(CheckValidation, "%s declares no Validate function", name)
	}
	return nil
}

func testSuite(file *ast.File) error {
	imported := false
	for _, spec := range file.Imports {
		if spec.Path.Value == `"testing"` {
			imported = true
		}
	}
	if !imported {
		return fail(CheckTests, "%s does not import testing", artifact.TestFile.Dest)
	}
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if ok && fn.Recv == nil && strings.HasPrefix(fn.Name.Name, "Test") && takesTestingT(fn) {
			return nil
		}
	}
	return fail(CheckTests, "%s declares no TestXxx(t *testing.T)", artifact.TestFile.Dest)
}

func takesTestingT(fn *ast.FuncDecl) bool {
	params := fn.Type.Params.List
	if len(params) != 1 || len(params[0].Names) > 1 {
		return false
	}
	star, ok := params[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "testing" && sel.Sel.Name == "T"
}

func declaresType(file *ast.File) bool {
	for _, decl := range file.Decls {
		if gen, ok := decl.(*ast.GenDecl); ok && gen.Tok == token.TYPE && len(gen.Specs) > 0 {
			return true
		}
	}
	return false
}
