package catalog

import (
	"errors"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/calcforge/internal/safety"
	"github.com/kingrea/calcforge/internal/workitem"
)

const prefix = "example.com/app/calculators"

func newTestRegistrar(t *testing.T) (*Registrar, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "calculators")
	index := filepath.Join(root, "registry.go")
	guard, err := safety.NewGuard(safety.DirRoot(root), safety.FileRoot(index))
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRegistrar(index, prefix, "", guard)
	if err != nil {
		t.Fatalf("new registrar: %v", err)
	}
	return r, root
}

func readIndex(t *testing.T, r *Registrar) string {
	t.Helper()
	data, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRegisterCreatesCatalogFromSkeleton(t *testing.T) {
	r, root := newTestRegistrar(t)
	item := workitem.New("Mortgage Payment Calculator", workitem.CategoryFinance)

	changed, err := r.Register(item, filepath.Join(root, item.Slug()))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !changed {
		t.Fatalf("first registration must change the catalog")
	}
	text := readIndex(t, r)
	for _, want := range []string{
		"package calculators",
		`mortgagepaymentcalculator "example.com/app/calculators/mortgage-payment-calculator"`,
		"\t// finance\n\tr.Add(mortgagepaymentcalculator.Definition)",
		"func registerAll(r *Registry) {",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("catalog missing %q:\n%s", want, text)
		}
	}
	if _, err := parser.ParseFile(token.NewFileSet(), "registry.go", text, 0); err != nil {
		t.Fatalf("catalog is not valid Go: %v\n%s", err, text)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	r, root := newTestRegistrar(t)
	item := workitem.New("Tip Splitter", workitem.CategoryLifestyle)
	dir := filepath.Join(root, item.Slug())

	if _, err := r.Register(item, dir); err != nil {
		t.Fatal(err)
	}
	once := readIndex(t, r)
	changed, err := r.Register(item, dir)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatalf("second registration reported a change")
	}
	if twice := readIndex(t, r); twice != once {
		t.Fatalf("registering twice differs from once:\n%s\n---\n%s", once, twice)
	}
	if n := strings.Count(once, "r.Add(tipsplitter.Definition)"); n != 1 {
		t.Fatalf("registration appears %d times", n)
	}
}

func TestRegisterGroupsByCategory(t *testing.T) {
	r, root := newTestRegistrar(t)
	items := []workitem.Item{
		workitem.New("Loan Payoff", workitem.CategoryFinance),
		workitem.New("BMI Calculator", workitem.CategoryHealth),
		workitem.New("Savings Goal", workitem.CategoryFinance),
	}
	for _, item := range items {
		if _, err := r.Register(item, filepath.Join(root, item.Slug())); err != nil {
			t.Fatal(err)
		}
	}
	idx, err := r.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Blocks) != 2 {
		t.Fatalf("expected two category blocks, got %+v", idx.Blocks)
	}
	finance := idx.Blocks[0]
	if finance.Category != "finance" || len(finance.Registrations) != 2 {
		t.Fatalf("unexpected finance block %+v", finance)
	}
	if finance.Registrations[1] != "r.Add(savingsgoal.Definition)" {
		t.Fatalf("new registrations append to their block: %+v", finance)
	}
	if idx.Blocks[1].Category != "health" {
		t.Fatalf("new category gets a new block: %+v", idx.Blocks[1])
	}
}

func TestAddImportRenamesCollidingAlias(t *testing.T) {
	idx := Skeleton("calculators", DefaultRegisterFunc)
	first, added := idx.AddImport("tip", prefix+"/tip")
	if !added || first != "tip" {
		t.Fatalf("unexpected first import %s %v", first, added)
	}
	second, added := idx.AddImport("tip", prefix+"/other/tip")
	if !added || second != "tip2" {
		t.Fatalf("colliding alias should be suffixed, got %s", second)
	}
	again, added := idx.AddImport("anything", prefix+"/tip")
	if added || again != "tip" {
		t.Fatalf("existing path should reuse its alias, got %s %v", again, added)
	}
}

func TestParseRenderRoundTrip(t *testing.T) {
	idx := Skeleton("calculators", DefaultRegisterFunc)
	idx.AddImport("tip", prefix+"/tip")
	idx.AddRegistration("lifestyle", RegistrationFor("tip"))
	rendered := idx.Render()

	parsed, err := Parse(rendered, DefaultRegisterFunc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := parsed.Render(); got != rendered {
		t.Fatalf("round trip changed text:\n%s\n---\n%s", rendered, got)
	}
	if imp, ok := parsed.ImportFor(prefix + "/tip"); !ok || imp.Alias != "tip" {
		t.Fatalf("import lost: %+v", parsed.Imports)
	}
}

func TestParsePreservesHandWrittenText(t *testing.T) {
	text := `package calculators

import (
	"fmt"
	tip "example.com/app/calculators/tip"
)

// Describe is kept as written.
func Describe() string { return fmt.Sprint("calculators") }

func registerAll(r *Registry) {
	// lifestyle
	r.Add(tip.Definition)
}

type Registry struct{}

func (r *Registry) Add(any) {}
`
	idx, err := Parse(text, DefaultRegisterFunc)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Imports) != 2 || idx.Imports[0].Alias != "" {
		t.Fatalf("unexpected imports %+v", idx.Imports)
	}
	if got := idx.Render(); got != text {
		t.Fatalf("unchanged index should render identically:\n%s", got)
	}
	idx.AddImport("bmi", prefix+"/bmi")
	idx.AddRegistration("health", RegistrationFor("bmi"))
	if err := idx.Check(); err != nil {
		t.Fatalf("extended index invalid: %v", err)
	}
	out := idx.Render()
	if !strings.Contains(out, "func Describe() string") || !strings.Contains(out, "func (r *Registry) Add(any) {}") {
		t.Fatalf("text outside the managed regions was lost:\n%s", out)
	}
}

func TestParseRejectsMissingRegisterFunc(t *testing.T) {
	if _, err := Parse("package calculators\n", DefaultRegisterFunc); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := Parse("package calculators\n\nfunc registerAll(r *Registry) {\n", DefaultRegisterFunc); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for unclosed func, got %v", err)
	}
}

func TestRegisterRejectsMalformedFile(t *testing.T) {
	r, root := newTestRegistrar(t)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(r.Path(), []byte("package calculators\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	item := workitem.New("Tip", workitem.CategoryLifestyle)
	if _, err := r.Register(item, filepath.Join(root, item.Slug())); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if text := readIndex(t, r); text != "package calculators\n" {
		t.Fatalf("malformed file must be left alone, got:\n%s", text)
	}
}

func TestRegisterRefusesIndexOutsideGuard(t *testing.T) {
	base := t.TempDir()
	guard, err := safety.NewGuard(safety.DirRoot(filepath.Join(base, "calculators")))
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRegistrar(filepath.Join(base, "registry.go"), prefix, "", guard)
	if err != nil {
		t.Fatal(err)
	}
	item := workitem.New("Tip", workitem.CategoryLifestyle)
	_, err = r.Register(item, filepath.Join(base, "calculators", item.Slug()))
	if !safety.IsViolation(err) {
		t.Fatalf("expected a safety violation, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(base, "registry.go")); !os.IsNotExist(statErr) {
		t.Fatalf("index must not be written outside the guard")
	}
}

func TestRegisterWritesIndexOutsideArtifactsRoot(t *testing.T) {
	base := t.TempDir()
	index := filepath.Join(base, "app", "registry.go")
	guard, err := safety.NewGuard(safety.DirRoot(filepath.Join(base, "calculators")), safety.FileRoot(index))
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRegistrar(index, prefix, "", guard)
	if err != nil {
		t.Fatal(err)
	}
	item := workitem.New("Tip", workitem.CategoryLifestyle)
	if _, err := r.Register(item, filepath.Join(base, "calculators", item.Slug())); err != nil {
		t.Fatalf("register next to a file root: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(index))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "registry.go" {
		t.Fatalf("expected only registry.go beside the index, got %v", entries)
	}
}

func TestEnsureWritesSkeletonOnce(t *testing.T) {
	r, _ := newTestRegistrar(t)
	created, err := r.Ensure()
	if err != nil || !created {
		t.Fatalf("ensure: %v %v", created, err)
	}
	text := readIndex(t, r)
	if strings.Contains(text, "import (") {
		t.Fatalf("empty catalog should have no import block:\n%s", text)
	}
	if _, err := parser.ParseFile(token.NewFileSet(), "registry.go", text, 0); err != nil {
		t.Fatalf("skeleton is not valid Go: %v", err)
	}
	created, err = r.Ensure()
	if err != nil || created {
		t.Fatalf("second ensure should be a no-op: %v %v", created, err)
	}
}
