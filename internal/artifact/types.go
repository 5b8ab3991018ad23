// Package artifact writes the fixed file set that makes up one generated
// calculator package and records a checksummed manifest next to it. The set
// is complete on disk before anything else (the registrar, the verifier)
// looks at the directory.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ContentFile receives the accepted or fallback source verbatim.
const ContentFile = "calculator.go"

// ManifestFile lists every written file with its checksum.
const ManifestFile = "manifest.yaml"

// FileRef declares one member of the artifact set: the template rendered for
// it (empty for the verbatim content file) and its destination name.
type FileRef struct {
	ID          string
	Template    string
	Dest        string
	Description string
}

// Verbatim reports whether the file bypasses templating.
func (r FileRef) Verbatim() bool {
	return r.Template == ""
}

// Validate ensures the reference is well-formed.
func (r FileRef) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("artifact: id is required")
	}
	if r.Dest == "" || filepath.Base(r.Dest) != r.Dest {
		return fmt.Errorf("artifact: %s destination must be a bare file name", r.ID)
	}
	return nil
}

func register(ref FileRef) FileRef {
	files = append(files, ref)
	return ref
}

var files []FileRef

// validateFiles rejects malformed references and duplicate IDs or
// destinations.
func validateFiles(set []FileRef) error {
	ids := map[string]struct{}{}
	dests := map[string]struct{}{}
	for _, ref := range set {
		if err := ref.Validate(); err != nil {
			return err
		}
		if _, dup := ids[ref.ID]; dup {
			return fmt.Errorf("artifact: duplicate id %s", ref.ID)
		}
		if _, dup := dests[ref.Dest]; dup {
			return fmt.Errorf("artifact: duplicate destination %s", ref.Dest)
		}
		ids[ref.ID] = struct{}{}
		dests[ref.Dest] = struct{}{}
	}
	return nil
}

// Files returns the fixed artifact set in write order.
func Files() []FileRef {
	return append([]FileRef(nil), files...)
}

func newTemplateRef(id, dest, desc string) FileRef {
	return FileRef{ID: id, Template: dest + ".tmpl", Dest: dest, Description: desc}
}

// Canonical members of a calculator package.
var (
	Content         = register(FileRef{ID: "content", Dest: ContentFile, Description: "Calculate and Report entry points"})
	TestFile        = register(newTemplateRef("tests", "calculator_test.go", "package test suite"))
	Validation      = register(newTemplateRef("validation", "validation.go", "input validation entry point"))
	ValidationRules = register(newTemplateRef("validation-rules", "validation_rules.go", "reusable validation rules"))
	Types           = register(newTemplateRef("types", "types.go", "field and catalog metadata types"))
	Registration    = register(newTemplateRef("register", "register.go", "catalog Definition value"))
	Exports         = register(newTemplateRef("exports", "exports.go", "exported helpers used by the catalog"))
	Formulas        = register(newTemplateRef("formulas", "formulas.go", "shared numeric helpers"))
)

// Set describes the files produced for one item.
type Set struct {
	Dir      string
	Written  []string
	Skipped  []string
	Manifest Manifest
}

// State captures the readiness of one artifact file on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateInvalid State = "invalid"
	StateError   State = "error"
)

// CheckResult captures Check results for one file.
type CheckResult struct {
	Ref   FileRef
	Path  string
	State State
	Err   error
}

// Check inspects every member of the set in dir.
func Check(dir string) []CheckResult {
	results := make([]CheckResult, 0, len(files))
	for _, ref := range files {
		path := filepath.Join(dir, ref.Dest)
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			results = append(results, CheckResult{Ref: ref, Path: path, State: StateMissing})
		case err != nil:
			results = append(results, CheckResult{Ref: ref, Path: path, State: StateError, Err: err})
		case info.IsDir():
			results = append(results, CheckResult{Ref: ref, Path: path, State: StateInvalid, Err: fmt.Errorf("artifact: expected file got directory")})
		case info.Size() == 0:
			results = append(results, CheckResult{Ref: ref, Path: path, State: StateInvalid, Err: fmt.Errorf("artifact: %s is empty", ref.Dest)})
		default:
			results = append(results, CheckResult{Ref: ref, Path: path, State: StateReady})
		}
	}
	return results
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
