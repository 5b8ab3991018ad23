package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingrea/calcforge/internal/fsx"
	"github.com/kingrea/calcforge/internal/safety"
	"github.com/kingrea/calcforge/internal/workitem"
)

// DefaultRegisterFunc is used when no register function name is configured.
const DefaultRegisterFunc = "registerAll"

// Registrar adds generated packages to the catalog file on disk.
type Registrar struct {
	path     string
	prefix   string
	funcName string
	guard    safety.Checker
}

// NewRegistrar manages the catalog file at path. importPrefix is the module
// path every generated package lives under.
func NewRegistrar(path, importPrefix, registerFunc string, guard safety.Checker) (*Registrar, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("catalog: index path is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("catalog: safety guard is required")
	}
	if strings.TrimSpace(registerFunc) == "" {
		registerFunc = DefaultRegisterFunc
	}
	return &Registrar{
		path:     filepath.Clean(path),
		prefix:   strings.TrimRight(importPrefix, "/"),
		funcName: registerFunc,
		guard:    guard,
	}, nil
}

// Path returns the catalog file location.
func (r *Registrar) Path() string {
	return r.path
}

// Load parses the catalog file. A missing file yields a skeleton whose
// package is named after the containing directory.
func (r *Registrar) Load() (*Index, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Skeleton(r.packageName(), r.funcName), nil
		}
		return nil, fmt.Errorf("catalog: read %s: %w", r.path, err)
	}
	idx, err := Parse(string(data), r.funcName)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", r.path, err)
	}
	return idx, nil
}

func (r *Registrar) packageName() string {
	name := workitem.Identifier(filepath.Base(filepath.Dir(r.path)))
	if name == "" {
		return "catalog"
	}
	return name
}

// ImportPath returns the import path of the package stored in dir.
func (r *Registrar) ImportPath(dir string) string {
	base := filepath.Base(dir)
	if r.prefix == "" {
		return base
	}
	return r.prefix + "/" + base
}

// Register imports the package in dir and registers its Definition under the
// item's category. Registering the same package twice leaves the file
// untouched; the boolean reports whether it was changed.
func (r *Registrar) Register(item workitem.Item, dir string) (bool, error) {
	idx, err := r.Load()
	if err != nil {
		return false, err
	}
	alias, importAdded := idx.AddImport(item.Ident(), r.ImportPath(dir))
	registered := idx.AddRegistration(string(item.Category), RegistrationFor(alias))
	if !importAdded && !registered {
		return false, nil
	}
	if err := r.save(idx); err != nil {
		return false, err
	}
	return true, nil
}

// Ensure writes a skeleton catalog when none exists yet.
func (r *Registrar) Ensure() (bool, error) {
	if _, err := os.Stat(r.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("catalog: stat %s: %w", r.path, err)
	}
	if err := r.save(Skeleton(r.packageName(), r.funcName)); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Registrar) save(idx *Index) error {
	if err := idx.Check(); err != nil {
		return err
	}
	if err := r.guard.AssertSafe(r.path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("catalog: create %s: %w", filepath.Dir(r.path), err)
	}
	if err := fsx.WriteFileAtomic(r.path, []byte(idx.Render()), 0o644, fsx.WithCheck(r.guard.AssertSafe)); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}
