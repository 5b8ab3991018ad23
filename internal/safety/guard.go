// Package safety confines filesystem mutations to an allow-listed set of
// roots. A violation is a defect, not an item-level condition.
package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingrea/calcforge/internal/fsx"
)

// ViolationError reports a mutation target outside every allowed root.
type ViolationError struct {
	Path     string
	Resolved string
	Roots    []string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("safety: %s resolves to %s, outside allowed roots %s", e.Path, e.Resolved, strings.Join(e.Roots, ", "))
}

// IsViolation reports whether err carries a ViolationError.
func IsViolation(err error) bool {
	var v *ViolationError
	return errors.As(err, &v)
}

// Checker is the contract mutating components depend on.
type Checker interface {
	AssertSafe(path string) error
}

// Root is one allow-listed location. A directory root admits its whole
// subtree; a file root admits only itself.
type Root struct {
	Path string
	Dir  bool
}

// DirRoot allows path and everything beneath it.
func DirRoot(path string) Root {
	return Root{Path: path, Dir: true}
}

// FileRoot allows exactly path and the staging files fsx.WriteFileAtomic
// creates next to it.
func FileRoot(path string) Root {
	return Root{Path: path}
}

// Guard holds the resolved allow-list.
type Guard struct {
	roots []Root
}

// NewGuard resolves every root once.
func NewGuard(roots ...Root) (*Guard, error) {
	g := &Guard{}
	for _, root := range roots {
		if strings.TrimSpace(root.Path) == "" {
			return nil, fmt.Errorf("safety: empty root")
		}
		resolved, err := resolve(root.Path)
		if err != nil {
			return nil, fmt.Errorf("safety: resolve root %s: %w", root.Path, err)
		}
		g.roots = append(g.roots, Root{Path: resolved, Dir: root.Dir})
	}
	if len(g.roots) == 0 {
		return nil, fmt.Errorf("safety: at least one root is required")
	}
	return g, nil
}

// Roots returns the resolved allow-list paths.
func (g *Guard) Roots() []string {
	out := make([]string, 0, len(g.roots))
	for _, root := range g.roots {
		out = append(out, root.Path)
	}
	return out
}

// AssertSafe returns a ViolationError unless path equals or is nested under
// one of the roots after resolution.
func (g *Guard) AssertSafe(path string) error {
	resolved, err := resolve(path)
	if err != nil {
		return &ViolationError{Path: path, Resolved: err.Error(), Roots: g.Roots()}
	}
	for _, root := range g.roots {
		if resolved == root.Path || root.Dir && within(root.Path, resolved) || !root.Dir && stagedFor(root.Path, resolved) {
			return nil
		}
	}
	return &ViolationError{Path: path, Resolved: resolved, Roots: g.Roots()}
}

func stagedFor(file, path string) bool {
	return filepath.Dir(path) == filepath.Dir(file) &&
		strings.HasPrefix(filepath.Base(path), fsx.TempPrefix(file))
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// resolve makes path absolute and clean, then evaluates symlinks on the
// deepest existing ancestor so links cannot smuggle a write elsewhere.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	existing := abs
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{real}, rest...)...), nil
}
