package artifact

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/kingrea/calcforge/internal/fsx"
	"github.com/kingrea/calcforge/internal/logging"
	"github.com/kingrea/calcforge/internal/safety"
	"github.com/kingrea/calcforge/internal/workitem"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// DefaultTemplates returns the built-in template set.
func DefaultTemplates() fs.FS {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// TemplateData is what every template sees.
type TemplateData struct {
	Name       string
	Slug       string
	Ident      string
	Category   workitem.Category
	ImportPath string
	Generated  string
}

// Writer renders and writes artifact sets under root. Every mutation is
// checked by the guard first.
type Writer struct {
	root         string
	guard        safety.Checker
	templates    fs.FS
	importPrefix string
	log          *logging.Logger
	now          func() time.Time
}

// Option customizes a Writer during construction.
type Option func(*Writer)

// WithTemplates replaces the built-in templates, typically with os.DirFS of
// the configured templates directory.
func WithTemplates(fsys fs.FS) Option {
	return func(w *Writer) {
		if fsys != nil {
			w.templates = fsys
		}
	}
}

// WithImportPrefix sets the module path generated packages live under.
func WithImportPrefix(prefix string) Option {
	return func(w *Writer) {
		w.importPrefix = strings.TrimRight(prefix, "/")
	}
}

// WithLogger records skipped templates.
func WithLogger(log *logging.Logger) Option {
	return func(w *Writer) {
		w.log = log
	}
}

// WithClock overrides the clock used for manifest timestamps.
func WithClock(clock func() time.Time) Option {
	return func(w *Writer) {
		if clock != nil {
			w.now = clock
		}
	}
}

// NewWriter builds a writer rooted at the artifacts directory.
func NewWriter(root string, guard safety.Checker, opts ...Option) (*Writer, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("artifact: root is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("artifact: safety guard is required")
	}
	if err := validateFiles(files); err != nil {
		return nil, err
	}
	w := &Writer{
		root:      filepath.Clean(root),
		guard:     guard,
		templates: DefaultTemplates(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the directory that holds item's artifact set.
func (w *Writer) Dir(item workitem.Item) string {
	return filepath.Join(w.root, item.Slug())
}

// ImportPath returns the Go import path of item's package.
func (w *Writer) ImportPath(item workitem.Item) string {
	if w.importPrefix == "" {
		return item.Slug()
	}
	return w.importPrefix + "/" + item.Slug()
}

// Write creates item's directory and writes the full file set: content
// verbatim into calculator.go, every template that exists, then the
// manifest. Rewriting an existing set overwrites it.
func (w *Writer) Write(item workitem.Item, content string) (Set, error) {
	dir := w.Dir(item)
	if err := w.guard.AssertSafe(dir); err != nil {
		return Set{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Set{}, fmt.Errorf("artifact: create %s: %w", dir, err)
	}

	now := w.now().UTC()
	data := TemplateData{
		Name:       item.Name,
		Slug:       item.Slug(),
		Ident:      item.Ident(),
		Category:   item.Category,
		ImportPath: w.ImportPath(item),
		Generated:  formatTime(now),
	}
	set := Set{
		Dir:      dir,
		Manifest: Manifest{Item: item.Name, Slug: item.Slug(), Category: string(item.Category), CreatedAt: now},
	}

	for _, ref := range files {
		var body []byte
		if ref.Verbatim() {
			body = []byte(content)
		} else {
			rendered, err := w.render(ref, data)
			if errors.Is(err, fs.ErrNotExist) {
				w.log.Warn("%s: write: template %s missing, skipping %s", item.Name, ref.Template, ref.Dest)
				set.Skipped = append(set.Skipped, ref.Dest)
				continue
			}
			if err != nil {
				return set, err
			}
			body = rendered
		}
		if err := w.writeFile(filepath.Join(dir, ref.Dest), body); err != nil {
			return set, err
		}
		set.Written = append(set.Written, ref.Dest)
		set.Manifest.Files = append(set.Manifest.Files, FileSum{Path: ref.Dest, SHA256: Checksum(body)})
	}

	encoded, err := set.Manifest.Encode()
	if err != nil {
		return set, err
	}
	if err := w.writeFile(filepath.Join(dir, ManifestFile), encoded); err != nil {
		return set, err
	}
	return set, nil
}

func (w *Writer) render(ref FileRef, data TemplateData) ([]byte, error) {
	raw, err := fs.ReadFile(w.templates, ref.Template)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(ref.Template).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("artifact: parse template %s: %w", ref.Template, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("artifact: render %s: %w", ref.Template, err)
	}
	return buf.Bytes(), nil
}

func (w *Writer) writeFile(path string, body []byte) error {
	if err := w.guard.AssertSafe(path); err != nil {
		return err
	}
	if err := fsx.WriteFileAtomic(path, body, 0o644, fsx.WithCheck(w.guard.AssertSafe)); err != nil {
		return fmt.Errorf("artifact: %w", err)
	}
	return nil
}
