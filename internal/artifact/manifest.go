package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingManifest indicates the directory has no manifest.yaml.
	ErrMissingManifest = errors.New("artifact: missing manifest")
	// ErrMalformedManifest indicates the manifest could not be parsed.
	ErrMalformedManifest = errors.New("artifact: malformed manifest")
	// ErrChecksumMismatch indicates a file changed after it was written.
	ErrChecksumMismatch = errors.New("artifact: checksum mismatch")
)

// Manifest records provenance and per-file checksums for one item.
type Manifest struct {
	Item      string
	Slug      string
	Category  string
	CreatedAt time.Time
	Files     []FileSum
}

// FileSum is the checksum of one written file.
type FileSum struct {
	Path   string `yaml:"path"`
	SHA256 string `yaml:"sha256"`
}

type manifestDocument struct {
	Item     string    `yaml:"item"`
	Slug     string    `yaml:"slug"`
	Category string    `yaml:"category"`
	Created  string    `yaml:"created"`
	Files    []FileSum `yaml:"files"`
}

// Checksum returns the hex sha256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Encode renders the manifest as YAML.
func (m Manifest) Encode() ([]byte, error) {
	if m.Slug == "" {
		return nil, fmt.Errorf("artifact: manifest missing slug")
	}
	doc := manifestDocument{
		Item:     m.Item,
		Slug:     m.Slug,
		Category: m.Category,
		Created:  formatTime(m.CreatedAt),
		Files:    append([]FileSum{}, m.Files...),
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("artifact: encode manifest: %w", err)
	}
	return data, nil
}

// ParseManifest decodes manifest YAML.
func ParseManifest(data []byte) (Manifest, error) {
	var doc manifestDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}
	if doc.Slug == "" || strings.TrimSpace(doc.Created) == "" {
		return Manifest{}, ErrMalformedManifest
	}
	created, err := time.Parse(timeLayout, doc.Created)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: created: %v", ErrMalformedManifest, err)
	}
	return Manifest{
		Item:      doc.Item,
		Slug:      doc.Slug,
		Category:  doc.Category,
		CreatedAt: created.UTC(),
		Files:     append([]FileSum{}, doc.Files...),
	}, nil
}

// ReadManifest loads the manifest stored in dir.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, ErrMissingManifest
		}
		return Manifest{}, fmt.Errorf("artifact: read manifest: %w", err)
	}
	return ParseManifest(data)
}

// VerifyChecksums compares every file listed in the manifest against disk.
func (m Manifest) VerifyChecksums(dir string) error {
	for _, file := range m.Files {
		if filepath.Base(file.Path) != file.Path {
			return fmt.Errorf("%w: %s is not a bare file name", ErrMalformedManifest, file.Path)
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Path))
		if err != nil {
			return fmt.Errorf("artifact: read %s: %w", file.Path, err)
		}
		if got := Checksum(data); got != file.SHA256 {
			return fmt.Errorf("%w: %s", ErrChecksumMismatch, file.Path)
		}
	}
	return nil
}
