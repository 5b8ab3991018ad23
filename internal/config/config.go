// internal/config/config.go
//
// This package handles configuration and the .calcforge directory structure.
// Every project that runs calcforge gets a .calcforge/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectDirName is the name of the directory we create in each project
	ProjectDirName = ".calcforge"

	defaultAPIKeyEnv = "CALCFORGE_API_KEY"
)

const defaultProjectConfigYAML = `# calcforge project configuration
version: 1

paths:
  # Markdown checklist; "- [ ] Name" lines are pending calculators.
  checklist: CALCULATORS.md
  progress: .calcforge/state/progress.json
  artifacts: calculators
  catalog_index: calculators/registry.go
  # Leave empty to use the built-in templates.
  templates: ""
  log_file: .calcforge/logs/calcforge.log

catalog:
  import_prefix: example.com/app/calculators
  register_func: registerAll

generation:
  endpoint: https://api.anthropic.com/v1/messages
  model: claude-sonnet-4-5
  api_key_env: CALCFORGE_API_KEY
  max_tokens: 4096
  timeout: 90s
  min_interval: 2s
  retry_backoff: 5s
  max_retries: 3
  item_pause: 1s

verify:
  interpret: true
  interpret_timeout: 5s
`

// Paths locates every file and directory the pipeline reads or mutates.
type Paths struct {
	Checklist    string `yaml:"checklist"`
	Progress     string `yaml:"progress"`
	Artifacts    string `yaml:"artifacts"`
	CatalogIndex string `yaml:"catalog_index"`
	Templates    string `yaml:"templates,omitempty"`
	LogFile      string `yaml:"log_file"`
}

// CatalogConfig controls how generated packages are referenced from the
// catalog index.
type CatalogConfig struct {
	ImportPrefix string `yaml:"import_prefix"`
	RegisterFunc string `yaml:"register_func"`
}

// GenerationConfig tunes the external generation service and retry loop.
type GenerationConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKeyEnv    string        `yaml:"api_key_env"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
	MinInterval  time.Duration `yaml:"min_interval"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	MaxRetries   int           `yaml:"max_retries"`
	ItemPause    time.Duration `yaml:"item_pause"`
}

// VerifyConfig toggles the optional interpreted smoke run.
type VerifyConfig struct {
	Interpret        bool          `yaml:"interpret"`
	InterpretTimeout time.Duration `yaml:"interpret_timeout"`
}

// ProjectConfig models .calcforge/config.yaml.
type ProjectConfig struct {
	Version    int              `yaml:"version"`
	Paths      Paths            `yaml:"paths"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Generation GenerationConfig `yaml:"generation"`
	Verify     VerifyConfig     `yaml:"verify"`
}

// Config holds the runtime configuration for calcforge.
type Config struct {
	// ProjectDir is the directory where the user ran `calcforge` from
	ProjectDir string

	// StateDir is ProjectDir/.calcforge
	StateDir string

	Project ProjectConfig
}

// InitProjectDir creates the .calcforge directory structure in the given
// project directory and writes the default config when none exists.
//
// Structure created:
// .calcforge/
// ├── config.yaml
// ├── logs/
// └── state/
func InitProjectDir(projectDir string) error {
	root := filepath.Join(projectDir, ProjectDirName)
	for _, dir := range []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig loads the project configuration, falling back to defaults for
// anything the file leaves out.
func NewConfig(projectDir string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve project dir: %w", err)
	}
	cfg := &Config{
		ProjectDir: abs,
		StateDir:   filepath.Join(abs, ProjectDirName),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// APIKey reads the generation credential from the configured environment
// variable. A missing key is a configuration error.
func (c *Config) APIKey() (string, error) {
	name := c.Project.Generation.APIKeyEnv
	key := strings.TrimSpace(os.Getenv(name))
	if key == "" {
		return "", fmt.Errorf("config: %s environment variable is not set", name)
	}
	return key, nil
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Project.normalize(c.ProjectDir)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Paths: Paths{
			Checklist:    "CALCULATORS.md",
			Progress:     filepath.Join(ProjectDirName, "state", "progress.json"),
			Artifacts:    "calculators",
			CatalogIndex: filepath.Join("calculators", "registry.go"),
			LogFile:      filepath.Join(ProjectDirName, "logs", "calcforge.log"),
		},
		Catalog: CatalogConfig{
			ImportPrefix: "example.com/app/calculators",
			RegisterFunc: "registerAll",
		},
		Generation: GenerationConfig{
			Endpoint:     "https://api.anthropic.com/v1/messages",
			Model:        "claude-sonnet-4-5",
			APIKeyEnv:    defaultAPIKeyEnv,
			MaxTokens:    4096,
			Timeout:      90 * time.Second,
			MinInterval:  2 * time.Second,
			RetryBackoff: 5 * time.Second,
			MaxRetries:   3,
			ItemPause:    time.Second,
		},
		Verify: VerifyConfig{
			Interpret:        true,
			InterpretTimeout: 5 * time.Second,
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	def := defaultProjectConfig()
	if pc.Version == 0 {
		pc.Version = def.Version
	}
	if strings.TrimSpace(pc.Generation.APIKeyEnv) == "" {
		pc.Generation.APIKeyEnv = def.Generation.APIKeyEnv
	}
	if pc.Generation.MaxRetries == 0 {
		pc.Generation.MaxRetries = def.Generation.MaxRetries
	}
	if pc.Generation.MaxTokens == 0 {
		pc.Generation.MaxTokens = def.Generation.MaxTokens
	}
	if pc.Generation.Timeout == 0 {
		pc.Generation.Timeout = def.Generation.Timeout
	}
	if pc.Verify.InterpretTimeout == 0 {
		pc.Verify.InterpretTimeout = def.Verify.InterpretTimeout
	}
	if strings.TrimSpace(pc.Catalog.RegisterFunc) == "" {
		pc.Catalog.RegisterFunc = def.Catalog.RegisterFunc
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Paths.Checklist = resolvePath(base, pc.Paths.Checklist)
	pc.Paths.Progress = resolvePath(base, pc.Paths.Progress)
	pc.Paths.Artifacts = resolvePath(base, pc.Paths.Artifacts)
	pc.Paths.CatalogIndex = resolvePath(base, pc.Paths.CatalogIndex)
	pc.Paths.Templates = resolvePath(base, pc.Paths.Templates)
	pc.Paths.LogFile = resolvePath(base, pc.Paths.LogFile)
	pc.Catalog.ImportPrefix = strings.TrimRight(strings.TrimSpace(pc.Catalog.ImportPrefix), "/")
	pc.Catalog.RegisterFunc = strings.TrimSpace(pc.Catalog.RegisterFunc)
	pc.Generation.Endpoint = strings.TrimSpace(pc.Generation.Endpoint)
	pc.Generation.Model = strings.TrimSpace(pc.Generation.Model)
	pc.Generation.APIKeyEnv = strings.TrimSpace(pc.Generation.APIKeyEnv)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	required := map[string]string{
		"paths.checklist":       pc.Paths.Checklist,
		"paths.progress":        pc.Paths.Progress,
		"paths.artifacts":       pc.Paths.Artifacts,
		"paths.catalog_index":   pc.Paths.CatalogIndex,
		"paths.log_file":        pc.Paths.LogFile,
		"catalog.import_prefix": pc.Catalog.ImportPrefix,
		"generation.endpoint":   pc.Generation.Endpoint,
		"generation.model":      pc.Generation.Model,
	}
	for _, key := range sortedKeys(required) {
		if required[key] == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	if pc.Generation.MaxRetries < 1 {
		return fmt.Errorf("generation.max_retries must be >= 1")
	}
	if pc.Generation.MinInterval < 0 || pc.Generation.RetryBackoff < 0 || pc.Generation.ItemPause < 0 {
		return fmt.Errorf("generation delays must not be negative")
	}
	if pc.Paths.CatalogIndex == pc.Paths.Artifacts {
		return fmt.Errorf("paths.catalog_index must be a file, not the artifacts directory")
	}
	return nil
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
