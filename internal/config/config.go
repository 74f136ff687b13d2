package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all docNERD configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Docs tree settings
	Docs DocsConfig `yaml:"docs"`

	// Lint runner settings
	Lint LintConfig `yaml:"lint"`

	// SQLite index settings
	Index IndexConfig `yaml:"index"`

	// Terminal rendering
	Render RenderConfig `yaml:"render"`

	// Watch mode
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DocsConfig configures the documentation tree.
type DocsConfig struct {
	// Root directory of the docs tree
	Root string `yaml:"root"`

	// Page extensions to scan (default: .md, .mdx)
	Extensions []string `yaml:"extensions"`

	// Directory names excluded from scanning
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// Glossary YAML file, relative to Root unless absolute
	GlossaryPath string `yaml:"glossary_path"`

	// Directories snippet file= references may resolve from,
	// in addition to the referencing page's directory
	SnippetRoots []string `yaml:"snippet_roots"`
}

// LintConfig configures the lint runner.
type LintConfig struct {
	// Rule IDs to skip entirely
	DisabledRules []string `yaml:"disabled_rules"`

	// Treat warning findings as errors for exit status
	WarningsAsErrors bool `yaml:"warnings_as_errors"`

	// Max pages linted concurrently
	Concurrency int `yaml:"concurrency"`

	// Per-run timeout
	Timeout string `yaml:"timeout"`
}

// IndexConfig configures the SQLite index.
type IndexConfig struct {
	DatabasePath string `yaml:"database_path"`

	// Lint runs older than this are purged on maintenance
	RunRetention string `yaml:"run_retention"`
}

// RenderConfig configures terminal rendering.
type RenderConfig struct {
	// Word wrap width for glamour output (0 = auto)
	Width int `yaml:"width"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Debounce window for rapid saves
	Debounce string `yaml:"debounce"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "docNERD",
		Version: "0.3.0",

		Docs: DocsConfig{
			Root:         "docs",
			Extensions:   []string{".md", ".mdx"},
			ExcludeDirs:  []string{"node_modules", "build", "static", ".docusaurus"},
			GlossaryPath: "glossary.yml",
			SnippetRoots: []string{"."},
		},

		Lint: LintConfig{
			Concurrency: 8,
			Timeout:     "60s",
		},

		Index: IndexConfig{
			DatabasePath: ".docnerd/index.db",
			RunRetention: "720h",
		},

		Render: RenderConfig{
			Width: 100,
		},

		Watch: WatchConfig{
			Debounce: "500ms",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "docnerd.log",
		},
	}
}

// Load loads configuration from a YAML file.
// Values containing $VAR / ${VAR} references are substituted from the
// registered providers (process env by default).
func Load(path string) (*Config, error) {
	return LoadWithProviders(path, DefaultRegistry())
}

// LoadWithProviders loads configuration using an explicit provider registry.
func LoadWithProviders(path string, registry *Registry) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if registry != nil {
		values, err := registry.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to collect config values: %w", err)
		}
		data = []byte(SubstituteAll(string(data), values))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if root := os.Getenv("DOCNERD_DOCS_ROOT"); root != "" {
		c.Docs.Root = root
	}
	if path := os.Getenv("DOCNERD_DB"); path != "" {
		c.Index.DatabasePath = path
	}
	if path := os.Getenv("DOCNERD_GLOSSARY"); path != "" {
		c.Docs.GlossaryPath = path
	}
	if level := os.Getenv("DOCNERD_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetLintTimeout returns the lint run timeout as a duration.
func (c *Config) GetLintTimeout() time.Duration {
	d, err := time.ParseDuration(c.Lint.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetWatchDebounce returns the watch debounce window as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// GetRunRetention returns the lint run retention as a duration.
func (c *Config) GetRunRetention() time.Duration {
	d, err := time.ParseDuration(c.Index.RunRetention)
	if err != nil {
		return 720 * time.Hour
	}
	return d
}

// GlossaryFile resolves the glossary path against the docs root.
func (c *Config) GlossaryFile() string {
	if filepath.IsAbs(c.Docs.GlossaryPath) {
		return c.Docs.GlossaryPath
	}
	return filepath.Join(c.Docs.Root, c.Docs.GlossaryPath)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Docs.Root == "" {
		return fmt.Errorf("docs root not configured (set docs.root or DOCNERD_DOCS_ROOT)")
	}
	if len(c.Docs.Extensions) == 0 {
		return fmt.Errorf("no page extensions configured")
	}
	if c.Lint.Concurrency < 1 {
		return fmt.Errorf("lint concurrency must be >= 1, got %d", c.Lint.Concurrency)
	}
	return nil
}

// IsRuleDisabled returns whether a lint rule has been disabled in config.
func (c *Config) IsRuleDisabled(ruleID string) bool {
	for _, id := range c.Lint.DisabledRules {
		if id == ruleID {
			return true
		}
	}
	return false
}
