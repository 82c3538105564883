// Package config loads changegate settings from .changegate.yaml and
// command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sokinpui/changegate/internal/coverage"
	"github.com/sokinpui/changegate/internal/fs"
	"github.com/sokinpui/changegate/internal/state"
)

// FileName is the config file looked up at the repository root.
const FileName = ".changegate.yaml"

// Config holds all changegate settings.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Allowlist AllowlistConfig `yaml:"allowlist"`
	Apply     ApplyConfig     `yaml:"apply"`
	Coverage  CoverageConfig  `yaml:"coverage"`
	State     StateConfig     `yaml:"state"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// Format is text or json.
	Format string `yaml:"format" validate:"oneof=text json"`
}

// AllowlistConfig controls which files count as part of the repository.
type AllowlistConfig struct {
	ExcludeDirs  []string `yaml:"exclude_dirs" validate:"dive,required"`
	ExcludeGlobs []string `yaml:"exclude_globs" validate:"dive,required"`
}

// ApplyConfig selects optional apply behaviour.
type ApplyConfig struct {
	// BraceScanner makes upserts match nested braces.
	BraceScanner bool `yaml:"brace_scanner"`
	// FuzzyEdits adds a whitespace-tolerant matcher for edit find texts.
	FuzzyEdits bool `yaml:"fuzzy_edits"`
	// RecordHistory keeps backups so the run can be undone.
	RecordHistory bool `yaml:"record_history"`
}

// CoverageConfig names the files coverage checks read.
type CoverageConfig struct {
	EntryFiles []string `yaml:"entry_files" validate:"min=1,dive,required"`
	Stylesheet string   `yaml:"stylesheet" validate:"required"`
}

// StateConfig locates the history directory, relative to the root.
type StateConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// Overrides are values set explicitly on the command line. Nil fields were
// not given and leave the loaded config untouched.
type Overrides struct {
	LogLevel      string
	BraceScanner  *bool
	FuzzyEdits    *bool
	RecordHistory *bool
}

var validate = validator.New()

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	cov := coverage.DefaultOptions()
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Allowlist: AllowlistConfig{
			ExcludeDirs:  append([]string(nil), fs.DefaultExcludeDirs...),
			ExcludeGlobs: []string{},
		},
		Coverage: CoverageConfig{
			EntryFiles: cov.EntryFiles,
			Stylesheet: cov.Stylesheet,
		},
		State: StateConfig{
			Dir: state.DefaultDirName,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load reads explicitPath when given, else <root>/.changegate.yaml when it
// exists, else returns the defaults. The result is validated.
func Load(root, explicitPath string) (*Config, error) {
	path := explicitPath
	if path == "" {
		candidate := filepath.Join(root, FileName)
		if fs.IsFile(candidate) {
			path = candidate
		}
	}

	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge applies command-line overrides.
func (c *Config) Merge(o Overrides) {
	if o.LogLevel != "" {
		c.Log.Level = strings.ToLower(o.LogLevel)
	}
	if o.BraceScanner != nil {
		c.Apply.BraceScanner = *o.BraceScanner
	}
	if o.FuzzyEdits != nil {
		c.Apply.FuzzyEdits = *o.FuzzyEdits
	}
	if o.RecordHistory != nil {
		c.Apply.RecordHistory = *o.RecordHistory
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if filepath.IsAbs(c.State.Dir) || strings.HasPrefix(filepath.ToSlash(filepath.Clean(c.State.Dir)), "..") {
		return fmt.Errorf("invalid config: state.dir must stay under the repository root")
	}
	return nil
}

// AllowlistOptions converts the allowlist section for fs.BuildAllowlist.
func (c *Config) AllowlistOptions() fs.AllowlistOptions {
	return fs.AllowlistOptions{
		ExcludeDirs:  c.Allowlist.ExcludeDirs,
		ExcludeGlobs: c.Allowlist.ExcludeGlobs,
	}
}

// CoverageOptions converts the coverage section for coverage.NewChecker.
func (c *Config) CoverageOptions() coverage.Options {
	return coverage.Options{
		EntryFiles: c.Coverage.EntryFiles,
		Stylesheet: c.Coverage.Stylesheet,
	}
}
