// Package config loads the .patchq.yaml configuration file and applies
// the built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up at the repository root.
const DefaultFile = ".patchq.yaml"

// Config holds every tunable of the patch queue engine. Zero values
// mean "use the default"; Load fills them in.
type Config struct {
	// PackagingDir is where the spec file and exported patches live,
	// relative to the repository root.
	PackagingDir string `yaml:"packaging-dir"`

	// SpecFile names the spec file inside PackagingDir. The value
	// "auto" (the default) guesses: a single *.spec file wins.
	SpecFile string `yaml:"spec-file"`

	// PqBranch is the patch queue branch name template. It understands
	// the %(branch)s placeholder.
	PqBranch string `yaml:"pq-branch"`

	// UpstreamTag is the tag template locating the upstream baseline.
	// It understands %(version)s, %(upstreamversion)s and %(vendor)s.
	UpstreamTag string `yaml:"upstream-tag"`

	// Vendor feeds the %(vendor)s placeholder of UpstreamTag.
	Vendor string `yaml:"vendor"`

	// PatchNumbers controls the NNNN- ordering prefix on exported
	// patch file names.
	PatchNumbers *bool `yaml:"patch-numbers"`

	// PatchExportCompress is the size threshold in bytes above which
	// exported patches are gzip-compressed. Zero disables compression.
	PatchExportCompress int64 `yaml:"patch-export-compress"`

	// PatchExportSquashUntil collapses history up to a commit-ish into
	// one diff on export. An optional ":name" suffix names the file.
	PatchExportSquashUntil string `yaml:"patch-export-squash-until"`

	// PatchExportIgnorePath is a regular expression of paths excluded
	// from every exported diff. Matching is anchored at the start of
	// the path.
	PatchExportIgnorePath string `yaml:"patch-export-ignore-path"`

	// CommandTag is the trailer tag carrying patch directives in
	// commit messages, e.g. "Patchq: ignore".
	CommandTag string `yaml:"command-tag"`

	// TmpDir is the base directory for staging areas. Empty means the
	// system temp directory.
	TmpDir string `yaml:"tmp-dir"`
}

// Default returns a Config with every field at its built-in default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()

	return cfg
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadDir loads DefaultFile from a directory, falling back to the
// defaults when the file does not exist.
func LoadDir(dir string) (*Config, error) {
	path := filepath.Join(dir, DefaultFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	return Load(path)
}

// expandEnv expands environment variables in all string fields.
func (c *Config) expandEnv() {
	c.PackagingDir = os.ExpandEnv(c.PackagingDir)
	c.SpecFile = os.ExpandEnv(c.SpecFile)
	c.PqBranch = os.ExpandEnv(c.PqBranch)
	c.UpstreamTag = os.ExpandEnv(c.UpstreamTag)
	c.Vendor = os.ExpandEnv(c.Vendor)
	c.PatchExportSquashUntil = os.ExpandEnv(c.PatchExportSquashUntil)
	c.TmpDir = os.ExpandEnv(c.TmpDir)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.PackagingDir == "" {
		c.PackagingDir = "packaging"
	}
	if c.SpecFile == "" {
		c.SpecFile = "auto"
	}
	if c.PqBranch == "" {
		c.PqBranch = "development/%(branch)s"
	}
	if c.UpstreamTag == "" {
		c.UpstreamTag = "upstream/%(version)s"
	}
	if c.Vendor == "" {
		c.Vendor = "Upstream"
	}
	if c.PatchNumbers == nil {
		on := true
		c.PatchNumbers = &on
	}
	if c.CommandTag == "" {
		c.CommandTag = "Patchq"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.PatchExportCompress < 0 {
		return fmt.Errorf(
			"patch-export-compress must not be negative: %d",
			c.PatchExportCompress,
		)
	}
	if c.PqBranch == "" {
		return fmt.Errorf("pq-branch must not be empty")
	}
	if c.UpstreamTag == "" {
		return fmt.Errorf("upstream-tag must not be empty")
	}
	if c.CommandTag == "" {
		return fmt.Errorf("command-tag must not be empty")
	}

	if _, err := c.IgnoreRegexp(); err != nil {
		return err
	}

	return nil
}

// NumberedPatches reports whether exported patch names carry the
// NNNN- ordering prefix.
func (c *Config) NumberedPatches() bool {
	return c.PatchNumbers == nil || *c.PatchNumbers
}

// AutoSpec reports whether the spec file should be guessed rather than
// taken from SpecFile.
func (c *Config) AutoSpec() bool {
	return c.SpecFile == "" || c.SpecFile == "auto"
}

// SpecName returns the configured spec file name, or empty when it
// should be guessed.
func (c *Config) SpecName() string {
	if c.AutoSpec() {
		return ""
	}

	return c.SpecFile
}

// IgnoreRegexp compiles the patch-export-ignore-path pattern, anchored
// at the start of the path. A nil regexp means nothing is ignored.
func (c *Config) IgnoreRegexp() (*regexp.Regexp, error) {
	if c.PatchExportIgnorePath == "" {
		return nil, nil
	}

	rx, err := regexp.Compile("^(?:" + c.PatchExportIgnorePath + ")")
	if err != nil {
		return nil, fmt.Errorf(
			"invalid patch-export-ignore-path: %w", err,
		)
	}

	return rx, nil
}
