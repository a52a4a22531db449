package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"covnorm/internal/domain"
)

// FileConfig is the on-disk shape of covnorm.yaml.
// Zero values leave the corresponding default untouched.
type FileConfig struct {
	SourcePath        string          `yaml:"source_path"`
	PrefixRoot        string          `yaml:"prefix_root"`
	Processors        int             `yaml:"processors"`
	Timeout           string          `yaml:"timeout"`
	HaltOnTestFailure bool            `yaml:"halt_on_test_failure"`
	Strict            bool            `yaml:"strict"`
	RewriteMode       string          `yaml:"rewrite_mode"`
	SkipPrefixed      *bool           `yaml:"skip_prefixed"`
	TestCommand       string          `yaml:"test_command"`
	ReportCommand     string          `yaml:"report_command"`
	ReportFile        string          `yaml:"report_file"`
	Ignore            []string        `yaml:"ignore"`
	Targets           []domain.Target `yaml:"targets"`
}

// LoadFile merges the YAML file at path into c.
// A missing file is not an error; invalid YAML is.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	return c.apply(fc)
}

func (c *Config) apply(fc FileConfig) error {
	if fc.SourcePath != "" {
		c.SourcePath = fc.SourcePath
	}
	if fc.PrefixRoot != "" {
		c.PrefixRoot = fc.PrefixRoot
	}
	if fc.Processors > 0 {
		c.Processors = fc.Processors
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", fc.Timeout, err)
		}
		c.Timeout = d
	}
	if fc.HaltOnTestFailure {
		c.HaltOnTestFailure = true
	}
	if fc.Strict {
		c.Strict = true
	}
	if fc.RewriteMode != "" {
		c.RewriteMode = fc.RewriteMode
	}
	if fc.SkipPrefixed != nil {
		c.SkipPrefixed = *fc.SkipPrefixed
	}
	if fc.TestCommand != "" {
		c.TestCommand = fc.TestCommand
	}
	if fc.ReportCommand != "" {
		c.ReportCommand = fc.ReportCommand
	}
	if fc.ReportFile != "" {
		c.ReportFile = fc.ReportFile
	}
	if len(fc.Ignore) > 0 {
		c.PathsToIgnore = append(c.PathsToIgnore, fc.Ignore...)
	}
	if len(fc.Targets) > 0 {
		c.Targets = fc.Targets
	}
	return nil
}
