package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"covnorm/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath string
	SourcePath  string
	PrefixRoot  string
	ConfigFile  string

	// Output settings
	OutputJSONFile string
	OutputJSONDir  string
	LogFile        string
	DatabaseDSN    string

	// Execution settings
	Processors        int
	Timeout           time.Duration
	HaltOnTestFailure bool
	Strict            bool
	TestCommand       string
	ReportCommand     string
	ReportFile        string

	// Rewrite settings
	RewriteMode  string
	SkipPrefixed bool

	// Paths to ignore when scanning
	PathsToIgnore []string

	// Targets as configured, before defaults are applied
	Targets []domain.Target

	// Command flags
	Flags Flags
}

// Flags holds command-line flags
type Flags struct {
	ProjectPath       string
	SourcePath        string
	ConfigFile        string
	Processors        int
	Filter            string
	HaltOnTestFailure bool
	Strict            bool
	FailFast          bool
	Timeout           time.Duration
	RewriteMode       string
	TestCases         bool
	Verbose           bool
	DatabaseDSN       string
	NoProgress        bool
	File              string
	Prefix            string
	Plain             bool

	// Set when the flag was given explicitly, so =false can override the file
	HaltOnTestFailureSet bool
	StrictSet            bool
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:    DefaultProjectPath,
		SourcePath:     DefaultSourcePath,
		PrefixRoot:     DefaultPrefixRoot,
		ConfigFile:     DefaultConfigFile,
		OutputJSONFile: DefaultOutputJSONFile,
		OutputJSONDir:  DefaultOutputJSONDir,
		LogFile:        DefaultLogFile,
		Processors:     DefaultProcessors,
		Timeout:        DefaultTimeout,
		TestCommand:    DefaultTestCommand,
		ReportCommand:  DefaultReportCommand,
		ReportFile:     DefaultReportFile,
		RewriteMode:    DefaultRewriteMode,
		SkipPrefixed:   true,
		Flags:          Flags{Processors: DefaultProcessors},
	}
	// Copy defaults so callers can't mutate the package-level slices
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	cfg.Targets = make([]domain.Target, len(DefaultTargets))
	copy(cfg.Targets, DefaultTargets)
	return cfg
}

// Load creates a config, reads the config file and .env, and applies flags
func Load(flags Flags) (*Config, error) {
	cfg := New()
	if err := cfg.Prepare(flags); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Prepare applies flags on top of the config file and environment.
// Flags always win over the file; boolean settings from the file are only
// turned off by an explicit --flag=false.
func (c *Config) Prepare(flags Flags) error {
	c.Flags = flags
	if flags.ProjectPath != "" {
		c.ProjectPath = flags.ProjectPath
	}
	if flags.ConfigFile != "" {
		c.ConfigFile = flags.ConfigFile
	}

	if err := c.LoadFile(c.GetConfigPath()); err != nil {
		return err
	}
	if err := c.LoadEnv(); err != nil {
		return err
	}

	if flags.SourcePath != "" {
		c.SourcePath = flags.SourcePath
	}
	if flags.Processors > 0 {
		c.Processors = flags.Processors
	}
	if flags.Timeout > 0 {
		c.Timeout = flags.Timeout
	}
	if flags.RewriteMode != "" {
		c.RewriteMode = flags.RewriteMode
	}
	if flags.HaltOnTestFailure || flags.HaltOnTestFailureSet {
		c.HaltOnTestFailure = flags.HaltOnTestFailure
	}
	if flags.Strict || flags.StrictSet {
		c.Strict = flags.Strict
	}
	if flags.DatabaseDSN != "" {
		c.DatabaseDSN = flags.DatabaseDSN
	}

	return c.Validate()
}

// LoadEnv loads the project .env file, if any, and picks up COVNORM_DB_DSN
func (c *Config) LoadEnv() error {
	envPath := filepath.Join(c.ProjectPath, DefaultEnvFile)
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	if dsn := os.Getenv("COVNORM_DB_DSN"); dsn != "" {
		c.DatabaseDSN = dsn
	}
	return nil
}

// Validate checks settings that would otherwise fail late
func (c *Config) Validate() error {
	switch c.RewriteMode {
	case "xml", "literal":
	default:
		return fmt.Errorf("unknown rewrite mode %q (want xml or literal)", c.RewriteMode)
	}
	if c.Processors <= 0 {
		c.Processors = 1
	}

	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("target with dir %q has no name", t.Dir)
		}
		if t.Dir == "" {
			return fmt.Errorf("target %s has no dir", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name %s", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// GetSourcePath returns the source root, resolved against the project path
func (c *Config) GetSourcePath() string {
	if filepath.IsAbs(c.SourcePath) {
		return c.SourcePath
	}
	return filepath.Join(c.ProjectPath, c.SourcePath)
}

// GetConfigPath returns the path of the optional YAML config file
func (c *Config) GetConfigPath() string {
	if filepath.IsAbs(c.ConfigFile) {
		return c.ConfigFile
	}
	return filepath.Join(c.ProjectPath, c.ConfigFile)
}

// GetTargets returns the configured targets with defaults filled in.
// The prefix defaults to the prefix root joined with the target dir.
func (c *Config) GetTargets() []domain.Target {
	targets := make([]domain.Target, 0, len(c.Targets))
	for _, t := range c.Targets {
		if t.Prefix == "" {
			t.Prefix = path.Join(c.PrefixRoot, filepath.ToSlash(t.Dir))
		}
		t.Prefix = strings.TrimSuffix(t.Prefix, "/")
		if t.TestCommand == "" {
			t.TestCommand = c.TestCommand
		}
		if t.ReportCommand == "" {
			t.ReportCommand = c.ReportCommand
		}
		if t.ReportFile == "" {
			t.ReportFile = c.ReportFile
		}
		targets = append(targets, t)
	}
	return targets
}

// GetTargetDir returns the working directory for a target
func (c *Config) GetTargetDir(t domain.Target) string {
	if filepath.IsAbs(t.Dir) {
		return t.Dir
	}
	return filepath.Join(c.GetSourcePath(), filepath.FromSlash(t.Dir))
}

// GetOutputPath returns the full path to the output JSON file.
// Resolves to an absolute path so run and results always use the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetLogPath returns the structured log file path
func (c *Config) GetLogPath() string {
	return filepath.Join(filepath.Dir(c.GetOutputPath()), c.LogFile)
}
