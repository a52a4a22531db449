package cli

import (
	"time"

	"covnorm/internal/config"
)

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

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		ProjectPath:       f.ProjectPath,
		SourcePath:        f.SourcePath,
		ConfigFile:        f.ConfigFile,
		Processors:        f.Processors,
		Filter:            f.Filter,
		HaltOnTestFailure: f.HaltOnTestFailure,
		Strict:            f.Strict,
		FailFast:          f.FailFast,
		Timeout:           f.Timeout,
		RewriteMode:       f.RewriteMode,
		TestCases:         f.TestCases,
		Verbose:           f.Verbose,
		DatabaseDSN:       f.DatabaseDSN,
		NoProgress:        f.NoProgress,
		File:              f.File,
		Prefix:            f.Prefix,
		Plain:             f.Plain,

		HaltOnTestFailureSet: f.HaltOnTestFailureSet,
		StrictSet:            f.StrictSet,
	}
}
