package config

import (
	"time"

	"covnorm/internal/domain"
)

const (
	// DefaultProjectPath is the deployment directory the tool is invoked from
	DefaultProjectPath = "."
	// DefaultSourcePath is the source tree, relative to the project path
	DefaultSourcePath = "../source"
	// DefaultPrefixRoot is the repository-relative name of the source tree
	DefaultPrefixRoot = "source"
	// DefaultConfigFile is the optional target catalogue in the project path
	DefaultConfigFile = "covnorm.yaml"
	// DefaultEnvFile is loaded for database settings when present
	DefaultEnvFile = ".env"
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "results.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = ".covnorm"
	// DefaultLogFile is written next to the results file
	DefaultLogFile = "covnorm.log"
	// DefaultProcessors is the default number of targets run at once
	DefaultProcessors = 4
	// DefaultTestCommand runs the target tests under coverage measurement
	DefaultTestCommand = "coverage run -m pytest"
	// DefaultReportCommand writes the XML report from the recorded data
	DefaultReportCommand = "coverage xml"
	// DefaultReportFile is the report written by DefaultReportCommand
	DefaultReportFile = "coverage.xml"
	// DefaultRewriteMode is the structure-aware rewriter
	DefaultRewriteMode = "xml"
	// DefaultTimeout disables the per-target timeout
	DefaultTimeout time.Duration = 0
)

// DefaultPathsToIgnore are the directories skipped when scanning for tests
var DefaultPathsToIgnore = []string{
	"venv",
	"env",
	"__pycache__",
	"node_modules",
	"build",
	"dist",
	"cdk.out",
	"htmlcov",
}

// DefaultTargets are the four fixed targets of the waiting-room repository
var DefaultTargets = []domain.Target{
	{Name: "core-api-lambda-functions", Dir: "core-api/lambda_functions"},
	{Name: "core-api-custom-resources", Dir: "core-api/custom_resources"},
	{Name: "shared", Dir: "shared"},
	{Name: "openid-waitingroom-custom-resources", Dir: "openid-waitingroom/custom_resources"},
}
