package domain

import "path/filepath"

// Target is one independently normalized test suite
type Target struct {
	Name string `yaml:"name" json:"name"`
	// Dir is relative to the source root
	Dir string `yaml:"dir" json:"dir"`
	// EntryPoint is an optional test file or package inside Dir
	EntryPoint string `yaml:"entry_point" json:"entry_point"`
	// Prefix is prepended, followed by a slash, to every filename reference
	Prefix        string `yaml:"prefix" json:"prefix"`
	TestCommand   string `yaml:"test_command" json:"test_command"`
	ReportCommand string `yaml:"report_command" json:"report_command"`
	ReportFile    string `yaml:"report_file" json:"report_file"`
}

// ReportPath returns the report location inside the resolved target directory
func (t Target) ReportPath(dir string) string {
	return filepath.Join(dir, t.ReportFile)
}
