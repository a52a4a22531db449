package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scanner scans a target directory for python test files
type Scanner struct {
	skipDirs map[string]bool
}

// NewScanner creates a new Scanner with the given directories to skip
func NewScanner(skipDirs []string) *Scanner {
	s := &Scanner{}
	s.SetSkipDirs(skipDirs)
	return s
}

// SetSkipDirs replaces the directory names skipped while scanning
func (s *Scanner) SetSkipDirs(skipDirs []string) {
	skipMap := make(map[string]bool, len(skipDirs))
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	s.skipDirs = skipMap
}

// Scan finds all test files in the given root directory
func (s *Scanner) Scan(root string) ([]string, error) {
	var testfiles []string

	// Clean and validate the root path
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("target path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("target path is not a directory: %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			// Skip hidden directories (.venv, .pytest_cache, ...)
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}

			if s.skipDirs[name] {
				return filepath.SkipDir
			}

			return nil
		}

		if IsTestFile(d.Name()) {
			testfiles = append(testfiles, path)
		}

		return nil
	})

	return testfiles, err
}

// IsTestFile reports whether name follows pytest's default test file naming
func IsTestFile(name string) bool {
	if !strings.HasSuffix(name, ".py") {
		return false
	}
	return strings.HasPrefix(name, "test_") || strings.HasSuffix(name, "_test.py")
}
