package discovery

import (
	"fmt"
	"os"
	"regexp"
	"sort"
)

// Test functions and methods, sync or async: "def test_x(" / "async def test_x("
var testFuncPattern = regexp.MustCompile(`(?m)^[ \t]*(?:async[ \t]+)?def[ \t]+(test\w*)[ \t]*\(`)

// Parser parses test files to extract test cases
type Parser struct{}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// FindTestCases finds all test functions in a python test file
func (p *Parser) FindTestCases(filePath string) ([]string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", filePath, err)
	}

	testCasesMap := make(map[string]bool) // Use map to avoid duplicates
	for _, match := range testFuncPattern.FindAllStringSubmatch(string(content), -1) {
		testCasesMap[match[1]] = true
	}

	testCases := make([]string, 0, len(testCasesMap))
	for testCase := range testCasesMap {
		testCases = append(testCases, testCase)
	}

	// Sort for consistent output
	sort.Strings(testCases)

	return testCases, nil
}
