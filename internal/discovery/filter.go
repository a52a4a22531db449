package discovery

import (
	"path/filepath"
	"strings"

	"covnorm/internal/domain"
)

// Filter selects targets by name pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByName filters targets by name or directory using wildcard matching.
// Supports patterns like "shared", "core-api*" or "*custom_resources*".
func (f *Filter) FilterByName(targets []domain.Target, pattern string) []domain.Target {
	if pattern == "" {
		return targets
	}

	var filtered []domain.Target
	for _, target := range targets {
		if matches(target.Name, pattern) || matches(target.Dir, pattern) {
			filtered = append(filtered, target)
		}
	}
	return filtered
}

func matches(value, pattern string) bool {
	if value == "" {
		return false
	}

	// filepath.Match stops '*' at '/', so dirs get the substring fallback below
	if matched, err := filepath.Match(pattern, value); err == nil && matched {
		return true
	}

	if strings.ContainsAny(pattern, "*?") {
		// Every non-empty part between wildcards must appear in order
		rest := value
		hasPart := false
		for _, part := range strings.FieldsFunc(pattern, func(r rune) bool { return r == '*' || r == '?' }) {
			idx := strings.Index(rest, part)
			if idx < 0 {
				return false
			}
			rest = rest[idx+len(part):]
			hasPart = true
		}
		return hasPart
	}

	return strings.Contains(value, pattern)
}
