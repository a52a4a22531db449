// Package report rewrites the source file references recorded in coverage
// reports so they are relative to the repository root instead of the
// directory the coverage tool ran in.
package report

import (
	"bytes"
	"fmt"
	"strings"
)

// Rewriter prepends a prefix to every filename reference in a report.
// It returns the rewritten document and the number of references changed.
type Rewriter interface {
	Rewrite(data []byte, prefix string) ([]byte, int, error)
}

// literalPattern is the attribute opening matched by the literal rewriter
const literalPattern = `filename="`

// LiteralRewriter replaces every occurrence of filename=" with
// filename="{prefix}/ as plain text. Occurrences inside text content match
// too, and rewriting twice prefixes twice.
type LiteralRewriter struct{}

// NewLiteralRewriter creates a new LiteralRewriter
func NewLiteralRewriter() *LiteralRewriter {
	return &LiteralRewriter{}
}

// Rewrite implements Rewriter
func (r *LiteralRewriter) Rewrite(data []byte, prefix string) ([]byte, int, error) {
	old := []byte(literalPattern)
	n := bytes.Count(data, old)
	if n == 0 {
		return data, 0, nil
	}
	repl := []byte(literalPattern + normalizePrefix(prefix) + "/")
	return bytes.ReplaceAll(data, old, repl), n, nil
}

// New returns the rewriter for mode ("xml" or "literal")
func New(mode string, skipPrefixed bool) (Rewriter, error) {
	switch mode {
	case "xml", "":
		return NewXMLRewriter(skipPrefixed), nil
	case "literal":
		return NewLiteralRewriter(), nil
	default:
		return nil, fmt.Errorf("unknown rewrite mode %q", mode)
	}
}

func normalizePrefix(prefix string) string {
	return strings.TrimSuffix(prefix, "/")
}
