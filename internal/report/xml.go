package report

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// XMLRewriter tokenizes the report and prefixes only the values of attributes
// named filename. Text, comments and every other byte are copied unchanged.
type XMLRewriter struct {
	// skipPrefixed leaves values that already start with the prefix alone,
	// which makes the rewrite idempotent.
	skipPrefixed bool
}

// NewXMLRewriter creates a new XMLRewriter
func NewXMLRewriter(skipPrefixed bool) *XMLRewriter {
	return &XMLRewriter{skipPrefixed: skipPrefixed}
}

// span is a half-open byte range inside a start tag
type span struct {
	start, end int
}

// Rewrite implements Rewriter
func (r *XMLRewriter) Rewrite(data []byte, prefix string) ([]byte, int, error) {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(normalizePrefix(prefix)+"/")); err != nil {
		return nil, 0, fmt.Errorf("escape prefix: %w", err)
	}
	insert := buf.Bytes()

	var offsets []int
	dec := xml.NewDecoder(bytes.NewReader(asciiShadow(data)))
	dec.CharsetReader = charsetReader
	for {
		start := int(dec.InputOffset())
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("parse report: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || !hasFilenameAttr(se) {
			continue
		}

		end := int(dec.InputOffset())
		for _, v := range filenameValues(data[start:end]) {
			value := data[start+v.start : start+v.end]
			if r.skipPrefixed && bytes.HasPrefix(value, insert) {
				continue
			}
			offsets = append(offsets, start+v.start)
		}
	}

	if len(offsets) == 0 {
		return data, 0, nil
	}

	out := make([]byte, 0, len(data)+len(offsets)*len(insert))
	last := 0
	for _, off := range offsets {
		out = append(out, data[last:off]...)
		out = append(out, insert...)
		last = off
	}
	out = append(out, data[last:]...)

	return out, len(offsets), nil
}

// asciiShadow returns data with every non-ASCII byte replaced by '?'.
// Markup is ASCII in every encoding the rewriter accepts, so tokenizing the
// shadow yields offsets that are valid in data whatever the declared charset.
func asciiShadow(data []byte) []byte {
	i := bytes.IndexFunc(data, func(r rune) bool { return r >= utf8.RuneSelf })
	if i < 0 {
		return data
	}
	shadow := bytes.Clone(data)
	for ; i < len(shadow); i++ {
		if shadow[i] >= utf8.RuneSelf {
			shadow[i] = '?'
		}
	}
	return shadow
}

// charsetReader accepts any ASCII-compatible encoding declaration
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, name := charset.Lookup(label)
	if enc == nil {
		return nil, fmt.Errorf("unsupported report encoding %q", label)
	}
	if strings.HasPrefix(name, "utf-16") {
		return nil, fmt.Errorf("unsupported report encoding %q: not ASCII compatible", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

func hasFilenameAttr(se xml.StartElement) bool {
	for _, a := range se.Attr {
		if a.Name.Space == "" && a.Name.Local == "filename" {
			return true
		}
	}
	return false
}

// filenameValues returns the value ranges of unprefixed filename attributes
// in a raw start tag such as <class name="x" filename="x.py">.
func filenameValues(tag []byte) []span {
	var spans []span

	i := 1 // skip '<'
	for i < len(tag) && !isSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' {
		i++
	}

	for i < len(tag) {
		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || tag[i] == '/' || tag[i] == '>' {
			break
		}

		nameStart := i
		for i < len(tag) && !isSpace(tag[i]) && tag[i] != '=' && tag[i] != '/' && tag[i] != '>' {
			i++
		}
		name := tag[nameStart:i]

		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || tag[i] != '=' {
			if len(name) == 0 {
				i++
			}
			continue
		}
		i++

		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || (tag[i] != '"' && tag[i] != '\'') {
			break
		}
		quote := tag[i]
		valueStart := i + 1
		n := bytes.IndexByte(tag[valueStart:], quote)
		if n < 0 {
			break
		}
		valueEnd := valueStart + n
		i = valueEnd + 1

		if string(name) == "filename" {
			spans = append(spans, span{start: valueStart, end: valueEnd})
		}
	}

	return spans
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
