// Package frontmatter splits, parses and rewrites the YAML block at the top of a note.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// ErrMissingClosingDelimiter is returned when a note opens a front matter
// block but never closes it.
var ErrMissingClosingDelimiter = errors.New("frontmatter: closing delimiter is missing")

// Style captures the newline flavour of a note so it can be rewritten
// without churning line endings.
type Style struct {
	Newline string
}

// Split separates the raw YAML block (without delimiters) from the body.
//
// If content does not start with "---", had is false and body is content.
// The body is returned byte-for-byte; nothing is trimmed.
func Split(content []byte) (raw []byte, body []byte, had bool, style Style, err error) {
	style = detectStyle(content)
	nl := style.Newline

	open := []byte(delim + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, style, nil
	}

	start := len(open)
	// Empty block: "---\n---\n".
	if bytes.HasPrefix(content[start:], open) {
		return []byte{}, content[start+len(open):], true, style, nil
	}

	rest := content[start:]
	idx := bytes.Index(rest, []byte(nl+delim+nl))
	if idx >= 0 {
		return rest[:idx+len(nl)], rest[idx+len(nl)+len(delim)+len(nl):], true, style, nil
	}
	// Closing delimiter on the last line without a trailing newline.
	if bytes.HasSuffix(rest, []byte(nl+delim)) {
		end := len(rest) - len(delim)
		return rest[:end], []byte{}, true, style, nil
	}
	return nil, nil, false, style, ErrMissingClosingDelimiter
}

// Join reassembles a note from a raw YAML block and a body.
func Join(raw []byte, body []byte, style Style) []byte {
	nl := style.Newline
	if nl == "" {
		nl = "\n"
	}
	out := make([]byte, 0, len(raw)+len(body)+2*(len(delim)+len(nl)))
	out = append(out, delim+nl...)
	out = append(out, raw...)
	out = append(out, delim+nl...)
	out = append(out, body...)
	return out
}

// ParseYAML decodes a raw YAML block into a map. An empty block yields an empty map.
func ParseYAML(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return map[string]any{}, nil
	}
	Normalize(fields)
	return fields, nil
}

// Normalize replaces every nested mapping with non-string keys (yaml.v3
// decodes `2023: 5` into map[any]any) with a map[string]any keyed by
// fmt.Sprint, so the result always encodes as JSON. Maps and slices are
// updated in place; the possibly new value is returned.
func Normalize(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		for k, item := range vv {
			vv[k] = Normalize(item)
		}
		return vv
	case map[any]any:
		out := make(map[string]any, len(vv))
		for k, item := range vv {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return out
	case []any:
		for i, item := range vv {
			vv[i] = Normalize(item)
		}
		return vv
	}
	return v
}

// Parse splits content and decodes its front matter.
// fields is nil when the note carries no front matter block.
func Parse(content []byte) (fields map[string]any, body []byte, err error) {
	raw, body, had, _, err := Split(content)
	if err != nil {
		return nil, nil, err
	}
	if !had {
		return nil, body, nil
	}
	fields, err = ParseYAML(raw)
	if err != nil {
		return nil, nil, err
	}
	return fields, body, nil
}

// Rewrite replaces the front matter of content with fields, keeping the body
// and newline style untouched. A note without front matter gains one.
func Rewrite(content []byte, fields map[string]any) ([]byte, error) {
	_, body, _, style, err := Split(content)
	if err != nil {
		return nil, err
	}
	raw, err := SerializeYAML(fields, style)
	if err != nil {
		return nil, err
	}
	return Join(raw, body, style), nil
}

// StripBody returns the note body with the front matter and the blank lines
// following it removed.
func StripBody(content string) string {
	_, body, had, _, err := Split([]byte(content))
	if err != nil || !had {
		return content
	}
	return strings.TrimLeft(string(body), "\r\n")
}

func detectStyle(content []byte) Style {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return Style{Newline: "\r\n"}
	}
	return Style{Newline: "\n"}
}
