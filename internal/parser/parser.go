// Package parser extracts front matter, internal links, embeds and tags from Markdown notes.
package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/frontmatter"
	"github.com/starford/ansuz/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`(!?)\[\[([^\[\]]+?)\]\]`)
	mdLinkRe   = regexp.MustCompile(`(!?)\[([^\[\]]*)\]\(([^()]+)\)`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	schemeRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []models.Reference
	Embeds      []models.Reference
	Tags        []string
	Title       string
}

// Parse extracts front matter, body, references and tags from raw Markdown bytes.
// Invalid or unterminated YAML is not an error: the whole file is treated as body.
func Parse(data []byte) (*Result, error) {
	fm, body, err := frontmatter.Parse(data)
	if err != nil {
		fm, body = nil, data
	}
	text := strings.TrimLeft(string(body), "\r\n")

	links, embeds := extractReferences(text)

	return &Result{
		Frontmatter: fm,
		Body:        text,
		Links:       links,
		Embeds:      embeds,
		Tags:        extractTags(text, fm),
		Title:       deriveTitle(fm, text),
	}, nil
}

type match struct {
	pos int
	ref models.Reference
	emb bool
}

// extractReferences returns internal links and embeds in order of appearance.
// References with identical source text are reported once.
func extractReferences(body string) (links, embeds []models.Reference) {
	var found []match

	for _, m := range wikilinkRe.FindAllStringSubmatchIndex(body, -1) {
		inner := body[m[4]:m[5]]
		target, alias, _ := strings.Cut(inner, "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		embed := m[3] > m[2]
		start := m[0]
		if embed {
			start = m[2]
		}
		found = append(found, match{
			pos: start,
			emb: embed,
			ref: models.Reference{
				Original:    body[start:m[1]],
				Link:        target,
				DisplayText: strings.TrimSpace(alias),
			},
		})
	}

	for _, m := range mdLinkRe.FindAllStringSubmatchIndex(body, -1) {
		dest := cleanDestination(body[m[6]:m[7]])
		if dest == "" || strings.HasPrefix(dest, "#") || schemeRe.MatchString(dest) {
			continue
		}
		embed := m[3] > m[2]
		found = append(found, match{
			pos: m[0],
			emb: embed,
			ref: models.Reference{
				Original:    body[m[0]:m[1]],
				Link:        dest,
				DisplayText: strings.TrimSpace(body[m[4]:m[5]]),
				Markdown:    true,
			},
		})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	seen := make(map[string]struct{}, len(found))
	for _, f := range found {
		if _, ok := seen[f.ref.Original]; ok {
			continue
		}
		seen[f.ref.Original] = struct{}{}
		if f.emb {
			embeds = append(embeds, f.ref)
		} else {
			links = append(links, f.ref)
		}
	}
	return links, embeds
}

// cleanDestination strips angle brackets and an optional link title.
func cleanDestination(dest string) string {
	dest = strings.TrimSpace(dest)
	if strings.HasPrefix(dest, "<") {
		if end := strings.Index(dest, ">"); end > 0 {
			return dest[1:end]
		}
	}
	if i := strings.IndexAny(dest, " \t"); i >= 0 {
		dest = dest[:i]
	}
	return dest
}

// extractTags collects tags from the front matter "tags" field and inline #tags.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range FrontmatterTags(fm) {
		add(t)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// FrontmatterTags reads the generic "tags" (or "tag") field, accepting a YAML
// list or a comma/space separated string. Values keep any leading '#'.
func FrontmatterTags(fm map[string]any) []string {
	if fm == nil {
		return nil
	}
	raw, ok := fm["tags"]
	if !ok {
		raw = fm["tag"]
	}
	return StringList(raw)
}

// StringList coerces a front matter value into a list of non-empty strings.
func StringList(raw any) []string {
	var out []string
	switch v := raw.(type) {
	case string:
		for _, s := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, s)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

// deriveTitle returns the front matter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
