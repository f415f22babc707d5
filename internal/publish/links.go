package publish

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/validate"
)

// DocumentIndex is a read-only view of the vault's cached metadata.
type DocumentIndex interface {
	// Documents returns every note, ordered by path.
	Documents() []models.Document
	// Get returns the note stored at path.
	Get(path string) (models.Document, bool)
	// Assets returns every non-Markdown vault file, ordered by path.
	Assets() []string
}

// Decision is what happens to an internal link in the published body.
type Decision int

const (
	// DecisionRewrite turns the link into a link to the published post.
	DecisionRewrite Decision = iota + 1
	// DecisionFlatten replaces the link with plain text.
	DecisionFlatten
	// DecisionRemove drops the link entirely.
	DecisionRemove
)

func (d Decision) String() string {
	switch d {
	case DecisionRewrite:
		return "rewrite"
	case DecisionFlatten:
		return "flatten"
	case DecisionRemove:
		return "remove"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LinkResolution records how one internal link is rendered.
type LinkResolution struct {
	Reference    models.Reference `json:"reference"`
	Target       *models.Document `json:"-"`
	TargetPath   string           `json:"target_path,omitempty"`
	TargetStatus string           `json:"target_status,omitempty"`
	TargetSlug   string           `json:"target_slug,omitempty"`
	Decision     Decision         `json:"decision"`
	Replacement  string           `json:"replacement"`
	URL          string           `json:"url,omitempty"`
	Ambiguous    bool             `json:"ambiguous,omitempty"`
}

// ResolveLinks decides, for every reference, whether it becomes a link to
// the target's published post, plain text, or nothing. It returns exactly one
// resolution per reference, in input order.
func ResolveLinks(refs []models.Reference, idx DocumentIndex, baseURL string) []LinkResolution {
	return resolveLinks(refs, idx, baseURL, slog.Default())
}

func resolveLinks(refs []models.Reference, idx DocumentIndex, baseURL string, logger *slog.Logger) []LinkResolution {
	out := make([]LinkResolution, 0, len(refs))
	for _, ref := range refs {
		res := LinkResolution{Reference: ref}

		name := normalizeLinkTarget(ref.Link)
		target, matches := lookupDocument(idx, name)
		if matches > 1 {
			res.Ambiguous = true
			logger.Debug("links: ambiguous target",
				slog.String("link", ref.Link),
				slog.String("chosen", target.Path),
				slog.Int("matches", matches))
		}

		if target != nil {
			res.Target = target
			res.TargetPath = target.Path
			res.TargetStatus, _ = target.Frontmatter[KeyStatus].(string)
			res.TargetSlug, _ = target.Frontmatter[KeySlug].(string)
		}

		if !publishedTarget(target) {
			downgrade(&res)
			out = append(out, res)
			continue
		}

		text := ref.DisplayText
		if text == "" {
			if title, ok := target.Frontmatter[KeyTitle].(string); ok && title != "" {
				text = title
			} else {
				text = target.Basename()
			}
		}
		res.Decision = DecisionRewrite
		res.URL = strings.TrimSuffix(baseURL, "/") + "/" + res.TargetSlug
		res.Replacement = "[" + text + "](" + res.URL + ")"
		out = append(out, res)
	}
	return out
}

// publishedTarget reports whether doc is a note that has, or will have, a
// public post to link to.
func publishedTarget(doc *models.Document) bool {
	if doc == nil || doc.Frontmatter == nil {
		return false
	}
	status, _ := doc.Frontmatter[KeyStatus].(string)
	if status != validate.StatusPublished && status != validate.StatusScheduled {
		return false
	}
	slug, _ := doc.Frontmatter[KeySlug].(string)
	return validate.Slug(slug)
}

func downgrade(res *LinkResolution) {
	ref := res.Reference
	switch {
	case ref.DisplayText != "":
		res.Decision = DecisionFlatten
		res.Replacement = ref.DisplayText
	case strings.HasSuffix(ref.Link, ".md"):
		res.Decision = DecisionRemove
		res.Replacement = ""
	default:
		res.Decision = DecisionFlatten
		res.Replacement = ref.Link
	}
}

// normalizeLinkTarget turns a link target into a vault path candidate.
func normalizeLinkTarget(link string) string {
	name := stripSubpath(link)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	for {
		trimmed := strings.TrimPrefix(strings.TrimPrefix(name, "./"), "/")
		if trimmed == name {
			break
		}
		name = trimmed
	}
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}
	return name
}

func stripSubpath(link string) string {
	if i := strings.IndexByte(link, '#'); i >= 0 {
		return link[:i]
	}
	return link
}

// lookupDocument finds the note at name, falling back to notes stored in a
// sub-folder under that name. The last match in index order wins; matches
// is the number of notes that qualified.
func lookupDocument(idx DocumentIndex, name string) (*models.Document, int) {
	if doc, ok := idx.Get(name); ok {
		return &doc, 1
	}
	var (
		found   *models.Document
		matches int
	)
	suffix := "/" + name
	for _, doc := range idx.Documents() {
		if doc.Path == name || strings.HasSuffix(doc.Path, suffix) {
			found = &doc
			matches++
		}
	}
	return found, matches
}

// ApplyLinks replaces every occurrence of each reference's source text with
// its replacement. Occurrences preceded by "!" belong to an embed of the same
// target and are left alone.
func ApplyLinks(body string, res []LinkResolution) string {
	for _, r := range res {
		if r.Reference.Original == "" {
			continue
		}
		body = replaceOutsideEmbeds(body, r.Reference.Original, r.Replacement)
	}
	return body
}

func replaceOutsideEmbeds(body, old, repl string) string {
	if !strings.Contains(body, old) {
		return body
	}
	var b strings.Builder
	rest := body
	for {
		i := strings.Index(rest, old)
		if i < 0 {
			break
		}
		b.WriteString(rest[:i])
		prev := len(body) - len(rest) + i - 1
		if prev >= 0 && body[prev] == '!' {
			b.WriteString(old)
		} else {
			b.WriteString(repl)
		}
		rest = rest[i+len(old):]
	}
	b.WriteString(rest)
	return b.String()
}

var imageRe = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|svg)$`)

// EmbedResolution records which vault attachment an embed points to.
type EmbedResolution struct {
	Reference models.Reference `json:"reference"`
	Path      string           `json:"path,omitempty"`
	Image     bool             `json:"image"`
}

// Resolved reports whether the embed points to an existing attachment.
func (e EmbedResolution) Resolved() bool { return e.Path != "" }

// resolveEmbeds looks every embed of doc up among the vault attachments:
// relative to the note's folder, then from the vault root, then by unique
// file name anywhere in the vault.
func resolveEmbeds(doc models.Document, idx DocumentIndex, logger *slog.Logger) []EmbedResolution {
	if len(doc.Embeds) == 0 {
		return nil
	}
	assets := idx.Assets()
	known := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		known[a] = struct{}{}
	}

	out := make([]EmbedResolution, 0, len(doc.Embeds))
	for _, ref := range doc.Embeds {
		name := stripSubpath(ref.Link)
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
		name = strings.TrimPrefix(strings.TrimPrefix(name, "./"), "/")

		res := EmbedResolution{Reference: ref, Image: imageRe.MatchString(name)}
		for _, candidate := range []string{path.Join(path.Dir(doc.Path), name), path.Clean(name)} {
			if _, ok := known[candidate]; ok {
				res.Path = candidate
				break
			}
		}
		if res.Path == "" {
			res.Path = uniqueByBase(assets, path.Base(name))
		}
		if res.Path == "" {
			logger.Debug("links: embed not found",
				slog.String("path", doc.Path),
				slog.String("embed", ref.Link))
		}
		out = append(out, res)
	}
	return out
}

func uniqueByBase(assets []string, base string) string {
	found := ""
	for _, a := range assets {
		if path.Base(a) != base {
			continue
		}
		if found != "" {
			return ""
		}
		found = a
	}
	return found
}
