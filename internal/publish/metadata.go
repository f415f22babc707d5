// Package publish selects publishable notes from the vault, sends them to the
// publishing platform and writes the remote identifiers back into the notes.
package publish

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/validate"
)

// Front matter keys read and written by the publisher.
const (
	KeyStatus          = "publish_status"
	KeyTitle           = "publish_title"
	KeySlug            = "publish_slug"
	KeyExcerpt         = "publish_excerpt"
	KeyTags            = "publish_tags"
	KeyRemoteID        = "ghost_id"
	KeyRemoteURL       = "ghost_url"
	KeyRemoteUpdatedAt = "ghost_updated_at"
	KeyFingerprint     = checksum.FingerprintKey
)

var (
	errMissingStatus = errors.New("status is missing")
	errInvalidStatus = errors.New("status is invalid")
	errMissingSlug   = errors.New("slug is missing")
	errInvalidSlug   = errors.New("slug is invalid")
)

// Metadata is the publishing information extracted from a note's front matter.
type Metadata struct {
	Title   string   `json:"title"`
	Slug    string   `json:"slug"`
	Status  string   `json:"status"`
	Tags    []string `json:"tags"`
	Excerpt string   `json:"excerpt"`
}

// Action tells the dispatcher which remote call a candidate needs.
type Action int

const (
	ActionCreate Action = iota + 1
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// MarshalText renders the action by name in JSON payloads.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Candidate is a note selected for publication in the current run.
type Candidate struct {
	Document        models.Document   `json:"document"`
	Metadata        Metadata          `json:"metadata"`
	Action          Action            `json:"action"`
	RemoteID        string            `json:"remote_id,omitempty"`
	RemoteURL       string            `json:"remote_url,omitempty"`
	RemoteUpdatedAt string            `json:"remote_updated_at,omitempty"`
	Fingerprint     string            `json:"fingerprint,omitempty"`
	Body            string            `json:"-"`
	Links           []LinkResolution  `json:"links,omitempty"`
	Embeds          []EmbedResolution `json:"embeds,omitempty"`
}

// Unchanged reports whether the note still matches the fingerprint written
// after its last successful publication.
func (c Candidate) Unchanged() bool {
	if c.Action != ActionUpdate || c.Fingerprint == "" {
		return false
	}
	fp, err := checksum.Fingerprint(c.Document.Frontmatter, c.Body, c.Metadata.Excerpt)
	return err == nil && fp == c.Fingerprint
}

// extractMetadata derives publishing metadata from front matter. basename is
// the default title.
func extractMetadata(fm map[string]any, basename string) (Metadata, error) {
	raw, ok := fm[KeyStatus]
	if !ok || raw == nil {
		return Metadata{}, errMissingStatus
	}
	if !validate.Status(raw) {
		return Metadata{}, errInvalidStatus
	}

	m := Metadata{Status: raw.(string), Title: basename}
	if s, ok := fm[KeyTitle].(string); ok && s != "" {
		m.Title = s
	}

	switch slug := fm[KeySlug].(type) {
	case nil:
		return Metadata{}, errMissingSlug
	case string:
		if slug == "" {
			return Metadata{}, errMissingSlug
		}
		if !validate.Slug(slug) {
			return Metadata{}, errInvalidSlug
		}
		m.Slug = slug
	default:
		return Metadata{}, errInvalidSlug
	}

	m.Tags = cleanTags(parser.FrontmatterTags(fm))
	if override, ok := fm[KeyTags]; ok && override != nil {
		m.Tags = cleanTags(parser.StringList(override))
	}
	m.Excerpt = excerptOf(fm)
	return m, nil
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(strings.Replace(t, "#", "", 1))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// excerptOf returns the excerpt field; non-string values count as empty.
func excerptOf(fm map[string]any) string {
	s, _ := fm[KeyExcerpt].(string)
	return s
}

// stringField returns a front matter value as text. Timestamps decoded by
// the YAML parser are rendered back in the platform's format.
func stringField(fm map[string]any, key string) string {
	switch v := fm[key].(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(remoteTimeLayout)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

const remoteTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// CandidateSummary is the compact view of a candidate shown to users.
type CandidateSummary struct {
	Path             string   `json:"path"`
	Title            string   `json:"title"`
	Slug             string   `json:"slug"`
	Status           string   `json:"status"`
	Tags             []string `json:"tags"`
	Action           Action   `json:"action"`
	RemoteURL        string   `json:"remote_url,omitempty"`
	Unchanged        bool     `json:"unchanged"`
	DowngradedLinks  int      `json:"downgraded_links"`
	UnresolvedEmbeds []string `json:"unresolved_embeds,omitempty"`
}

// Summary returns the compact view of c.
func (c Candidate) Summary() CandidateSummary {
	s := CandidateSummary{
		Path:      c.Document.Path,
		Title:     c.Metadata.Title,
		Slug:      c.Metadata.Slug,
		Status:    c.Metadata.Status,
		Tags:      c.Metadata.Tags,
		Action:    c.Action,
		RemoteURL: c.RemoteURL,
		Unchanged: c.Unchanged(),
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	for _, l := range c.Links {
		if l.Decision != DecisionRewrite {
			s.DowngradedLinks++
		}
	}
	for _, e := range c.Embeds {
		if !e.Resolved() {
			s.UnresolvedEmbeds = append(s.UnresolvedEmbeds, e.Reference.Link)
		}
	}
	return s
}
