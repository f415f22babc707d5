package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/parser"
)

// Store is the part of the vault the publisher reads from and writes to.
type Store interface {
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
}

// Selector picks the notes that take part in a run.
type Selector struct {
	index    DocumentIndex
	store    Store
	baseURL  string
	notifier Notifier
	logger   *slog.Logger
}

// NewSelector creates a Selector over a metadata snapshot. baseURL is the
// public address of the publication, used to rewrite internal links.
func NewSelector(idx DocumentIndex, store Store, baseURL string, notifier Notifier, logger *slog.Logger) *Selector {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{index: idx, store: store, baseURL: baseURL, notifier: notifier, logger: logger}
}

// Select returns the candidates in index order, or apperr.ErrNoCandidates
// when no note qualifies. Notes with a missing or invalid slug are reported
// through the notifier and skipped.
func (s *Selector) Select(ctx context.Context) ([]Candidate, error) {
	s.notifier.Notify(notice(LevelInfo, "Scanning the vault for notes to publish"))

	var out []Candidate
	for _, doc := range s.index.Documents() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// The cache may lag behind the vault, so eligibility is decided on
		// the file as it is now, never on cached front matter.
		data, err := s.store.Read(doc.Path)
		if err != nil {
			s.logger.Warn("selector: read failed", slog.String("path", doc.Path), slog.String("error", err.Error()))
			continue
		}
		res, err := parser.Parse(data)
		if err != nil {
			s.logger.Warn("selector: front matter unreadable", slog.String("path", doc.Path), slog.String("error", err.Error()))
			continue
		}
		if res.Frontmatter == nil {
			continue
		}
		doc.Frontmatter = res.Frontmatter
		doc.Links = res.Links
		doc.Embeds = res.Embeds
		doc.Checksum = checksum.Sum(data)

		meta, err := extractMetadata(doc.Frontmatter, doc.Basename())
		switch {
		case errors.Is(err, errMissingStatus), errors.Is(err, errInvalidStatus):
			s.logger.Debug("selector: skipped", slog.String("path", doc.Path), slog.String("reason", err.Error()))
			continue
		case errors.Is(err, errMissingSlug):
			s.notifier.Notify(notice(LevelWarn, fmt.Sprintf(
				"The '%s' property is missing for %s (%s). Fix the issue if you want to publish it",
				KeySlug, doc.Name(), doc.Path)))
			s.logger.Warn("selector: slug missing", slog.String("path", doc.Path))
			continue
		case errors.Is(err, errInvalidSlug):
			s.notifier.Notify(notice(LevelWarn, fmt.Sprintf(
				"The '%s' property is invalid for %s (%s). Fix the issue if you want to publish it",
				KeySlug, doc.Name(), doc.Path)))
			s.logger.Warn("selector: slug invalid", slog.String("path", doc.Path))
			continue
		case err != nil:
			return nil, err
		}

		c := Candidate{
			Document:        doc,
			Metadata:        meta,
			Action:          ActionCreate,
			RemoteID:        stringField(doc.Frontmatter, KeyRemoteID),
			RemoteURL:       stringField(doc.Frontmatter, KeyRemoteURL),
			RemoteUpdatedAt: stringField(doc.Frontmatter, KeyRemoteUpdatedAt),
			Fingerprint:     stringField(doc.Frontmatter, KeyFingerprint),
			Body:            res.Body,
		}
		if c.RemoteID != "" && c.RemoteURL != "" {
			c.Action = ActionUpdate
		}
		c.Embeds = resolveEmbeds(doc, s.index, s.logger)
		c.Links = resolveLinks(doc.Links, s.index, s.baseURL, s.logger)

		s.logger.Debug("selector: candidate",
			slog.String("path", doc.Path),
			slog.String("slug", meta.Slug),
			slog.String("action", c.Action.String()),
			slog.Bool("unchanged", c.Unchanged()))
		out = append(out, c)
	}

	if len(out) == 0 {
		return nil, apperr.ErrNoCandidates
	}
	s.notifier.Notify(notice(LevelInfo, fmt.Sprintf("Found %d note(s) to publish", len(out))))
	return out, nil
}
