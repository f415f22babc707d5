package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/frontmatter"
)

// Writeback stores the remote identifiers of every successfully dispatched
// candidate in its note, together with a fresh fingerprint, and returns the
// number of notes written. Failures are logged and skipped; the note body is
// never modified.
func Writeback(ctx context.Context, store Store, cands []Candidate, outcomes Outcomes, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	written := 0
	for _, c := range cands {
		out, ok := outcomes[c.Metadata.Slug]
		if !ok || !out.OK() {
			continue
		}
		if err := writebackOne(store, c.Document.Path, out); err != nil {
			logger.ErrorContext(ctx, "writeback: failed",
				slog.String("path", c.Document.Path),
				slog.String("slug", c.Metadata.Slug),
				slog.String("error", err.Error()))
			continue
		}
		logger.DebugContext(ctx, "writeback: updated", slog.String("path", c.Document.Path))
		written++
	}
	return written
}

func writebackOne(store Store, path string, out Outcome) error {
	// Re-read: the note may have been edited while the run was in flight.
	data, err := store.Read(path)
	if err != nil {
		return err
	}
	raw, body, _, style, err := frontmatter.Split(data)
	if err != nil {
		return err
	}
	fields, err := frontmatter.ParseYAML(raw)
	if err != nil {
		return fmt.Errorf("parse front matter: %w", err)
	}

	fields[KeyRemoteID] = out.RemoteID
	fields[KeyRemoteURL] = out.RemoteURL
	fields[KeyRemoteUpdatedAt] = out.RemoteUpdatedAt
	delete(fields, KeyFingerprint)

	fp, err := checksum.Fingerprint(fields, frontmatter.StripBody(string(data)), excerptOf(fields))
	if err != nil {
		return fmt.Errorf("fingerprint: %w", err)
	}
	fields[KeyFingerprint] = fp

	serialized, err := frontmatter.SerializeYAML(fields, style)
	if err != nil {
		return fmt.Errorf("serialize front matter: %w", err)
	}
	return store.Write(path, frontmatter.Join(serialized, body, style))
}
