package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/frontmatter"
	"github.com/starford/ansuz/internal/models"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path        string
	Title       string
	Checksum    string
	Frontmatter map[string]any
	Links       []models.Reference
	Embeds      []models.Reference
	Tags        []string
	UpdatedAt   time.Time
}

// Document converts the row into the domain type consumed by the publisher.
func (n NoteRow) Document() models.Document {
	return models.Document{
		Path:        n.Path,
		Frontmatter: n.Frontmatter,
		Links:       n.Links,
		Embeds:      n.Embeds,
		Checksum:    n.Checksum,
	}
}

const noteColumns = `path, title, checksum, frontmatter, links, embeds, tags, updated_at`

// UpsertNote inserts or replaces a note row.
func (db *DB) UpsertNote(n NoteRow) error {
	fm := ""
	if n.Frontmatter != nil {
		raw, err := json.Marshal(frontmatter.Normalize(n.Frontmatter))
		if err != nil {
			return fmt.Errorf("index: encode frontmatter %s: %w", n.Path, err)
		}
		fm = string(raw)
	}
	linksJSON, err := json.Marshal(emptyIfNil(n.Links))
	if err != nil {
		return fmt.Errorf("index: encode links %s: %w", n.Path, err)
	}
	embedsJSON, err := json.Marshal(emptyIfNil(n.Embeds))
	if err != nil {
		return fmt.Errorf("index: encode embeds %s: %w", n.Path, err)
	}
	tagsJSON, _ := json.Marshal(emptyIfNil(n.Tags))

	_, err = db.conn.Exec(`
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			checksum    = excluded.checksum,
			frontmatter = excluded.frontmatter,
			links       = excluded.links,
			embeds      = excluded.embeds,
			tags        = excluded.tags,
			updated_at  = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, fm, string(linksJSON), string(embedsJSON), string(tagsJSON), n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}
	return nil
}

// DeleteNote removes a note row.
func (db *DB) DeleteNote(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetNote returns a single note row or apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE path = ?`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotes returns every cached note ordered by path.
func (db *DB) ListNotes() ([]NoteRow, error) {
	rows, err := db.conn.Query(`SELECT ` + noteColumns + ` FROM notes ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every cached note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ReplaceAssets swaps the cached attachment list for paths.
func (db *DB) ReplaceAssets(paths []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM assets`); err != nil {
		return fmt.Errorf("index: clear assets: %w", err)
	}
	if len(paths) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO assets (path) VALUES (?)`)
		if err != nil {
			return fmt.Errorf("index: prepare asset insert: %w", err)
		}
		defer stmt.Close()
		for _, p := range paths {
			if _, err := stmt.Exec(p); err != nil {
				return fmt.Errorf("index: insert asset: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Assets returns every cached attachment path ordered by path.
func (db *DB) Assets() ([]string, error) {
	rows, err := db.conn.Query(`SELECT path FROM assets ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: assets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*NoteRow, error) {
	var (
		n                       NoteRow
		fm, links, embeds, tags string
	)
	if err := s.Scan(&n.Path, &n.Title, &n.Checksum, &fm, &links, &embeds, &tags, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if fm != "" {
		if err := json.Unmarshal([]byte(fm), &n.Frontmatter); err != nil {
			return nil, fmt.Errorf("index: decode frontmatter %s: %w", n.Path, err)
		}
	}
	if err := json.Unmarshal([]byte(links), &n.Links); err != nil {
		return nil, fmt.Errorf("index: decode links %s: %w", n.Path, err)
	}
	if err := json.Unmarshal([]byte(embeds), &n.Embeds); err != nil {
		return nil, fmt.Errorf("index: decode embeds %s: %w", n.Path, err)
	}
	_ = json.Unmarshal([]byte(tags), &n.Tags)
	return &n, nil
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
