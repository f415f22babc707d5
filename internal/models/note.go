// Package models defines the domain types shared across ansuz packages.
package models

import (
	"path"
	"strings"
	"time"
)

// Document is a Markdown note of the vault together with its cached metadata.
type Document struct {
	Path        string         `json:"path"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Links       []Reference    `json:"links,omitempty"`
	Embeds      []Reference    `json:"embeds,omitempty"`
	Checksum    string         `json:"checksum"`
}

// Name returns the file name including its extension.
func (d *Document) Name() string {
	return path.Base(d.Path)
}

// Basename returns the file name without extension.
func (d *Document) Basename() string {
	return strings.TrimSuffix(d.Name(), path.Ext(d.Path))
}

// Reference is an outbound internal link or an embed found in a note body.
type Reference struct {
	// Original is the exact source text, e.g. "[[Note|Alias]]" or "[Alias](Note.md)".
	Original string `json:"original"`
	// Link is the reference target as written, subpath included.
	Link string `json:"link"`
	// DisplayText is the explicit alias; empty when the reference has none.
	DisplayText string `json:"display_text,omitempty"`
	// Markdown is true for [text](target) syntax, false for wikilinks.
	Markdown bool `json:"markdown,omitempty"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
