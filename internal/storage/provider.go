// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for vault file operations. Paths are relative
// to the vault root and use forward slashes.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// ListAssets returns the paths of every non-Markdown file under dir.
	ListAssets(dir string) ([]string, error)
	// Read returns the latest on-disk bytes of the file at path. It serves
	// both text notes and binary attachments.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
}
