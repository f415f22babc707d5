package index

import (
	"fmt"

	"github.com/starford/ansuz/internal/models"
)

// Catalog is an immutable snapshot of the metadata cache. Documents are
// ordered by path so that lookups that scan the catalog are deterministic.
type Catalog struct {
	docs   []models.Document
	byPath map[string]int
	assets []string
}

// NewCatalog builds a catalog from already loaded documents and asset paths.
// Documents must be sorted by path.
func NewCatalog(docs []models.Document, assets []string) *Catalog {
	byPath := make(map[string]int, len(docs))
	for i, d := range docs {
		byPath[d.Path] = i
	}
	return &Catalog{docs: docs, byPath: byPath, assets: assets}
}

// Catalog loads a snapshot of every cached note and attachment.
func (db *DB) Catalog() (*Catalog, error) {
	rows, err := db.ListNotes()
	if err != nil {
		return nil, err
	}
	docs := make([]models.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.Document())
	}
	assets, err := db.Assets()
	if err != nil {
		return nil, fmt.Errorf("index: catalog: %w", err)
	}
	return NewCatalog(docs, assets), nil
}

// Documents returns all notes in path order.
func (c *Catalog) Documents() []models.Document {
	return c.docs
}

// Get returns the note stored at path.
func (c *Catalog) Get(path string) (models.Document, bool) {
	i, ok := c.byPath[path]
	if !ok {
		return models.Document{}, false
	}
	return c.docs[i], true
}

// Assets returns all non-Markdown vault files in path order.
func (c *Catalog) Assets() []string {
	return c.assets
}
