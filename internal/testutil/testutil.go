// Package testutil provides shared test helpers for setting up vaults,
// databases and a fake publishing platform.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/publish"
	"github.com/starford/ansuz/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteNote writes content to rel inside the vault, creating folders.
func WriteNote(t *testing.T, vaultDir, rel, content string) {
	t.Helper()
	abs := filepath.Join(vaultDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Platform is an in-memory publish.Platform. Post IDs are the slugs.
type Platform struct {
	mu      sync.Mutex
	Created []publish.Post
	Updated []publish.Post
}

func (p *Platform) Create(_ context.Context, post publish.Post) (publish.RemotePost, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Created = append(p.Created, post)
	return remote(post), nil
}

func (p *Platform) Update(_ context.Context, post publish.Post) (publish.RemotePost, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Updated = append(p.Updated, post)
	return remote(post), nil
}

// Calls returns the number of remote calls made so far.
func (p *Platform) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Created) + len(p.Updated)
}

func remote(post publish.Post) publish.RemotePost {
	return publish.RemotePost{
		ID:        "post-" + post.Slug,
		URL:       "https://blog.test/" + post.Slug + "/",
		UpdatedAt: "2026-01-02T03:04:05.000Z",
		Title:     post.Title,
	}
}

// PlatformConfig is a usable platform configuration pointing at blog.test.
var PlatformConfig = publish.PlatformConfig{
	Enabled:    true,
	APIURL:     "https://blog.test",
	BaseURL:    "https://blog.test",
	AdminToken: "key:00ff",
}

// Publisher wires a publisher over a fresh vault and database. The cache is
// synchronised before every catalog snapshot, so notes written with
// WriteNote are visible to the next call.
func Publisher(t *testing.T, opts ...publish.Option) (*publish.Publisher, string, *index.DB, *Platform) {
	t.Helper()
	vaultDir, store := TestVault(t)
	db := TestDB(t)
	platform := &Platform{}
	catalog := func() (publish.DocumentIndex, error) {
		if err := index.Sync(db, store, nil); err != nil {
			return nil, err
		}
		return db.Catalog()
	}
	base := []publish.Option{
		publish.WithPlatform(PlatformConfig, platform),
		publish.WithRenderer(echo{}),
		publish.WithJournal(db),
	}
	return publish.NewPublisher(store, catalog, append(base, opts...)...), vaultDir, db, platform
}

type echo struct{}

func (echo) Render(md string) (string, error) { return md, nil }
