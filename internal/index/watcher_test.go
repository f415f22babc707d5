package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/storage"
)

type watchedVault struct {
	dir   string
	store *storage.FS
	db    *DB

	mu     sync.Mutex
	events []string
}

// startWatch seeds the vault, syncs the cache and runs Watch until the
// test ends.
func startWatch(t *testing.T, seed map[string]string) *watchedVault {
	t.Helper()
	v := &watchedVault{dir: t.TempDir(), db: testDB(t)}
	for rel, content := range seed {
		v.write(t, rel, content)
	}
	store, err := storage.NewFS(v.dir)
	if err != nil {
		t.Fatal(err)
	}
	v.store = store
	if err := Sync(v.db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, v.db, store, v.dir, quietLogger(), v.record)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
	return v
}

func (v *watchedVault) record(kind, path string) {
	v.mu.Lock()
	v.events = append(v.events, kind+":"+path)
	v.mu.Unlock()
}

func (v *watchedVault) seen(event string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, e := range v.events {
		if e == event {
			return true
		}
	}
	return false
}

func (v *watchedVault) write(t *testing.T, rel, content string) {
	t.Helper()
	abs := filepath.Join(v.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (v *watchedVault) cached(rel string) bool {
	cs, _ := v.db.GetChecksum(rel)
	return cs != ""
}

// waitFor polls cond until it holds or five seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("timed out waiting for %s", what)
}

func TestWatch_NewNoteBecomesCandidate(t *testing.T) {
	v := startWatch(t, nil)
	v.write(t, "Draft.md", "---\npublish_status: draft\npublish_slug: draft\n---\nbody\n")

	waitFor(t, "front matter indexed", func() bool {
		row, err := v.db.GetNote("Draft.md")
		return err == nil && row.Frontmatter["publish_slug"] == "draft"
	})
	waitFor(t, "created callback", func() bool { return v.seen("created:Draft.md") })
}

func TestWatch_EditRefreshesFrontMatter(t *testing.T) {
	v := startWatch(t, map[string]string{"post.md": "---\npublish_status: draft\npublish_slug: post\n---\nv1\n"})
	v.write(t, "post.md", "---\npublish_status: published\npublish_slug: post\n---\nv2\n")

	waitFor(t, "status refreshed", func() bool {
		row, err := v.db.GetNote("post.md")
		return err == nil && row.Frontmatter["publish_status"] == "published"
	})
	waitFor(t, "updated callback", func() bool { return v.seen("updated:post.md") })
}

func TestWatch_IdenticalRewriteIsQuiet(t *testing.T) {
	const content = "---\npublish_status: draft\npublish_slug: same\n---\nbody\n"
	v := startWatch(t, map[string]string{"same.md": content})

	if err := v.store.Write("same.md", []byte(content)); err != nil {
		t.Fatal(err)
	}
	v.write(t, "marker.md", "# marker\n")
	waitFor(t, "marker indexed", func() bool { return v.seen("created:marker.md") })

	if v.seen("updated:same.md") || v.seen("created:same.md") {
		t.Error("rewrite with identical bytes reported as a change")
	}
}

func TestWatch_NoteInNewDirectory(t *testing.T) {
	v := startWatch(t, nil)
	if err := os.Mkdir(filepath.Join(v.dir, "posts"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	v.write(t, "posts/deep.md", "# Deep\n")

	waitFor(t, "nested note indexed", func() bool { return v.cached("posts/deep.md") })
}

func TestWatch_DeleteDropsNote(t *testing.T) {
	v := startWatch(t, map[string]string{"gone.md": "# Gone\n"})
	if !v.cached("gone.md") {
		t.Fatal("precondition: note should be cached")
	}
	if err := os.Remove(filepath.Join(v.dir, "gone.md")); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "note dropped", func() bool { return !v.cached("gone.md") })
	waitFor(t, "deleted callback", func() bool { return v.seen("deleted:gone.md") })
}

func TestWatch_RenameMovesNote(t *testing.T) {
	v := startWatch(t, map[string]string{"old.md": "# Renamed\n"})
	if err := os.Rename(filepath.Join(v.dir, "old.md"), filepath.Join(v.dir, "new.md")); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "rename reconciled", func() bool { return !v.cached("old.md") && v.cached("new.md") })
}

func TestWatch_AttachmentRefreshesAssets(t *testing.T) {
	v := startWatch(t, nil)
	v.write(t, "img/diagram.png", "png")

	waitFor(t, "asset listed", func() bool {
		assets, _ := v.db.Assets()
		return len(assets) == 1 && assets[0] == "img/diagram.png"
	})
	waitFor(t, "assets callback", func() bool { return v.seen("assets:") })
}

func TestHiddenPath(t *testing.T) {
	cases := map[string]bool{
		"note.md":             false,
		"sub/note.md":         false,
		".obsidian/workspace": true,
		"sub/.ansuz-tmp-123":  true,
		"./note.md":           false,
	}
	for in, want := range cases {
		if got := hiddenPath(in); got != want {
			t.Errorf("hiddenPath(%q) = %v, want %v", in, got, want)
		}
	}
}
