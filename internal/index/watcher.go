package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventAssets  = "assets"
)

const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven cache change.
// kind is one of the Event* constants; path is empty for EventAssets.
type EventCallback func(kind string, path string)

type vaultWatcher struct {
	fsw    *fsnotify.Watcher
	db     *DB
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback

	pending *time.Timer
}

// Watch keeps the metadata cache in step with the vault until ctx is
// cancelled, calling cb (if non-nil) after each cache mutation.
//
// Directories created at runtime are watched too. Renames, new
// directories and attachment changes are settled by a debounced
// reconciliation against the vault listing.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := watchTree(fsw, vaultRoot); err != nil {
		return err
	}

	w := &vaultWatcher{fsw: fsw, db: db, store: store, root: vaultRoot, logger: logger, cb: cb}
	defer w.stopPending()
	logger.Info("watcher: started", slog.String("root", vaultRoot))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil
		case <-w.pendingC():
			w.pending = nil
			reconcile(db, store, logger, w.notify)
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case werr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}

func (w *vaultWatcher) notify(kind, path string) {
	if w.cb != nil {
		w.cb(kind, path)
	}
}

// pendingC returns the reconcile timer channel; nil blocks forever.
func (w *vaultWatcher) pendingC() <-chan time.Time {
	if w.pending == nil {
		return nil
	}
	return w.pending.C
}

func (w *vaultWatcher) stopPending() {
	if w.pending != nil {
		w.pending.Stop()
	}
}

func (w *vaultWatcher) scheduleReconcile() {
	if w.pending == nil {
		w.pending = time.NewTimer(reconcileDelay)
		return
	}
	w.pending.Reset(reconcileDelay)
}

func (w *vaultWatcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || hiddenPath(rel) {
		return
	}
	rel = filepath.ToSlash(rel)

	if ev.Has(fsnotify.Create) {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			w.addDir(ev.Name)
			return
		}
	}

	if !strings.HasSuffix(rel, ".md") {
		if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			w.scheduleReconcile()
		}
		return
	}

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		w.indexNote(rel)
	case ev.Has(fsnotify.Remove):
		w.dropNote(rel)
	case ev.Has(fsnotify.Rename):
		// Only the old name is reported; the new one arrives as a Create
		// when it stays inside a watched directory.
		w.dropNote(rel)
		w.scheduleReconcile()
	}
}

func (w *vaultWatcher) addDir(abs string) {
	if err := watchTree(w.fsw, abs); err != nil {
		w.logger.Warn("watcher: add dir failed", slog.String("path", abs), slog.String("error", err.Error()))
	} else {
		w.logger.Debug("watcher: watching dir", slog.String("path", abs))
	}
	// Files may already exist in the new directory.
	w.scheduleReconcile()
}

func (w *vaultWatcher) indexNote(rel string) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	// Writeback renames identical bytes into place; editors re-save them.
	cached, _ := w.db.GetChecksum(rel)
	if cached == checksum.Sum(data) {
		return
	}
	kind := EventUpdated
	if cached == "" {
		kind = EventCreated
	}
	if err := indexFile(w.db, rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.notify(kind, rel)
}

func (w *vaultWatcher) dropNote(rel string) {
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.notify(EventDeleted, rel)
}

// reconcile removes cache entries without a file on disk, indexes files
// that are missing or changed, and refreshes the attachment list.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, notify EventCallback) {
	cached, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	onDisk := make(map[string]string, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = m.Checksum
	}

	for p := range cached {
		if _, ok := onDisk[p]; ok {
			continue
		}
		if err := db.DeleteNote(p); err == nil {
			logger.Debug("reconcile: removed stale", slog.String("path", p))
			notify(EventDeleted, p)
		}
	}

	for p, sum := range onDisk {
		old, known := cached[p]
		if known && old == sum {
			continue
		}
		data, err := store.Read(p)
		if err != nil {
			continue
		}
		if err := indexFile(db, p, data); err != nil {
			continue
		}
		kind := EventCreated
		if known {
			kind = EventUpdated
		}
		logger.Debug("reconcile: indexed", slog.String("path", p))
		notify(kind, p)
	}

	if err := syncAssets(db, store); err != nil {
		logger.Warn("reconcile: assets failed", slog.String("error", err.Error()))
		return
	}
	notify(EventAssets, "")
}

// hiddenPath reports whether rel lies in a dot-directory or is a dot-file.
func hiddenPath(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part != "." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// watchTree adds root and its non-hidden subdirectories to fsw.
func watchTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case !d.IsDir():
			return nil
		case path != root && strings.HasPrefix(d.Name(), "."):
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
