package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory vault.
type memStore struct {
	mu     sync.Mutex
	files  map[string][]byte
	writes int
}

func newMemStore(files map[string]string) *memStore {
	s := &memStore{files: make(map[string][]byte, len(files))}
	for p, c := range files {
		s.files[p] = []byte(c)
	}
	return s
}

func (s *memStore) Read(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("memstore: %s: not found", path)
	}
	return append([]byte(nil), data...), nil
}

func (s *memStore) Write(path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = append([]byte(nil), content...)
	s.writes++
	return nil
}

func (s *memStore) get(t *testing.T, path string) string {
	t.Helper()
	data, err := s.Read(path)
	require.NoError(t, err)
	return string(data)
}

// catalogOf builds a metadata snapshot of every file in the store, the way
// the index does it.
func catalogOf(t *testing.T, s *memStore) *index.Catalog {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []models.Document
	var assets []string
	for p, data := range s.files {
		if !strings.HasSuffix(p, ".md") {
			assets = append(assets, p)
			continue
		}
		res, err := parser.Parse(data)
		require.NoError(t, err)
		docs = append(docs, models.Document{
			Path:        p,
			Frontmatter: res.Frontmatter,
			Links:       res.Links,
			Embeds:      res.Embeds,
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	sort.Strings(assets)
	return index.NewCatalog(docs, assets)
}

func docWith(path string, fm map[string]any) models.Document {
	return models.Document{Path: path, Frontmatter: fm}
}

// fakePlatform records calls and answers from a script.
type fakePlatform struct {
	mu      sync.Mutex
	creates []Post
	updates []Post
	failOn  map[string]error // slug → error
	nextID  int
}

func (f *fakePlatform) Create(_ context.Context, post Post) (RemotePost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, post)
	return f.answer(post)
}

func (f *fakePlatform) Update(_ context.Context, post Post) (RemotePost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, post)
	return f.answer(post)
}

func (f *fakePlatform) answer(post Post) (RemotePost, error) {
	if err := f.failOn[post.Slug]; err != nil {
		return RemotePost{}, err
	}
	id := post.ID
	if id == "" {
		f.nextID++
		id = fmt.Sprintf("id-%d", f.nextID)
	}
	return RemotePost{
		ID:        id,
		URL:       "https://blog.test/" + post.Slug + "/",
		UpdatedAt: "2026-01-02T03:04:05.000Z",
		Title:     post.Title,
	}, nil
}

func (f *fakePlatform) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.updates)
}

// echoRenderer returns the Markdown unchanged, so tests can inspect the body
// that would have been rendered.
type echoRenderer struct{}

func (echoRenderer) Render(md string) (string, error) { return md, nil }

type failingRenderer struct{}

func (failingRenderer) Render(string) (string, error) { return "", errors.New("render boom") }

// fakeMedia uploads to an imaginary CDN.
type fakeMedia struct {
	uploaded []string
	fail     bool
}

func (m *fakeMedia) UploadImage(_ context.Context, name string, _ []byte) (string, error) {
	if m.fail {
		return "", errors.New("upload boom")
	}
	m.uploaded = append(m.uploaded, name)
	return "https://cdn.test/" + name, nil
}

// noticeLog collects notices.
type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) Notify(x Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, x)
}

func (n *noticeLog) contains(level Level, substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, x := range n.notices {
		if x.Level == level && strings.Contains(x.Message, substr) {
			return true
		}
	}
	return false
}

type memJournal struct {
	runs []index.RunRecord
}

func (j *memJournal) RecordRun(_ context.Context, run index.RunRecord) error {
	j.runs = append(j.runs, run)
	return nil
}
