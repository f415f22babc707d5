package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/publish"
	"github.com/starford/ansuz/internal/testutil"
)

const (
	publishedNote = "---\npublish_status: published\npublish_slug: %s\n---\nHello.\n"
	draftNote     = "---\npublish_status: draft\npublish_slug: draft-one\n---\nDraft.\n"
)

type env struct {
	router   http.Handler
	vault    string
	platform *testutil.Platform
	pub      *publish.Publisher
}

func testEnv(t *testing.T, authToken string, opts ...publish.Option) *env {
	t.Helper()
	pub, vault, db, platform := testutil.Publisher(t, opts...)
	router := NewRouter(pub, db, authToken != "", authToken, nil)
	return &env{router: router, vault: vault, platform: platform, pub: pub}
}

func note(slug string) string {
	return strings.Replace(publishedNote, "%s", slug, 1)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCandidates(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.vault, "Hello.md", note("hello"))
	testutil.WriteNote(t, e.vault, "drafts/Draft.md", draftNote)
	testutil.WriteNote(t, e.vault, "plain.md", "# no front matter\n")

	w := do(t, e.router, http.MethodGet, "/candidates", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp CandidatesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(resp.Candidates))
	}
	if resp.Candidates[0].Path != "Hello.md" || resp.Candidates[0].Slug != "hello" {
		t.Errorf("first candidate = %+v", resp.Candidates[0])
	}
	if resp.Candidates[0].Action != publish.ActionCreate {
		t.Errorf("action = %v, want create", resp.Candidates[0].Action)
	}
	if e.platform.Calls() != 0 {
		t.Errorf("listing candidates must not call the platform")
	}
}

func TestCandidates_Empty(t *testing.T) {
	e := testEnv(t, "")
	w := do(t, e.router, http.MethodGet, "/candidates", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"candidates":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCandidates_Conflict(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.vault, "a.md", note("same"))
	testutil.WriteNote(t, e.vault, "b.md", note("same"))

	w := do(t, e.router, http.MethodGet, "/candidates", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp CandidatesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Conflict, "a.md, b.md") {
		t.Errorf("conflict = %q", resp.Conflict)
	}
	if len(resp.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(resp.Candidates))
	}
}

func TestPublish(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.vault, "Hello.md", note("hello"))

	w := do(t, e.router, http.MethodPost, "/publish", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PublishResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Run.Outcome != publish.OutcomeCompleted || resp.Run.Succeeded != 1 {
		t.Errorf("run = %+v", resp.Run)
	}
	if resp.Run.Trigger != string(publish.TriggerAPI) {
		t.Errorf("trigger = %q", resp.Run.Trigger)
	}
	if len(e.platform.Created) != 1 || e.platform.Created[0].Slug != "hello" {
		t.Errorf("created = %+v", e.platform.Created)
	}

	w = do(t, e.router, http.MethodGet, "/runs", "")
	var runs RunsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &runs)
	if len(runs.Runs) != 1 || runs.Runs[0].ID != resp.Run.ID {
		t.Errorf("runs = %+v", runs.Runs)
	}
}

func TestPublish_DryRun(t *testing.T) {
	for _, tc := range []struct{ target, body string }{
		{"/publish?dry_run=true", ""},
		{"/publish", `{"dry_run":true}`},
	} {
		e := testEnv(t, "")
		testutil.WriteNote(t, e.vault, "Hello.md", note("hello"))

		w := do(t, e.router, http.MethodPost, tc.target, tc.body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s %s: status = %d", tc.target, tc.body, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"outcome":"dry_run"`) {
			t.Errorf("body = %s", w.Body.String())
		}
		if e.platform.Calls() != 0 {
			t.Errorf("dry run called the platform")
		}
	}
}

func TestPublish_BadRequest(t *testing.T) {
	e := testEnv(t, "")
	if w := do(t, e.router, http.MethodPost, "/publish", "{"); w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", w.Code)
	}
	if w := do(t, e.router, http.MethodPost, "/publish?dry_run=maybe", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid dry_run = %d, want 400", w.Code)
	}
}

func TestPublish_NoCandidates(t *testing.T) {
	e := testEnv(t, "")
	w := do(t, e.router, http.MethodPost, "/publish", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"outcome":"no_candidates"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestPublish_Conflict(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.vault, "x/Note.md", note("one"))
	testutil.WriteNote(t, e.vault, "y/Note.md", note("two"))

	w := do(t, e.router, http.MethodPost, "/publish", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if e.platform.Calls() != 0 {
		t.Errorf("conflicting batch reached the platform")
	}
}

func TestPublish_InvalidConfig(t *testing.T) {
	cfg := testutil.PlatformConfig
	cfg.AdminToken = "missing-secret"
	e := testEnv(t, "", publish.WithPlatform(cfg, &testutil.Platform{}))
	testutil.WriteNote(t, e.vault, "Hello.md", note("hello"))

	w := do(t, e.router, http.MethodPost, "/publish", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestPublish_Disabled(t *testing.T) {
	cfg := testutil.PlatformConfig
	cfg.Enabled = false
	e := testEnv(t, "", publish.WithPlatform(cfg, &testutil.Platform{}))
	testutil.WriteNote(t, e.vault, "Hello.md", note("hello"))

	w := do(t, e.router, http.MethodPost, "/publish", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"outcome":"disabled"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestPublish_RunInProgress(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once bool
	hook := publish.WithRenderer(rendererFunc(func(md string) (string, error) {
		if !once {
			once = true
			close(started)
			<-release
		}
		return md, nil
	}))
	e := testEnv(t, "", hook)
	testutil.WriteNote(t, e.vault, "Hello.md", note("hello"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		do(t, e.router, http.MethodPost, "/publish", "")
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not start")
	}
	w := do(t, e.router, http.MethodPost, "/publish", "")
	close(release)
	<-done
	if w.Code != http.StatusConflict {
		t.Errorf("overlapping run = %d, want 409", w.Code)
	}
}

type rendererFunc func(string) (string, error)

func (f rendererFunc) Render(md string) (string, error) { return f(md) }

func TestRuns_Empty(t *testing.T) {
	e := testEnv(t, "")
	w := do(t, e.router, http.MethodGet, "/runs?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"runs":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/candidates", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret123")
	if w := do(t, e.router, http.MethodPost, "/publish", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
	if e.platform.Calls() != 0 {
		t.Errorf("unauthenticated request reached the platform")
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	pub, _, db, _ := testutil.Publisher(t)
	router := NewRouter(pub, db, true, "tok", blockingSSE())

	if w := do(t, router, http.MethodGet, "/events", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

// blockingSSE writes stream headers and blocks until the client goes away.
func blockingSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestNote(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.vault, "topics/Hello.md", "---\npublish_status: draft\npublish_slug: hello\ntags: [go]\n---\n# Greeting\n\nSee [[Other]].\n")
	// Listing candidates refreshes the cache.
	do(t, e.router, http.MethodGet, "/candidates", "")

	for _, target := range []string{"/notes/topics/Hello.md", "/notes/topics%2FHello.md"} {
		w := do(t, e.router, http.MethodGet, target, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body = %s", target, w.Code, w.Body.String())
		}
		var note NoteResponse
		if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
			t.Fatal(err)
		}
		if note.Path != "topics/Hello.md" || note.Title != "Greeting" {
			t.Errorf("note = %+v", note)
		}
		if note.Frontmatter["publish_slug"] != "hello" {
			t.Errorf("frontmatter = %v", note.Frontmatter)
		}
		if len(note.Links) != 1 || note.Links[0].Link != "Other" {
			t.Errorf("links = %+v", note.Links)
		}
	}

	if w := do(t, e.router, http.MethodGet, "/notes/missing.md", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}
