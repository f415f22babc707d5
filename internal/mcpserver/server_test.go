package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/publish"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/testutil"
)

type env struct {
	srv      *Server
	vault    string
	platform *testutil.Platform
}

func testServer(t *testing.T) *env {
	t.Helper()
	pub, vault, db, platform := testutil.Publisher(t)
	store, err := storage.NewFS(vault)
	if err != nil {
		t.Fatal(err)
	}
	return &env{srv: New(pub, db, store, "test"), vault: vault, platform: platform}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_candidates":
		result, err = srv.listCandidates(ctx, req)
	case "publish":
		result, err = srv.publish(ctx, req)
	case "list_runs":
		result, err = srv.listRuns(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "get_publish_contract":
		result, err = srv.getPublishContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

const helloNote = "---\npublish_status: published\npublish_slug: hello\n---\nHello.\n"

func TestListCandidates(t *testing.T) {
	e := testServer(t)
	r := callTool(t, e.srv, "list_candidates", nil)
	if got := resultText(r); got != "no note to publish" {
		t.Errorf("empty vault = %q", got)
	}

	testutil.WriteNote(t, e.vault, "Hello.md", helloNote)
	r = callTool(t, e.srv, "list_candidates", nil)
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	var got []publish.CandidateSummary
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Slug != "hello" || got[0].Title != "Hello" {
		t.Errorf("candidates = %+v", got)
	}
}

func TestListCandidates_Conflict(t *testing.T) {
	e := testServer(t)
	testutil.WriteNote(t, e.vault, "a.md", helloNote)
	testutil.WriteNote(t, e.vault, "b.md", helloNote)

	r := callTool(t, e.srv, "list_candidates", nil)
	if !r.IsError {
		t.Fatal("expected conflict error")
	}
	if !strings.Contains(resultText(r), "a.md, b.md") {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestPublish(t *testing.T) {
	e := testServer(t)
	testutil.WriteNote(t, e.vault, "Hello.md", helloNote)

	r := callTool(t, e.srv, "publish", map[string]any{"dry_run": true})
	if r.IsError || !strings.Contains(resultText(r), `"outcome": "dry_run"`) {
		t.Fatalf("dry run = %q", resultText(r))
	}
	if e.platform.Calls() != 0 {
		t.Fatal("dry run called the platform")
	}

	r = callTool(t, e.srv, "publish", nil)
	if r.IsError {
		t.Fatalf("publish failed: %s", resultText(r))
	}
	var rec index.RunRecord
	if err := json.Unmarshal([]byte(resultText(r)), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Trigger != "mcp" || rec.Succeeded != 1 {
		t.Errorf("run = %+v", rec)
	}

	r = callTool(t, e.srv, "list_runs", map[string]any{"limit": float64(1)})
	var runs []index.RunRecord
	if err := json.Unmarshal([]byte(resultText(r)), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != rec.ID {
		t.Errorf("runs = %+v", runs)
	}
}

func TestPublish_NoCandidates(t *testing.T) {
	e := testServer(t)
	r := callTool(t, e.srv, "publish", nil)
	if r.IsError {
		t.Fatalf("no candidates must not be an error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "no note to publish") {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestListRuns_Empty(t *testing.T) {
	e := testServer(t)
	if got := resultText(callTool(t, e.srv, "list_runs", nil)); got != "no runs recorded" {
		t.Errorf("list_runs = %q", got)
	}
}

func TestReadNote(t *testing.T) {
	e := testServer(t)
	testutil.WriteNote(t, e.vault, "Hello.md", helloNote)

	if got := resultText(callTool(t, e.srv, "read_note", map[string]any{"path": "Hello.md"})); got != helloNote {
		t.Errorf("read = %q", got)
	}
	if r := callTool(t, e.srv, "read_note", map[string]any{"path": "nope.md"}); !r.IsError {
		t.Error("expected error for missing note")
	}
	if r := callTool(t, e.srv, "read_note", map[string]any{"path": "pic.png"}); !r.IsError {
		t.Error("expected error for non-note path")
	}
}

func TestPublishContract(t *testing.T) {
	e := testServer(t)
	text := resultText(callTool(t, e.srv, "get_publish_contract", nil))
	for _, key := range []string{"publish_status", "publish_slug", "ghost_id", "publish_hash"} {
		if !strings.Contains(text, key) {
			t.Errorf("contract missing %s", key)
		}
	}

	contents, err := e.srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != contractURI {
		t.Errorf("resource = %+v", contents[0])
	}
}
