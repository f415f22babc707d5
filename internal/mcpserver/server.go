// Package mcpserver provides an MCP (Model Context Protocol) server that
// lets LLM clients inspect and trigger publishing runs over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/publish"
	"github.com/starford/ansuz/internal/storage"
)

const contractURI = "ansuz://publish-contract"

// Publisher selects candidates and executes runs.
type Publisher interface {
	Candidates(ctx context.Context) ([]publish.Candidate, error)
	Run(ctx context.Context, req publish.RunRequest) (index.RunRecord, error)
}

// RunLister reads the run journal.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]index.RunRecord, error)
}

// Server wraps the MCP server with the publishing tools.
type Server struct {
	mcp   *server.MCPServer
	pub   Publisher
	runs  RunLister
	store storage.Provider
}

// New creates a new MCP server with all tools registered.
func New(pub Publisher, runs RunLister, store storage.Provider, version string) *Server {
	s := &Server{pub: pub, runs: runs, store: store}

	s.mcp = server.NewMCPServer(
		"ansuz",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_candidates",
		mcp.WithDescription("List the notes the next publishing run would send, with the action "+
			"(create or update) and any batch conflict. Does not contact the blog."),
	), s.listCandidates)

	s.mcp.AddTool(mcp.NewTool("publish",
		mcp.WithDescription("Run the publishing pipeline: select notes, send them to the blog and "+
			"write the remote ids back into the notes. Use dry_run to stop before sending."),
		mcp.WithBoolean("dry_run", mcp.Description("Select and validate only"), mcp.DefaultBool(false)),
	), s.publish)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent publishing runs with per-note results, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the raw content of a note, including its front matter."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("get_publish_contract",
		mcp.WithDescription("Returns the front matter contract a note must follow to be published. "+
			"Call this before editing publishing metadata."),
	), s.getPublishContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Publishing Contract",
			mcp.WithResourceDescription("Front matter keys read and written by the publishing pipeline."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonText(v any) string {
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func (s *Server) listCandidates(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cands, err := s.pub.Candidates(ctx)
	if errors.Is(err, apperr.ErrNoCandidates) {
		return mcp.NewToolResultText("no note to publish"), nil
	}

	summaries := make([]publish.CandidateSummary, 0, len(cands))
	for _, c := range cands {
		summaries = append(summaries, c.Summary())
	}

	var conflict *publish.ConflictError
	switch {
	case err == nil:
		return mcp.NewToolResultText(jsonText(summaries)), nil
	case errors.As(err, &conflict):
		return mcp.NewToolResultError(fmt.Sprintf("%v\n\n%s", err, jsonText(summaries))), nil
	default:
		return mcp.NewToolResultError(err.Error()), nil
	}
}

func (s *Server) publish(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dryRun := req.GetBool("dry_run", false)
	rec, err := s.pub.Run(ctx, publish.RunRequest{Trigger: publish.TriggerMCP, DryRun: dryRun})
	switch {
	case err == nil:
		return mcp.NewToolResultText(jsonText(rec)), nil
	case errors.Is(err, apperr.ErrRunInProgress):
		return mcp.NewToolResultError("a publishing run is already in progress"), nil
	case errors.Is(err, apperr.ErrNoCandidates), errors.Is(err, apperr.ErrPlatformDisabled):
		return mcp.NewToolResultText(fmt.Sprintf("%v\n\n%s", err, jsonText(rec))), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("%v\n\n%s", err, jsonText(rec))), nil
	}
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.runs.ListRuns(ctx, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("no runs recorded"), nil
	}
	return mcp.NewToolResultText(jsonText(runs)), nil
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !strings.HasSuffix(path, ".md") {
		return mcp.NewToolResultError("path must end with .md"), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getPublishContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PublishContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     PublishContract,
		},
	}, nil
}
