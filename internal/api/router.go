package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/publish"
)

// Publisher selects candidates and executes runs.
type Publisher interface {
	Candidates(ctx context.Context) ([]publish.Candidate, error)
	Run(ctx context.Context, req publish.RunRequest) (index.RunRecord, error)
}

// Cache reads the run journal and the note metadata cache.
type Cache interface {
	ListRuns(ctx context.Context, limit int) ([]index.RunRecord, error)
	GetNote(path string) (*index.NoteRow, error)
}

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events behind the same auth.
func NewRouter(pub Publisher, cache Cache, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(pub, cache)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/candidates", h.Candidates)
	r.Post("/publish", h.Publish)
	r.Get("/runs", h.Runs)
	r.Get("/notes/*", h.Note)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
