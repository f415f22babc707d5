package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/publish"
)

const maxRuns = 200

// Handler holds API route handlers.
type Handler struct {
	pub   Publisher
	cache Cache
}

// NewHandler creates a new Handler.
func NewHandler(pub Publisher, cache Cache) *Handler {
	return &Handler{pub: pub, cache: cache}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Encoded slashes (topics%2Fnote.md) are accepted.
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Candidates handles GET /api/candidates: a selection pass without any
// remote call.
func (h *Handler) Candidates(w http.ResponseWriter, r *http.Request) {
	cands, err := h.pub.Candidates(r.Context())
	resp := CandidatesResponse{Candidates: []publish.CandidateSummary{}}
	for _, c := range cands {
		resp.Candidates = append(resp.Candidates, c.Summary())
	}

	var conflict *publish.ConflictError
	switch {
	case err == nil, errors.Is(err, apperr.ErrNoCandidates):
		writeJSON(w, http.StatusOK, resp)
	case errors.As(err, &conflict):
		resp.Conflict = conflict.Error()
		writeJSON(w, http.StatusConflict, resp)
	default:
		slog.Error("api: list candidates failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Publish handles POST /api/publish. The body is optional; ?dry_run=true
// has the same effect as {"dry_run": true}.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if v := r.URL.Query().Get("dry_run"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("dry_run must be a boolean"))
			return
		}
		req.DryRun = dry
	}

	rec, err := h.pub.Run(r.Context(), publish.RunRequest{Trigger: publish.TriggerAPI, DryRun: req.DryRun})
	resp := PublishResponse{Run: rec}
	if err != nil {
		resp.Error = err.Error()
	}

	var conflict *publish.ConflictError
	switch {
	case err == nil, errors.Is(err, apperr.ErrNoCandidates), errors.Is(err, apperr.ErrPlatformDisabled):
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, apperr.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, errorBody("a publishing run is already in progress"))
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, apperr.ErrInvalidPlatformConfig):
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		slog.Error("api: publish failed", slog.String("run", rec.ID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

// Runs handles GET /api/runs.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > maxRuns {
		limit = maxRuns
	}
	runs, err := h.cache.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("api: list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if runs == nil {
		runs = []index.RunRecord{}
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// Note handles GET /api/notes/*: what the metadata cache knows about a note.
func (h *Handler) Note(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	row, err := h.cache.GetNote(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("api: get note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, noteResponse(row))
}
