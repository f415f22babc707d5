package api

import (
	"time"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/publish"
)

// CandidatesResponse lists the notes the next run would publish.
type CandidatesResponse struct {
	Candidates []publish.CandidateSummary `json:"candidates"`
	// Conflict is set when the batch would be rejected.
	Conflict string `json:"conflict,omitempty"`
}

// PublishRequest is the optional body of POST /api/publish.
type PublishRequest struct {
	DryRun bool `json:"dry_run"`
}

// PublishResponse reports a finished run.
type PublishResponse struct {
	Run   index.RunRecord `json:"run"`
	Error string          `json:"error,omitempty"`
}

// RunsResponse lists journaled runs, newest first.
type RunsResponse struct {
	Runs []index.RunRecord `json:"runs"`
}

// NoteResponse is the cached metadata of one note.
type NoteResponse struct {
	Path        string             `json:"path"`
	Title       string             `json:"title"`
	Checksum    string             `json:"checksum"`
	Frontmatter map[string]any     `json:"frontmatter,omitempty"`
	Links       []models.Reference `json:"links"`
	Embeds      []models.Reference `json:"embeds"`
	Tags        []string           `json:"tags"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func noteResponse(row *index.NoteRow) NoteResponse {
	return NoteResponse{
		Path:        row.Path,
		Title:       row.Title,
		Checksum:    row.Checksum,
		Frontmatter: row.Frontmatter,
		Links:       row.Links,
		Embeds:      row.Embeds,
		Tags:        row.Tags,
		UpdatedAt:   row.UpdatedAt,
	}
}
