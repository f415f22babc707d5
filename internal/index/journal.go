package index

import (
	"context"
	"fmt"
	"time"
)

// RunRecord is one entry of the publish journal.
type RunRecord struct {
	ID         string         `json:"id"`
	Trigger    string         `json:"trigger"`
	DryRun     bool           `json:"dry_run"`
	Outcome    string         `json:"outcome"`
	Message    string         `json:"message,omitempty"`
	Candidates int            `json:"candidates"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Written    int            `json:"written"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    []ResultRecord `json:"results,omitempty"`
}

// ResultRecord is the dispatch result of one candidate within a run.
type ResultRecord struct {
	Path      string `json:"path"`
	Slug      string `json:"slug"`
	Action    string `json:"action"`
	RemoteID  string `json:"remote_id,omitempty"`
	RemoteURL string `json:"remote_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RecordRun stores a finished run and its per-candidate results.
func (db *DB) RecordRun(ctx context.Context, run RunRecord) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO publish_runs (id, trigger, dry_run, outcome, message, candidates, succeeded, failed, written, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Trigger, run.DryRun, run.Outcome, run.Message, run.Candidates,
		run.Succeeded, run.Failed, run.Written, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: insert run: %w", err)
	}

	if len(run.Results) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO publish_results (run_id, path, slug, action, remote_id, remote_url, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("index: prepare result insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range run.Results {
			if _, err := stmt.ExecContext(ctx, run.ID, r.Path, r.Slug, r.Action, r.RemoteID, r.RemoteURL, r.Error); err != nil {
				return fmt.Errorf("index: insert result: %w", err)
			}
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs first, each with its results.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, trigger, dry_run, outcome, message, candidates, succeeded, failed, written, started_at, finished_at
		FROM publish_runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: list runs: %w", err)
	}

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Trigger, &r.DryRun, &r.Outcome, &r.Message, &r.Candidates,
			&r.Succeeded, &r.Failed, &r.Written, &r.StartedAt, &r.FinishedAt); err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		results, err := db.runResults(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Results = results
	}
	return runs, nil
}

func (db *DB) runResults(ctx context.Context, runID string) ([]ResultRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT path, slug, action, remote_id, remote_url, error
		FROM publish_results
		WHERE run_id = ?
		ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("index: run results: %w", err)
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		var r ResultRecord
		if err := rows.Scan(&r.Path, &r.Slug, &r.Action, &r.RemoteID, &r.RemoteURL, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
