package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/validate"
)

// Run outcomes recorded in the journal and in metrics.
const (
	OutcomeCompleted    = "completed"
	OutcomePartial      = "completed_with_errors"
	OutcomeDryRun       = "dry_run"
	OutcomeNoCandidates = "no_candidates"
	OutcomeConflict     = "conflict"
	OutcomeDisabled     = "disabled"
	OutcomeInvalid      = "invalid_config"
	OutcomeFailed       = "failed"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerCLI      Trigger = "cli"
	TriggerAPI      Trigger = "api"
	TriggerMCP      Trigger = "mcp"
	TriggerSchedule Trigger = "schedule"
)

// PlatformConfig is the connection setup of the publishing platform.
type PlatformConfig struct {
	Enabled    bool
	APIURL     string
	BaseURL    string
	AdminToken string
}

// Usable reports whether the configuration can reach the platform.
func (c PlatformConfig) Usable() bool {
	return validate.URL(c.APIURL) && validate.URL(c.BaseURL) && validate.Credential(c.AdminToken)
}

// CatalogFunc returns a fresh snapshot of the metadata cache.
type CatalogFunc func() (DocumentIndex, error)

// Journal records finished runs.
type Journal interface {
	RecordRun(ctx context.Context, run index.RunRecord) error
}

// Publisher runs the publishing pipeline: select, validate the batch,
// dispatch, write back. Only one run executes at a time.
type Publisher struct {
	mu sync.Mutex

	store    Store
	catalog  CatalogFunc
	cfg      PlatformConfig
	platform Platform
	renderer Renderer
	media    MediaHost
	journal  Journal
	notifier Notifier
	recorder metrics.Recorder
	onRun    func(index.RunRecord)
	logger   *slog.Logger
	delay    time.Duration
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithPlatform sets the remote platform and its configuration.
func WithPlatform(cfg PlatformConfig, p Platform) Option {
	return func(x *Publisher) { x.cfg, x.platform = cfg, p }
}

// WithRenderer sets the Markdown renderer.
func WithRenderer(r Renderer) Option {
	return func(x *Publisher) { x.renderer = r }
}

// WithMediaHost enables image embed uploads.
func WithMediaHost(m MediaHost) Option {
	return func(x *Publisher) { x.media = m }
}

// WithJournal records every run.
func WithJournal(j Journal) Option {
	return func(x *Publisher) { x.journal = j }
}

// WithNotifier sets where notices go.
func WithNotifier(n Notifier) Option {
	return func(x *Publisher) { x.notifier = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(x *Publisher) { x.recorder = r }
}

// WithRunHook registers fn to be called with the record of every finished run.
func WithRunHook(fn func(index.RunRecord)) Option {
	return func(x *Publisher) { x.onRun = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Publisher) { x.logger = l }
}

// NewPublisher creates a Publisher over store and the given cache snapshots.
func NewPublisher(store Store, catalog CatalogFunc, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		catalog:  catalog,
		notifier: noopNotifier{},
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		delay:    DelayBetweenCalls,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Candidates selects and cross-checks the notes a run would publish without
// contacting the platform. The candidates are returned even when the batch
// has a conflict.
func (p *Publisher) Candidates(ctx context.Context) ([]Candidate, error) {
	idx, err := p.catalog()
	if err != nil {
		return nil, err
	}
	cands, err := NewSelector(idx, p.store, p.cfg.BaseURL, nil, p.logger).Select(ctx)
	if err != nil {
		return nil, err
	}
	return cands, ValidateBatch(cands)
}

// RunRequest parameterises a run.
type RunRequest struct {
	Trigger Trigger
	DryRun  bool
}

// Run executes one publishing run and returns its journal record. The error
// is apperr.ErrNoCandidates, apperr.ErrPlatformDisabled, a *ConflictError,
// apperr.ErrInvalidPlatformConfig, apperr.ErrRunInProgress or an
// infrastructure failure; per-candidate failures are reported in the record.
func (p *Publisher) Run(ctx context.Context, req RunRequest) (index.RunRecord, error) {
	if !p.mu.TryLock() {
		return index.RunRecord{}, apperr.ErrRunInProgress
	}
	defer p.mu.Unlock()

	rec := index.RunRecord{
		ID:        uuid.NewString(),
		Trigger:   string(req.Trigger),
		DryRun:    req.DryRun,
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With(slog.String("run", rec.ID))
	logger.Info("publisher: run started", slog.String("trigger", rec.Trigger), slog.Bool("dry_run", req.DryRun))

	err := p.run(ctx, req, &rec, logger)
	if err != nil {
		rec.Message = err.Error()
	}
	rec.FinishedAt = time.Now().UTC()

	p.recorder.IncRunOutcome(rec.Outcome)
	p.recorder.ObserveRunDuration(rec.FinishedAt.Sub(rec.StartedAt))
	if p.journal != nil {
		// The run is over; record it even if the caller gave up waiting.
		if jerr := p.journal.RecordRun(context.WithoutCancel(ctx), rec); jerr != nil {
			logger.Error("publisher: journal failed", slog.String("error", jerr.Error()))
		}
	}
	logger.Info("publisher: run finished",
		slog.String("outcome", rec.Outcome),
		slog.Int("candidates", rec.Candidates),
		slog.Int("succeeded", rec.Succeeded),
		slog.Int("failed", rec.Failed),
		slog.Int("written", rec.Written))
	if p.onRun != nil {
		p.onRun(rec)
	}
	return rec, err
}

func (p *Publisher) run(ctx context.Context, req RunRequest, rec *index.RunRecord, logger *slog.Logger) error {
	idx, err := p.catalog()
	if err != nil {
		return p.fail(rec, err)
	}

	cands, err := NewSelector(idx, p.store, p.cfg.BaseURL, p.notifier, logger).Select(ctx)
	if errors.Is(err, apperr.ErrNoCandidates) {
		rec.Outcome = OutcomeNoCandidates
		p.notifier.Notify(notice(LevelInfo, "No note to publish"))
		return err
	}
	if err != nil {
		return p.fail(rec, err)
	}
	rec.Candidates = len(cands)

	if err := ValidateBatch(cands); err != nil {
		rec.Outcome = OutcomeConflict
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			p.notifier.Notify(notice(LevelError, fmt.Sprintf(
				"Aborting: %v %q is used by %v. Fix the issue and try again", conflict.Kind, conflict.Value, conflict.Paths)))
		}
		return err
	}

	if req.DryRun {
		rec.Outcome = OutcomeDryRun
		rec.Results = results(cands, nil)
		return nil
	}

	if !p.cfg.Enabled {
		rec.Outcome = OutcomeDisabled
		p.notifier.Notify(notice(LevelInfo, "Publishing is disabled; nothing was sent"))
		rec.Results = results(cands, nil)
		return apperr.ErrPlatformDisabled
	}
	if !p.cfg.Usable() || p.platform == nil || p.renderer == nil {
		rec.Outcome = OutcomeInvalid
		p.notifier.Notify(notice(LevelError, "The publishing settings are invalid. Please fix the configuration and try again"))
		return apperr.ErrInvalidPlatformConfig
	}

	d := NewDispatcher(p.platform, p.renderer, p.media, p.store, p.notifier, p.recorder, logger)
	d.delay = p.delay
	outcomes := d.Dispatch(ctx, cands)

	rec.Written = Writeback(ctx, p.store, cands, outcomes, logger)
	rec.Succeeded = outcomes.Succeeded()
	rec.Failed = len(cands) - rec.Succeeded
	rec.Results = results(cands, outcomes)
	rec.Outcome = OutcomeCompleted
	if rec.Failed > 0 {
		rec.Outcome = OutcomePartial
	}
	return nil
}

func (p *Publisher) fail(rec *index.RunRecord, err error) error {
	rec.Outcome = OutcomeFailed
	p.notifier.Notify(notice(LevelError, fmt.Sprintf("Publishing failed: %v", err)))
	return err
}

func results(cands []Candidate, outcomes Outcomes) []index.ResultRecord {
	out := make([]index.ResultRecord, 0, len(cands))
	for _, c := range cands {
		r := index.ResultRecord{
			Path:      c.Document.Path,
			Slug:      c.Metadata.Slug,
			Action:    c.Action.String(),
			RemoteID:  c.RemoteID,
			RemoteURL: c.RemoteURL,
		}
		if o, ok := outcomes[c.Metadata.Slug]; ok {
			if o.OK() {
				r.RemoteID, r.RemoteURL = o.RemoteID, o.RemoteURL
			} else {
				r.Error = o.Err.Error()
			}
		}
		out = append(out, r)
	}
	return out
}
