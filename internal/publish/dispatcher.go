package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/metrics"
)

// DelayBetweenCalls is the pause after every remote call of a run.
const DelayBetweenCalls = 300 * time.Millisecond

// Post is the platform-neutral payload of one publication.
type Post struct {
	// ID and UpdatedAt are set for updates only.
	ID        string
	UpdatedAt string
	Title     string
	Slug      string
	Status    string
	Tags      []string
	Excerpt   string
	HTML      string
}

// RemotePost is what the platform reports back after a create or update.
type RemotePost struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	UpdatedAt string `json:"updated_at"`
	Title     string `json:"title"`
}

// Platform is the remote publishing service.
type Platform interface {
	Create(ctx context.Context, post Post) (RemotePost, error)
	Update(ctx context.Context, post Post) (RemotePost, error)
}

// MediaHost stores images referenced by published posts and returns their public URL.
type MediaHost interface {
	UploadImage(ctx context.Context, name string, data []byte) (string, error)
}

// Renderer converts Markdown into the HTML sent to the platform.
type Renderer interface {
	Render(markdown string) (string, error)
}

// Outcome is the result of dispatching one candidate.
type Outcome struct {
	RemoteID        string
	RemoteURL       string
	RemoteUpdatedAt string
	Err             error
}

// OK reports whether the remote call succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Outcomes maps candidate slugs to their dispatch result.
type Outcomes map[string]Outcome

// Succeeded returns the number of successful outcomes.
func (o Outcomes) Succeeded() int {
	n := 0
	for _, x := range o {
		if x.OK() {
			n++
		}
	}
	return n
}

// Dispatcher sends candidates to the platform one at a time.
type Dispatcher struct {
	platform Platform
	renderer Renderer
	media    MediaHost
	store    Store
	notifier Notifier
	recorder metrics.Recorder
	logger   *slog.Logger
	delay    time.Duration
}

// NewDispatcher creates a Dispatcher. media may be nil, in which case image
// embeds are left untouched.
func NewDispatcher(platform Platform, renderer Renderer, media MediaHost, store Store, notifier Notifier, recorder metrics.Recorder, logger *slog.Logger) *Dispatcher {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		platform: platform,
		renderer: renderer,
		media:    media,
		store:    store,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
		delay:    DelayBetweenCalls,
	}
}

// Dispatch publishes every candidate in order and records one outcome per
// slug. A failing candidate never stops the run. Once ctx is done, the
// remaining candidates are recorded as failed without calling the platform.
func (d *Dispatcher) Dispatch(ctx context.Context, cands []Candidate) Outcomes {
	outcomes := make(Outcomes, len(cands))
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			outcomes[c.Metadata.Slug] = Outcome{Err: err}
			d.recorder.IncDispatch(c.Action.String(), metrics.ResultCanceled)
			continue
		}

		out := d.dispatchOne(ctx, c)
		outcomes[c.Metadata.Slug] = out
		if out.OK() {
			d.recorder.IncDispatch(c.Action.String(), metrics.ResultSuccess)
			d.logger.Info("dispatcher: published",
				slog.String("path", c.Document.Path),
				slog.String("slug", c.Metadata.Slug),
				slog.String("action", c.Action.String()),
				slog.String("url", out.RemoteURL))
			d.notifier.Notify(notice(LevelInfo, fmt.Sprintf("Published %q (%s)", c.Metadata.Title, out.RemoteURL)))
		} else {
			d.recorder.IncDispatch(c.Action.String(), metrics.ResultFailed)
			d.logger.Error("dispatcher: publish failed",
				slog.String("path", c.Document.Path),
				slog.String("slug", c.Metadata.Slug),
				slog.String("action", c.Action.String()),
				slog.String("error", out.Err.Error()))
			d.notifier.Notify(notice(LevelError, fmt.Sprintf("Failed to publish %q: %v", c.Metadata.Title, out.Err)))
		}

		d.wait(ctx)
	}
	return outcomes
}

func (d *Dispatcher) wait(ctx context.Context) {
	if d.delay <= 0 {
		return
	}
	t := time.NewTimer(d.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, c Candidate) Outcome {
	body := ApplyLinks(c.Body, c.Links)
	body = d.applyEmbeds(ctx, body, c)

	html, err := d.renderer.Render(body)
	if err != nil {
		return Outcome{Err: fmt.Errorf("render: %w", err)}
	}

	post := Post{
		Title:   c.Metadata.Title,
		Slug:    c.Metadata.Slug,
		Status:  c.Metadata.Status,
		Tags:    c.Metadata.Tags,
		Excerpt: c.Metadata.Excerpt,
		HTML:    html,
	}

	var remote RemotePost
	switch c.Action {
	case ActionCreate:
		remote, err = d.platform.Create(ctx, post)
	case ActionUpdate:
		post.ID = c.RemoteID
		post.UpdatedAt = c.RemoteUpdatedAt
		remote, err = d.platform.Update(ctx, post)
	default:
		panic(fmt.Sprintf("publish: unhandled action %v for %s", c.Action, c.Document.Path))
	}
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{RemoteID: remote.ID, RemoteURL: remote.URL, RemoteUpdatedAt: remote.UpdatedAt}
}

// applyEmbeds uploads resolved image embeds through the media host and
// points the body at the uploaded copies. An upload failure leaves the image
// name as plain text.
func (d *Dispatcher) applyEmbeds(ctx context.Context, body string, c Candidate) string {
	if d.media == nil {
		return body
	}
	for _, e := range c.Embeds {
		if !e.Image || !e.Resolved() {
			continue
		}
		name := path.Base(e.Path)
		replacement := name

		data, err := d.store.Read(e.Path)
		if err == nil {
			var link string
			link, err = d.media.UploadImage(ctx, name, data)
			if err == nil {
				replacement = "![" + name + "](" + link + ")"
			}
		}
		if err != nil {
			d.logger.Warn("dispatcher: image upload failed",
				slog.String("path", c.Document.Path),
				slog.String("image", e.Path),
				slog.String("error", err.Error()))
		}
		body = strings.ReplaceAll(body, e.Reference.Original, replacement)
	}
	return body
}
