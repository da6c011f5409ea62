// Package crawlengine implements the BFS walk over a single site: pop
// a URL from the frontier, fetch it, build a Document from what comes
// back, and enqueue its links for the next depth. It is the only
// component that talks to both Fetcher and IndexGateway.
package crawlengine

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/crawlstack/sitecrawl/internal/fetcher"
	"github.com/crawlstack/sitecrawl/internal/frontier"
	"github.com/crawlstack/sitecrawl/internal/index"
	"github.com/crawlstack/sitecrawl/internal/model"
	"github.com/crawlstack/sitecrawl/internal/store"
	"github.com/crawlstack/sitecrawl/pkg/failure"
	"github.com/crawlstack/sitecrawl/pkg/timeutil"
	"github.com/crawlstack/sitecrawl/pkg/urlutil"
)

// batchSize is the number of documents buffered before a flush to the
// index, per spec §4.3.
const batchSize = 10

// Engine runs one crawl to completion. A fresh Engine is not required
// per run — Run is safe to call repeatedly as long as callers don't
// invoke it concurrently for the same task id (the Supervisor enforces
// that single-writer-per-task guarantee).
type Engine struct {
	store      store.Store
	index      index.Gateway
	fetcher    fetcher.Fetcher
	sleeper    timeutil.Sleeper
	crawlDelay time.Duration
	log        zerolog.Logger
}

func New(st store.Store, idx index.Gateway, f fetcher.Fetcher, sleeper timeutil.Sleeper, crawlDelay time.Duration, log zerolog.Logger) *Engine {
	return &Engine{store: st, index: idx, fetcher: f, sleeper: sleeper, crawlDelay: crawlDelay, log: log}
}

// Run executes task to completion. domainRestriction, when non-empty,
// overrides the base domain the same-domain filter compares against;
// otherwise the base domain is derived from start_url's host.
//
// Run never returns an error: every outcome, including an unhandled
// panic, is reflected in the task's terminal Store state by the
// deferred finalizer, per spec §4.3's "deferred finalizer guarantees
// terminal state on any exit path".
func (e *Engine) Run(ctx context.Context, task model.Task, domainRestriction string) {
	log := e.log.With().Str("task_id", task.ID).Logger()

	startedAt := time.Now().UTC()
	running := model.TaskRunning
	if _, err := e.store.PatchTask(ctx, task.ID, model.TaskProgressPatch{Status: &running, StartedAt: &startedAt}); err != nil {
		log.Error().Err(err).Msg("failed to mark task running")
	}

	baseDomain := domainRestriction
	if baseDomain == "" {
		baseDomain = deriveBaseDomain(task.StartURL)
	}

	fr := frontier.New()
	normStart, err := urlutil.NormalizeString(task.StartURL)
	if err != nil {
		e.finalize(ctx, log, task.ID, 0, 0, 0, failure.Validation(fmt.Sprintf("invalid start_url: %v", err)))
		return
	}
	fr.Enqueue(normStart, 0)

	var successPages, failedPages int
	var batch []model.Document
	var runErr error

	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic during crawl: %v", r)
		}
		if len(batch) > 0 {
			if err := e.index.UpsertBatch(ctx, batch); err != nil {
				log.Error().Err(err).Msg("residual batch flush failed")
			}
		}
		e.finalize(ctx, log, task.ID, fr.VisitedCount(), successPages, failedPages, runErr)
	}()

	for fr.HasPending() && successPages+failedPages < task.MaxPages {
		tok, ok := fr.Dequeue()
		if !ok {
			break
		}

		normURL, err := urlutil.NormalizeString(tok.URL)
		if err != nil {
			continue
		}
		if fr.HasVisited(normURL) {
			continue
		}
		fr.Visit(normURL)

		if task.SameDomainOnly {
			parsed, err := url.Parse(normURL)
			if err != nil || !urlutil.SameDomain(parsed.Host, baseDomain) {
				continue
			}
		}

		e.reportProgress(ctx, log, task.ID, fr.VisitedCount(), successPages, failedPages, task.MaxPages)

		page, fetchErr := e.fetcher.Fetch(ctx, normURL)
		if fetchErr == nil && strings.TrimSpace(page.Text) != "" {
			doc := model.NewDocument(normURL, page.Title, page.Text, baseDomain, time.Now().UTC())
			batch = append(batch, doc)
			successPages++

			if len(batch) >= batchSize {
				if err := e.index.UpsertBatch(ctx, batch); err != nil {
					log.Error().Err(err).Msg("batch flush failed")
				}
				batch = batch[:0]
			}

			if tok.Depth < task.MaxDepth {
				e.enqueueLinks(fr, normURL, tok.Depth, page.InternalLinks)
			}
		} else {
			failedPages++
			if fetchErr != nil {
				log.Debug().Str("url", normURL).Err(fetchErr).Msg("page fetch failed")
			}
		}

		e.sleeper.Sleep(e.crawlDelay)
	}
}

func (e *Engine) enqueueLinks(fr *frontier.Frontier, pageURL string, depth int, hrefs []string) {
	parsedPage, err := url.Parse(pageURL)
	if err != nil {
		return
	}
	for _, href := range hrefs {
		resolved, ok := urlutil.Resolve(*parsedPage, href)
		if !ok {
			continue
		}
		normalized := urlutil.Normalize(resolved).String()
		if !fr.HasVisited(normalized) {
			fr.Enqueue(normalized, depth+1)
		}
	}
}

// reportProgress is best-effort per spec §4.3: a write failure is
// logged and the run continues uninterrupted.
func (e *Engine) reportProgress(ctx context.Context, log zerolog.Logger, taskID string, totalPages, success, failed, maxPages int) {
	progress := model.ComputeProgress(success, failed, maxPages)
	_, err := e.store.PatchTask(ctx, taskID, model.TaskProgressPatch{
		Progress:     &progress,
		TotalPages:   &totalPages,
		SuccessPages: &success,
		FailedPages:  &failed,
	})
	if err != nil {
		log.Warn().Err(err).Msg("progress write failed")
	}
}

func (e *Engine) finalize(ctx context.Context, log zerolog.Logger, taskID string, totalPages, success, failed int, runErr error) {
	finishedAt := time.Now().UTC()
	patch := model.TaskProgressPatch{
		TotalPages:   &totalPages,
		SuccessPages: &success,
		FailedPages:  &failed,
		FinishedAt:   &finishedAt,
	}

	if runErr != nil {
		status := model.TaskFailed
		msg := failure.Truncate(runErr.Error(), 2000)
		patch.Status = &status
		patch.ErrorMessage = &msg
	} else {
		status := model.TaskSuccess
		progress := 100
		patch.Status = &status
		patch.Progress = &progress
	}

	if _, err := e.store.PatchTask(ctx, taskID, patch); err != nil {
		log.Error().Err(err).Msg("failed to write terminal task state")
	}
}

// deriveBaseDomain lowercases start_url's host when no explicit
// domain_restriction is supplied (spec §4.3).
func deriveBaseDomain(startURL string) string {
	u, err := url.Parse(startURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
