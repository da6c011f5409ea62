// Package store persists Site and Task records. A Store is the single
// source of truth for crawl configuration and task history; the search
// index (internal/index) is a derived, best-effort view built from the
// Document stream a crawl produces, not from the Store itself.
package store

import (
	"context"
	"time"

	"github.com/crawlstack/sitecrawl/internal/model"
)

// SiteFilter narrows list_sites. A nil Enabled matches both states.
type SiteFilter struct {
	Enabled *bool
}

// TaskFilter narrows list_tasks by a known site, leaving every other
// task (including ad-hoc ones, whose SiteID is nil) out of the page.
type TaskFilter struct {
	SiteID *string
}

// Store is the persistence surface spec §4.1 names. Implementations
// must serialize writes to a single Task record (single-writer-per-task)
// but need not serialize across distinct records.
type Store interface {
	CreateSite(ctx context.Context, site model.Site) (model.Site, error)
	UpdateSite(ctx context.Context, id string, patch model.SitePatch) (model.Site, error)
	DeleteSite(ctx context.Context, id string) error
	GetSite(ctx context.Context, id string) (model.Site, error)
	ListSites(ctx context.Context, filter SiteFilter) ([]model.Site, error)
	// TouchSiteLastCrawl records that a crawl was just started for id.
	// Best-effort: the Supervisor logs rather than aborts on failure.
	TouchSiteLastCrawl(ctx context.Context, id string, at time.Time) error

	CreateTask(ctx context.Context, task model.Task) (model.Task, error)
	PatchTask(ctx context.Context, id string, patch model.TaskProgressPatch) (model.Task, error)
	GetTask(ctx context.Context, id string) (model.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter, page, pageSize int) ([]model.Task, int, error)

	// SweepOrphanedTasks transitions every task still marked running at
	// startup (an engine goroutine that died with the previous process)
	// to failed, per the orphan-sweep policy recorded in SPEC_FULL.md.
	SweepOrphanedTasks(ctx context.Context) (int, error)

	Close() error
}
