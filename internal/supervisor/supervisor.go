// Package supervisor owns the in-memory registry of crawls currently
// executing and is the only thing allowed to start a CrawlEngine run.
// It is what lets the API and the periodic Scheduler share one
// overlap-protection rule without either knowing about the other.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crawlstack/sitecrawl/internal/crawlengine"
	"github.com/crawlstack/sitecrawl/internal/model"
	"github.com/crawlstack/sitecrawl/internal/store"
	"github.com/crawlstack/sitecrawl/pkg/failure"
)

// Supervisor starts crawls as goroutines and tracks which site ids
// currently have a crawl in flight, per spec §4.5's overlap rule: a
// site already running is skipped rather than queued twice.
type Supervisor struct {
	store  store.Store
	engine *crawlengine.Engine
	log    zerolog.Logger

	mu           sync.RWMutex
	runningSites map[string]string // site id -> task id
}

func New(st store.Store, engine *crawlengine.Engine, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		store:        st,
		engine:       engine,
		log:          log,
		runningSites: make(map[string]string),
	}
}

// RecoverOrphans marks any task left "running" by a prior process as
// failed, per the orphan policy decided in DESIGN.md. Call once at
// startup before the scheduler or API can start new crawls.
func (s *Supervisor) RecoverOrphans(ctx context.Context) (int, error) {
	n, err := s.store.SweepOrphanedTasks(ctx)
	if err != nil {
		return 0, failure.Persistence(err)
	}
	if n > 0 {
		s.log.Warn().Int("count", n).Msg("swept orphaned running tasks from a prior process")
	}
	return n, nil
}

// IsRunning reports whether siteID currently has a crawl in flight.
func (s *Supervisor) IsRunning(siteID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.runningSites[siteID]
	return ok
}

// StartAdHoc starts an unscheduled crawl not tied to any Site record.
// siteID, if non-empty, attributes the resulting Task to an existing
// Site (for listing/grouping purposes) without applying its overlap
// guard; domainRestriction, if non-empty, overrides the domain the
// crawl derives from startURL, per spec §6's POST /crawl contract.
func (s *Supervisor) StartAdHoc(ctx context.Context, startURL string, maxDepth, maxPages int, sameDomainOnly bool, domainRestriction, siteID string) (model.Task, error) {
	task := model.Task{
		ID:             uuid.NewString(),
		StartURL:       startURL,
		MaxDepth:       maxDepth,
		MaxPages:       maxPages,
		SameDomainOnly: sameDomainOnly,
		Status:         model.TaskPending,
	}
	if siteID != "" {
		task.SiteID = &siteID
	}
	return s.start(ctx, task, domainRestriction)
}

// StartForSite starts a crawl on behalf of a configured Site, applying
// its domain restriction and updating its last_crawl_at timestamp.
// Returns (zero, nil) without starting anything if the site already
// has a crawl running.
func (s *Supervisor) StartForSite(ctx context.Context, site model.Site) (model.Task, error) {
	if s.IsRunning(site.ID) {
		return model.Task{}, nil
	}

	siteID := site.ID
	task := model.Task{
		ID:             uuid.NewString(),
		SiteID:         &siteID,
		StartURL:       site.StartURL,
		MaxDepth:       site.MaxDepth,
		MaxPages:       site.MaxPages,
		SameDomainOnly: site.SameDomainOnly,
		Status:         model.TaskPending,
	}

	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return model.Task{}, failure.Persistence(err)
	}

	// Track before spawning: the goroutine may finish and untrack
	// before this function would otherwise get a chance to track,
	// which would leak a permanently "running" site entry.
	s.track(site.ID, created.ID)

	if err := s.store.TouchSiteLastCrawl(ctx, site.ID, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("site_id", site.ID).Msg("failed to update last_crawl_at")
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.untrack(site.ID)
		s.engine.Run(runCtx, created, site.Domain)
	}()

	return created, nil
}

func (s *Supervisor) start(ctx context.Context, task model.Task, domainRestriction string) (model.Task, error) {
	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return model.Task{}, failure.Persistence(err)
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		s.engine.Run(runCtx, created, domainRestriction)
	}()

	return created, nil
}

func (s *Supervisor) track(siteID, taskID string) {
	if siteID == "" {
		return
	}
	s.mu.Lock()
	s.runningSites[siteID] = taskID
	s.mu.Unlock()
}

func (s *Supervisor) untrack(siteID string) {
	if siteID == "" {
		return
	}
	s.mu.Lock()
	delete(s.runningSites, siteID)
	s.mu.Unlock()
}
