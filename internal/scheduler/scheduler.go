// Package scheduler runs the periodic due-site sweep: every tick it
// asks the Store which enabled sites are due and asks the Supervisor
// to start each one. It owns no crawl state itself — Supervisor's
// running-site registry is the only source of truth for what's live.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/crawlstack/sitecrawl/internal/model"
	"github.com/crawlstack/sitecrawl/internal/store"
)

// starter is the Supervisor capability the Scheduler needs. Scoped to
// one method so tests don't have to build a real Engine.
type starter interface {
	StartForSite(ctx context.Context, site model.Site) (model.Task, error)
}

// Scheduler ticks at a fixed interval and starts a crawl for every
// enabled site whose Site.IsDue is true, per spec §4.4.
type Scheduler struct {
	store    store.Store
	sup      starter
	interval time.Duration
	log      zerolog.Logger
}

func New(st store.Store, sup starter, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{store: st, sup: sup, interval: interval, log: log}
}

// Run blocks, ticking until ctx is canceled. It runs one sweep
// immediately on start rather than waiting out the first interval, so
// a freshly-booted process doesn't leave due sites idle.
func (s *Scheduler) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	enabled := true
	sites, err := s.store.ListSites(ctx, store.SiteFilter{Enabled: &enabled})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list sites for the due-site sweep")
		return
	}

	now := time.Now().UTC()
	for _, site := range sites {
		if !site.IsDue(now) {
			continue
		}
		task, err := s.sup.StartForSite(ctx, site)
		if err != nil {
			s.log.Error().Err(err).Str("site_id", site.ID).Msg("failed to start a due site's crawl")
			continue
		}
		if task.ID != "" {
			s.log.Info().Str("site_id", site.ID).Str("task_id", task.ID).Msg("started scheduled crawl")
		}
	}
}
