package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/crawlstack/sitecrawl/internal/api"
	"github.com/crawlstack/sitecrawl/internal/config"
	"github.com/crawlstack/sitecrawl/internal/crawlengine"
	"github.com/crawlstack/sitecrawl/internal/fetcher"
	"github.com/crawlstack/sitecrawl/internal/index"
	"github.com/crawlstack/sitecrawl/internal/scheduler"
	"github.com/crawlstack/sitecrawl/internal/store"
	"github.com/crawlstack/sitecrawl/internal/supervisor"
	"github.com/crawlstack/sitecrawl/pkg/limiter"
	"github.com/crawlstack/sitecrawl/pkg/retry"
	"github.com/crawlstack/sitecrawl/pkg/timeutil"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, scheduler, and crawl supervisor.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	idx := index.NewMeiliGateway(cfg.IndexURL, cfg.IndexKey, cfg.IndexName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := idx.EnsureIndex(ctx); err != nil {
		log.Warn().Err(err).Msg("could not ensure the search index exists at startup")
	}

	retryParam := retry.NewRetryParam(
		200*time.Millisecond,
		100*time.Millisecond,
		time.Now().UnixNano(),
		3,
		timeutil.NewBackoffParam(500*time.Millisecond, 2.0, 10*time.Second),
	)
	rateLimiter := limiter.NewConcurrentRateLimiter()
	f := fetcher.NewHTTPFetcher(cfg.UserAgent, cfg.FetchTimeout, retryParam, rateLimiter, log)

	engine := crawlengine.New(st, idx, f, timeutil.NewRealSleeper(), cfg.CrawlDelay(), log)
	sup := supervisor.New(st, engine, log)

	if _, err := sup.RecoverOrphans(ctx); err != nil {
		log.Error().Err(err).Msg("failed to recover orphaned tasks at startup")
	}

	sched := scheduler.New(st, sup, cfg.SchedulerTickInterval, log)
	go sched.Run(ctx)

	defaults := api.Defaults{
		MaxDepth:       cfg.DefaultMaxDepth,
		MaxPages:       cfg.DefaultMaxPages,
		SameDomainOnly: cfg.DefaultSameDomainOnly,
		FrequencyMin:   cfg.DefaultCrawlFrequencyMinutes,
	}
	app := api.New(st, idx, sup, defaults, cfg.AuthBearerToken, log)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		serverErr <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	case err := <-serverErr:
		return err
	}
}
