// Package config loads process-wide defaults from the environment.
// Per-site crawl parameters live in the Site record, not here — this
// struct only supplies the defaults new sites/ad-hoc crawls fall back
// to, plus wiring for the Store, IndexGateway, and HTTP surface.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBPath string `env:"DB_PATH" envDefault:"./sitecrawl.db"`

	IndexURL string `env:"INDEX_URL" envDefault:"http://localhost:7700"`
	IndexKey string `env:"INDEX_KEY"`
	IndexName string `env:"INDEX_NAME" envDefault:"sitecrawl_documents"`

	AuthBearerToken string `env:"AUTH_BEARER_TOKEN"`

	UserAgent string `env:"USER_AGENT" envDefault:"sitecrawl/1.0"`

	DefaultMaxDepth int `env:"DEFAULT_MAX_DEPTH" envDefault:"3"`
	DefaultMaxPages int `env:"DEFAULT_MAX_PAGES" envDefault:"100"`
	DefaultSameDomainOnly bool `env:"DEFAULT_SAME_DOMAIN_ONLY" envDefault:"true"`
	DefaultCrawlFrequencyMinutes int `env:"DEFAULT_CRAWL_FREQUENCY_MINUTES" envDefault:"1440"`

	ConcurrencyHint int `env:"CONCURRENCY_HINT" envDefault:"4"`
	CrawlDelayMS int `env:"CRAWL_DELAY_MS" envDefault:"500"`

	SchedulerTickInterval time.Duration `env:"SCHEDULER_TICK_INTERVAL" envDefault:"5m"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"15s"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}
	return cfg, nil
}

func (c *Config) CrawlDelay() time.Duration {
	return time.Duration(c.CrawlDelayMS) * time.Millisecond
}
