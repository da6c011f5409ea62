// Package index implements the search-index side of the system: the
// IndexGateway abstraction spec §4.2 names, backed by meilisearch. The
// index is a derived view — rebuildable from a fresh crawl — so every
// operation here is best-effort relative to the Store's durable state.
package index

import (
	"context"

	"github.com/crawlstack/sitecrawl/internal/model"
)

// SearchResult is one ranked hit, server-side-snippeted per spec §4.2.
type SearchResult struct {
	ID              string  `json:"id"`
	URL             string  `json:"url"`
	Title           string  `json:"title"`
	ContentSnippet  string  `json:"content_snippet"`
	Domain          string  `json:"domain"`
	CrawledAt       string  `json:"crawled_at"`
	Score           float64 `json:"score,omitempty"`
}

// SearchResponse is the exact shape spec §4.2/§6 returns from /search.
type SearchResponse struct {
	Hits     []SearchResult `json:"hits"`
	Total    int64          `json:"total"`
	Query    string         `json:"query"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// SearchRequest carries the optional domain scoping and pagination
// spec §4.2 defines for search.
type SearchRequest struct {
	Query    string
	Domain   string // empty means unscoped
	Page     int    // 1-based
	PageSize int
}

// Stats summarizes index health for the /health endpoint.
type Stats struct {
	NumDocuments int64
	IsIndexing   bool
}

// Gateway is the capability set spec §4.2 names: ensure_index,
// upsert_batch, delete_by_domain, search, stats.
type Gateway interface {
	EnsureIndex(ctx context.Context) error
	UpsertBatch(ctx context.Context, docs []model.Document) error
	DeleteByDomain(ctx context.Context, domain string) error
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	Stats(ctx context.Context) (Stats, error)
}
