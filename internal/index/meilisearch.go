package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meilisearch/meilisearch-go"

	"github.com/crawlstack/sitecrawl/internal/model"
	"github.com/crawlstack/sitecrawl/pkg/failure"
)

const (
	snippetCropLength = 200
	snippetMaxLength  = 300
)

// MeiliGateway implements Gateway on top of a meilisearch server. A
// single client is shared across every in-flight crawl and query —
// the underlying HTTP client is safe for concurrent use.
type MeiliGateway struct {
	client    meilisearch.ServiceManager
	indexName string
}

func NewMeiliGateway(host, apiKey, indexName string) *MeiliGateway {
	client := meilisearch.New(host, meilisearch.WithAPIKey(apiKey))
	return &MeiliGateway{client: client, indexName: indexName}
}

// EnsureIndex creates the index with "id" as primary key and the
// searchable/filterable/sortable attributes spec §4.2 names. It is
// idempotent: calling it against an already-configured index is a
// harmless no-op.
func (g *MeiliGateway) EnsureIndex(ctx context.Context) error {
	_, err := g.client.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{
		Uid:        g.indexName,
		PrimaryKey: "id",
	})
	if err != nil && !isIndexAlreadyExistsErr(err) {
		return failure.IndexUnavailable(err)
	}

	idx := g.client.Index(g.indexName)

	if _, err := idx.UpdateSearchableAttributesWithContext(ctx, &[]string{"title", "content", "url"}); err != nil {
		return failure.IndexUnavailable(err)
	}
	if _, err := idx.UpdateFilterableAttributesWithContext(ctx, &[]string{"domain", "crawled_at"}); err != nil {
		return failure.IndexUnavailable(err)
	}
	if _, err := idx.UpdateSortableAttributesWithContext(ctx, &[]string{"crawled_at"}); err != nil {
		return failure.IndexUnavailable(err)
	}
	return nil
}

// UpsertBatch is at-least-once: the same document id overwrites its
// prior entry, and an empty batch is a no-op (spec §4.2).
func (g *MeiliGateway) UpsertBatch(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	idx := g.client.Index(g.indexName)
	if _, err := idx.AddDocumentsWithContext(ctx, docs, "id"); err != nil {
		return failure.IndexUnavailable(err)
	}
	return nil
}

// DeleteByDomain is best-effort cleanup for a removed site (spec §4.2,
// invariant 7): it is not required to succeed synchronously with the site
// deletion, and the site-delete handler logs a failure without retrying.
func (g *MeiliGateway) DeleteByDomain(ctx context.Context, domain string) error {
	idx := g.client.Index(g.indexName)
	_, err := idx.DeleteDocumentsByFilterWithContext(ctx, fmt.Sprintf("domain = %q", domain))
	if err != nil {
		return failure.IndexUnavailable(err)
	}
	return nil
}

func (g *MeiliGateway) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Offset:           int64((page - 1) * pageSize),
		Limit:            int64(pageSize),
		AttributesToCrop: []string{"content"},
		CropLength:       snippetCropLength,
		ShowRankingScore: true,
	}
	if req.Domain != "" {
		searchReq.Filter = fmt.Sprintf("domain = %q", req.Domain)
	}

	idx := g.client.Index(g.indexName)
	raw, err := idx.SearchWithContext(ctx, req.Query, searchReq)
	if err != nil {
		return SearchResponse{}, failure.IndexUnavailable(err)
	}

	hits, err := decodeHits(raw.Hits)
	if err != nil {
		return SearchResponse{}, failure.Wrap(failure.KindIndexUnavailable, "decode search hits", err)
	}

	return SearchResponse{
		Hits:     hits,
		Total:    raw.EstimatedTotalHits,
		Query:    req.Query,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (g *MeiliGateway) Stats(ctx context.Context) (Stats, error) {
	idx := g.client.Index(g.indexName)
	s, err := idx.GetStatsWithContext(ctx)
	if err != nil {
		return Stats{}, failure.IndexUnavailable(err)
	}
	return Stats{NumDocuments: int64(s.NumberOfDocuments), IsIndexing: s.IsIndexing}, nil
}

// meiliHit mirrors the document fields meilisearch returns, plus the
// cropped snippet and ranking score it attaches per hit.
type meiliHit struct {
	ID               string  `json:"id"`
	URL              string  `json:"url"`
	Title            string  `json:"title"`
	Content          string  `json:"content"`
	Domain           string  `json:"domain"`
	CrawledAt        string  `json:"crawled_at"`
	RankingScore     float64 `json:"_rankingScore"`
	FormattedContent struct {
		Content string `json:"content"`
	} `json:"_formatted"`
}

func decodeHits(raw []interface{}) ([]SearchResult, error) {
	results := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		buf, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		var hit meiliHit
		if err := json.Unmarshal(buf, &hit); err != nil {
			return nil, err
		}

		snippet := hit.FormattedContent.Content
		if snippet == "" {
			snippet = hit.Content
		}
		results = append(results, SearchResult{
			ID:             hit.ID,
			URL:            hit.URL,
			Title:          hit.Title,
			ContentSnippet: failure.Truncate(snippet, snippetMaxLength),
			Domain:         hit.Domain,
			CrawledAt:      hit.CrawledAt,
			Score:          hit.RankingScore,
		})
	}
	return results, nil
}

func isIndexAlreadyExistsErr(err error) bool {
	apiErr, ok := err.(*meilisearch.Error)
	return ok && apiErr.MeilisearchApiError.Code == "index_already_exists"
}
