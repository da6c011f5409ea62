// Package fetcher performs the HTTP leg of a crawl: GET a page, and
// hand the engine back title/text/links or a classified failure. It
// never parses content beyond what the engine needs to keep walking
// the frontier and building documents — no docs-specific chrome
// stripping, no markdown conversion.
package fetcher

import (
	"context"
)

// Page is the result of a successful fetch, per the Fetcher contract
// in spec §9: {success, title, text, internal_links[]}.
type Page struct {
	Title         string
	Text          string
	InternalLinks []string
}

// Fetcher is the CrawlEngine's only dependency on the network. A
// non-nil error means the fetch failed; there is no partial-success
// case — either Page is usable or it isn't.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (Page, error)
}
