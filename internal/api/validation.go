package api

import (
	"net/url"
	"strings"

	"github.com/crawlstack/sitecrawl/pkg/failure"
)

// validateAbsoluteHTTPURL enforces spec §3's requirement that start_url
// (and an ad-hoc crawl's url) be an absolute http(s) URL.
func validateAbsoluteHTTPURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return failure.Validation(field + " is not a valid URL: " + err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return failure.Validation(field + " must be an absolute http(s) URL")
	}
	if u.Host == "" {
		return failure.Validation(field + " must be an absolute http(s) URL")
	}
	return nil
}

// validatePageBounds enforces spec §3's invariants: max_depth >= 0,
// max_pages >= 1.
func validatePageBounds(maxDepth, maxPages int) error {
	if maxDepth < 0 {
		return failure.Validation("max_depth must be >= 0")
	}
	if maxPages < 1 {
		return failure.Validation("max_pages must be >= 1")
	}
	return nil
}

// normalizeDomain lowercases a host the way urlutil normalizes URL
// hosts, so a stored site's domain always agrees with the lowercase
// base_domain the crawl engine derives and the documents it emits.
func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
