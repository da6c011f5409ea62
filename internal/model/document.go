package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// MaxContentLength is the per-page content cap (spec §3): it bounds
// per-page memory and index payload size while preserving most
// admissions-domain pages.
const MaxContentLength = 50000

// Document is the unit of storage in the search index: one per URL
// per latest crawl. It is never persisted in Store.
type Document struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Domain    string    `json:"domain"`
	CrawledAt time.Time `json:"crawled_at"`
}

// DocID derives a document's identity from its normalized URL:
// the first 24 hex characters of its sha256 digest (spec §3). Two
// fragment-only or trailing-slash-only variants of a URL normalize to
// the same string and therefore collapse to the same document id.
func DocID(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])[:24]
}

// NewDocument builds a Document from crawl results, applying the
// content cap.
func NewDocument(normalizedURL, title, content, domain string, crawledAt time.Time) Document {
	if len(content) > MaxContentLength {
		content = content[:MaxContentLength]
	}
	if title == "" {
		title = normalizedURL
	}
	return Document{
		ID:        DocID(normalizedURL),
		URL:       normalizedURL,
		Title:     title,
		Content:   content,
		Domain:    domain,
		CrawledAt: crawledAt,
	}
}
