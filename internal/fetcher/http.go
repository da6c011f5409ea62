package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/crawlstack/sitecrawl/pkg/failure"
	"github.com/crawlstack/sitecrawl/pkg/limiter"
	"github.com/crawlstack/sitecrawl/pkg/retry"
)

// HTTPFetcher is the default Fetcher: a GET request followed by a
// goquery parse. Only successful HTML responses are processed;
// everything else is discarded rather than passed on to the engine.
type HTTPFetcher struct {
	client     *http.Client
	userAgent  string
	retryParam retry.RetryParam
	limiter    *limiter.ConcurrentRateLimiter
	log        zerolog.Logger
}

func NewHTTPFetcher(userAgent string, timeout time.Duration, retryParam retry.RetryParam, rl *limiter.ConcurrentRateLimiter, log zerolog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client:     &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		retryParam: retryParam,
		limiter:    rl,
		log:        log,
	}
}

func (h *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, failure.Fetch(fmt.Errorf("parse url: %w", err))
	}
	host := parsed.Host

	fetchTask := func() (Page, failure.ClassifiedError) {
		if delay := h.limiter.ResolveDelay(host); delay > 0 {
			time.Sleep(delay)
		}
		page, classifiedErr := h.performFetch(ctx, pageURL)
		h.limiter.MarkLastFetchAsNow(host)
		if classifiedErr != nil {
			if retryable, ok := classifiedErr.(interface{ IsRetryable() bool }); ok && retryable.IsRetryable() {
				h.limiter.Backoff(host)
			}
			return Page{}, classifiedErr
		}
		h.limiter.ResetBackoff(host)
		return page, nil
	}

	result := retry.Retry(h.retryParam, fetchTask)
	if result.IsFailure() {
		h.log.Debug().Str("url", pageURL).Err(result.Err()).Msg("fetch failed")
		return Page{}, result.Err()
	}
	return result.Value(), nil
}

func (h *HTTPFetcher) performFetch(ctx context.Context, pageURL string) (Page, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, withRetryable(failure.Fetch(err), false)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := h.client.Do(req)
	if err != nil {
		return Page{}, withRetryable(failure.Fetch(err), true)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return Page{}, withRetryable(failure.Fetch(fmt.Errorf("status %d", resp.StatusCode)), true)
	case resp.StatusCode >= 400:
		return Page{}, withRetryable(failure.Fetch(fmt.Errorf("status %d", resp.StatusCode)), false)
	case resp.StatusCode >= 300:
		return Page{}, withRetryable(failure.Fetch(fmt.Errorf("unresolved redirect %d", resp.StatusCode)), false)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "html") {
		return Page{}, withRetryable(failure.Fetch(fmt.Errorf("non-HTML content type %q", contentType)), false)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, withRetryable(failure.Fetch(err), true)
	}

	return parsePage(body)
}

func parsePage(body []byte) (Page, failure.ClassifiedError) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return Page{}, withRetryable(failure.Fetch(fmt.Errorf("parse html: %w", err)), false)
	}

	doc.Find("script, style, noscript").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			links = append(links, strings.TrimSpace(href))
		}
	})

	return Page{Title: title, Text: text, InternalLinks: links}, nil
}

func withRetryable(e *failure.Error, retryable bool) *failure.Error {
	e.Retryable = retryable
	return e
}
