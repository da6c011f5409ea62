// Package urlutil implements the URL normalization and resolution rules
// used consistently across the frontier, the visited set, and document-id
// hashing (spec §3 "URL normalization").
package urlutil

import (
	"net/url"
	"strings"
)

// Normalize applies the crawl's canonical form to a URL:
//   - fragment is stripped
//   - one trailing slash is stripped, except for the root path
//   - host is lowercased
//
// Scheme and query are preserved as-is. Normalize is pure, deterministic,
// and idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(sourceURL url.URL) url.URL {
	normalized := sourceURL

	normalized.Host = lowerASCII(normalized.Host)
	normalized.Path = stripOneTrailingSlash(normalized.Path)

	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized
}

// NormalizeString parses rawURL and returns its normalized string form.
func NormalizeString(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	n := Normalize(*u)
	return n.String(), nil
}

// SameDomain reports whether host equals base or is a subdomain of base
// (spec §3: "the URL's lowercased host must equal d or end with .d").
func SameDomain(host, base string) bool {
	host = lowerASCII(stripPort(host))
	base = lowerASCII(stripPort(base))
	if base == "" {
		return false
	}
	return host == base || strings.HasSuffix(host, "."+base)
}

// Resolve resolves ref (absolute, relative, or protocol-relative) against
// the page it was discovered on. Non-HTTP(S) schemes resolve to a zero
// url.URL with ok=false so callers can skip them without erroring.
func Resolve(pageURL url.URL, ref string) (url.URL, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return url.URL{}, false
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return url.URL{}, false
	}

	resolved := pageURL.ResolveReference(refURL)

	switch strings.ToLower(resolved.Scheme) {
	case "http", "https":
		return *resolved, true
	default:
		return url.URL{}, false
	}
}

// lowerASCII converts ASCII characters to lowercase without allocating
// when the input is already lowercase.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripOneTrailingSlash removes exactly one trailing slash, leaving the
// root path ("/") untouched.
func stripOneTrailingSlash(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return path[:len(path)-1]
	}
	return path
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i != -1 {
		return host[:i]
	}
	return host
}
