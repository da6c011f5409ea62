package urlutil

import (
	"net/url"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "trailing slash removed",
			input:    "https://docs.example.com/guide/",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "no trailing slash stays same",
			input:    "https://docs.example.com/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "fragment removed",
			input:    "https://docs.example.com/guide#index",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "query parameters preserved",
			input:    "https://docs.example.com/guide?utm_source=twitter",
			expected: "https://docs.example.com/guide?utm_source=twitter",
		},
		{
			name:     "fragment removed, query preserved",
			input:    "https://docs.example.com/guide?utm_source=twitter#index",
			expected: "https://docs.example.com/guide?utm_source=twitter",
		},
		{
			name:     "scheme kept as parsed (url.Parse lowercases it)",
			input:    "HTTPS://docs.example.com/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "host lowercased",
			input:    "https://DOCS.EXAMPLE.COM/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "host lowercased, path case preserved",
			input:    "HTTPS://DOCS.EXAMPLE.COM/GUIDE",
			expected: "https://docs.example.com/GUIDE",
		},
		{
			name:     "default http port preserved",
			input:    "http://docs.example.com:80/guide",
			expected: "http://docs.example.com:80/guide",
		},
		{
			name:     "non-default port preserved",
			input:    "https://docs.example.com:8080/guide",
			expected: "https://docs.example.com:8080/guide",
		},
		{
			name:     "only one trailing slash stripped",
			input:    "https://docs.example.com/guide///",
			expected: "https://docs.example.com/guide//",
		},
		{
			name:     "root path preserved",
			input:    "https://docs.example.com/",
			expected: "https://docs.example.com/",
		},
		{
			name:     "root path without slash",
			input:    "https://docs.example.com",
			expected: "https://docs.example.com",
		},
		{
			name:     "fragment removed, query and path preserved",
			input:    "https://docs.example.com/api/v1/users?id=123#section",
			expected: "https://docs.example.com/api/v1/users?id=123",
		},
		{
			name:     "path case preserved",
			input:    "https://docs.example.com/API/v1/Users",
			expected: "https://docs.example.com/API/v1/Users",
		},
		{
			name:     "empty query preserved",
			input:    "https://docs.example.com/guide?",
			expected: "https://docs.example.com/guide?",
		},
		{
			name:     "empty fragment removed",
			input:    "https://docs.example.com/guide#",
			expected: "https://docs.example.com/guide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputURL, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("failed to parse input URL %q: %v", tt.input, err)
			}

			result := Normalize(*inputURL)
			resultStr := result.String()

			if resultStr != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, resultStr, tt.expected)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	testURLs := []string{
		"https://docs.example.com/guide/",
		"https://docs.example.com/guide?utm_source=twitter",
		"https://docs.example.com/guide#index",
		"HTTPS://DOCS.EXAMPLE.COM:443/GUIDE/?",
		"http://example.com:80/path///",
	}

	for _, urlStr := range testURLs {
		t.Run(urlStr, func(t *testing.T) {
			inputURL, err := url.Parse(urlStr)
			if err != nil {
				t.Fatalf("failed to parse URL %q: %v", urlStr, err)
			}

			first := Normalize(*inputURL)
			second := Normalize(first)

			firstStr := first.String()
			secondStr := second.String()

			if firstStr != secondStr {
				t.Errorf("Normalize is not idempotent: first=%q, second=%q", firstStr, secondStr)
			}
		})
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	input, _ := url.Parse("https://example.com/path/?query=1#frag")
	original := *input

	_ = Normalize(*input)

	if input.String() != original.String() {
		t.Error("Normalize mutated the input URL")
	}
}

func TestNormalizeString(t *testing.T) {
	got, err := NormalizeString("https://DOCS.EXAMPLE.COM/guide/#frag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://docs.example.com/guide"
	if got != want {
		t.Errorf("NormalizeString = %q, want %q", got, want)
	}

	if _, err := NormalizeString("://not a url"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestLowerASCII(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello", "hello"},
		{"HELLO", "hello"},
		{"hello", "hello"},
		{"HTTPS", "https"},
		{"MixedCASE", "mixedcase"},
		{"already-lower", "already-lower"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := lowerASCII(tt.input)
			if result != tt.expected {
				t.Errorf("lowerASCII(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStripOneTrailingSlash(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/path/", "/path"},
		{"/path//", "/path/"},
		{"/path", "/path"},
		{"/", "/"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := stripOneTrailingSlash(tt.input)
			if result != tt.expected {
				t.Errorf("stripOneTrailingSlash(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSameDomain(t *testing.T) {
	tests := []struct {
		name string
		host string
		base string
		want bool
	}{
		{"exact match", "example.com", "example.com", true},
		{"exact match case-insensitive", "EXAMPLE.com", "example.COM", true},
		{"subdomain matches", "docs.example.com", "example.com", true},
		{"deep subdomain matches", "a.b.example.com", "example.com", true},
		{"different domain", "example.org", "example.com", false},
		{"suffix but not subdomain", "notexample.com", "example.com", false},
		{"port stripped before comparison", "example.com:8080", "example.com", true},
		{"empty base never matches", "example.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameDomain(tt.host, tt.base); got != tt.want {
				t.Errorf("SameDomain(%q, %q) = %v, want %v", tt.host, tt.base, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	page, _ := url.Parse("https://docs.example.com/guide/intro")

	tests := []struct {
		name    string
		ref     string
		wantOK  bool
		wantStr string
	}{
		{"relative path", "next", true, "https://docs.example.com/guide/next"},
		{"root-relative path", "/other", true, "https://docs.example.com/other"},
		{"absolute url", "https://other.example.com/page", true, "https://other.example.com/page"},
		{"protocol-relative url", "//other.example.com/page", true, "https://other.example.com/page"},
		{"mailto is skipped", "mailto:a@example.com", false, ""},
		{"javascript is skipped", "javascript:void(0)", false, ""},
		{"empty ref is skipped", "", false, ""},
		{"whitespace-only ref is skipped", "   ", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(*page, tt.ref)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.ref, ok, tt.wantOK)
			}
			if ok && got.String() != tt.wantStr {
				t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got.String(), tt.wantStr)
			}
		})
	}
}
