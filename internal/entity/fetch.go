package entity

import (
	"net/http"
	"strings"
	"time"
)

// RedirectHop is one intermediate response of a redirect chain.
type RedirectHop struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
}

// FetchResult is what a Fetcher returns for a completed HTTP exchange.
type FetchResult struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Header      http.Header
	Redirects   []RedirectHop
	// Body is only populated for HTML responses.
	Body    []byte
	Latency time.Duration
}

// IsHTML reports whether the response declared an HTML content type.
func (r *FetchResult) IsHTML() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "text/html")
}

// Redirected reports whether at least one redirect was followed.
func (r *FetchResult) Redirected() bool {
	return len(r.Redirects) > 0
}
