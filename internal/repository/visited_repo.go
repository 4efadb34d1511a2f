package repository

import (
	"context"
	"time"
)

// VisitedRepository is the per-crawl visited set.
type VisitedRepository interface {
	// TryVisit atomically inserts url and reports whether it was absent.
	TryVisit(ctx context.Context, url string) (bool, error)
	// Count returns the number of visited URLs.
	Count(ctx context.Context) (int64, error)
}

// RecentCrawlRepository remembers seeds crawled recently so the API can
// refuse to repeat them.
type RecentCrawlRepository interface {
	// MarkCrawled marks a seed as crawled with a specific expiry time.
	MarkCrawled(ctx context.Context, seed string, expiry time.Duration) error
	// IsRecentlyCrawled checks if a seed has been crawled recently.
	IsRecentlyCrawled(ctx context.Context, seed string) (bool, error)
	// Forget removes the marker, used for force_crawl.
	Forget(ctx context.Context, seed string) error
}
