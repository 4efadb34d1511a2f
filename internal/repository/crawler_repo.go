package repository

import (
	"context"

	"github.com/user/seo-crawler/internal/entity"
)

// Fetcher performs one HTTP exchange for a canonical URL, following
// redirects. A response with any status is returned as a result; only
// transport failures are errors, and those are *entity.FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*entity.FetchResult, error)
}

// RobotsPolicy answers robots.txt permission for the crawl's user agent.
type RobotsPolicy interface {
	CanFetch(url string) bool
}

// ErrorLogSink receives one formatted line per recorded crawl error.
type ErrorLogSink interface {
	Log(line string)
}
