package repository

import (
	"context"
	"errors"

	"github.com/user/seo-crawler/internal/entity"
)

var ErrJobNotFound = errors.New("crawl job not found")

// JobRepository stores crawl job bookkeeping.
type JobRepository interface {
	Save(ctx context.Context, job *entity.CrawlJob) error
	// Get returns ErrJobNotFound for unknown ids.
	Get(ctx context.Context, id string) (*entity.CrawlJob, error)
}
