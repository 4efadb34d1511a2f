package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/repository"
)

const (
	jobKeyPrefix = "crawler:job:"
	jobTTL       = 7 * 24 * time.Hour
)

// JobRepoImpl stores crawl jobs as JSON documents.
type JobRepoImpl struct {
	client *redis.Client
}

func NewJobRepo(client *redis.Client) *JobRepoImpl {
	return &JobRepoImpl{client: client}
}

func (r *JobRepoImpl) Save(ctx context.Context, job *entity.CrawlJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	return r.client.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL).Err()
}

func (r *JobRepoImpl) Get(ctx context.Context, id string) (*entity.CrawlJob, error) {
	data, err := r.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var job entity.CrawlJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}
