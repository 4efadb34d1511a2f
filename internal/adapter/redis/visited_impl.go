package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// VisitedRepoImpl is a per-crawl visited set shared by every process
// working on the same crawl id.
type VisitedRepoImpl struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewVisitedRepo scopes the set to crawlID. The set expires ttl after the
// last insert.
func NewVisitedRepo(client *redis.Client, crawlID string, ttl time.Duration) *VisitedRepoImpl {
	return &VisitedRepoImpl{
		client: client,
		key:    fmt.Sprintf("crawler:crawl:%s:visited", crawlID),
		ttl:    ttl,
	}
}

// TryVisit relies on SADD reporting whether the member was new, which makes
// check-and-insert a single atomic command.
func (r *VisitedRepoImpl) TryVisit(ctx context.Context, url string) (bool, error) {
	var added *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.SAdd(ctx, r.key, url)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("visited sadd: %w", err)
	}
	return added.Val() == 1, nil
}

func (r *VisitedRepoImpl) Count(ctx context.Context) (int64, error) {
	return r.client.SCard(ctx, r.key).Result()
}
