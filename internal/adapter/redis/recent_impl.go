package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/seo-crawler/pkg/utils"
)

const recentSeedPrefix = "crawled:"

// RecentCrawlRepoImpl remembers recently crawled seeds with a TTL.
type RecentCrawlRepoImpl struct {
	client *redis.Client
}

func NewRecentCrawlRepo(client *redis.Client) *RecentCrawlRepoImpl {
	return &RecentCrawlRepoImpl{client: client}
}

func (r *RecentCrawlRepoImpl) key(seed string) string {
	return recentSeedPrefix + utils.HashURL(seed)
}

// MarkCrawled sets the marker key with an expiry.
func (r *RecentCrawlRepoImpl) MarkCrawled(ctx context.Context, seed string, expiry time.Duration) error {
	return r.client.SetEx(ctx, r.key(seed), "1", expiry).Err()
}

// IsRecentlyCrawled checks for the marker key.
func (r *RecentCrawlRepoImpl) IsRecentlyCrawled(ctx context.Context, seed string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(seed)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Forget removes the marker, used for force_crawl.
func (r *RecentCrawlRepoImpl) Forget(ctx context.Context, seed string) error {
	return r.client.Del(ctx, r.key(seed)).Err()
}
