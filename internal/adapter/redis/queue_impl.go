package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/user/seo-crawler/internal/repository"
)

const crawlQueueKey = "crawler:queue"

// QueueRepoImpl implements repository.QueueRepository on a Redis list.
type QueueRepoImpl struct {
	client *redis.Client
}

func NewQueueRepo(client *redis.Client) *QueueRepoImpl {
	return &QueueRepoImpl{client: client}
}

// Push adds a job id to the left side of the list.
func (r *QueueRepoImpl) Push(ctx context.Context, jobID string) error {
	return r.client.LPush(ctx, crawlQueueKey, jobID).Err()
}

// Pop removes and returns the oldest job id from the right side of the list.
func (r *QueueRepoImpl) Pop(ctx context.Context) (string, error) {
	id, err := r.client.RPop(ctx, crawlQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrQueueEmpty
	}
	return id, err
}

// Size returns the current number of items in the queue.
func (r *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, crawlQueueKey).Result()
}
