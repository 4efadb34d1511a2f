package repository

import (
	"context"
	"errors"
)

var ErrQueueEmpty = errors.New("queue is empty")

// QueueRepository defines a FIFO queue of crawl job ids.
type QueueRepository interface {
	// Push adds a job id to the end of the queue.
	Push(ctx context.Context, jobID string) error
	// Pop removes and returns the id at the front of the queue, or
	// ErrQueueEmpty.
	Pop(ctx context.Context) (string, error)
	// Size returns the current number of items in the queue.
	Size(ctx context.Context) (int64, error)
}
