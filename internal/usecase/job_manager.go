package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/repository"
	"github.com/user/seo-crawler/internal/scope"
	"github.com/user/seo-crawler/pkg/metrics"
)

var (
	ErrSeedRecentlyCrawled = errors.New("seed has been crawled recently and force_crawl is false")
	ErrJobFinished         = errors.New("crawl job already finished")
	ErrInvalidSeed         = errors.New("invalid seed url")
)

// JobCanceller stops a running job. Cancel reports whether the job was
// running in this process.
type JobCanceller interface {
	Cancel(jobID string) bool
}

// JobManager defines the interface for submitting and tracking crawl jobs.
type JobManager interface {
	Submit(ctx context.Context, seed string, force bool, opts entity.JobOptions) (*entity.CrawlJob, error)
	GetStatus(ctx context.Context, id string) (*entity.CrawlJob, error)
	Cancel(ctx context.Context, id string) (*entity.CrawlJob, error)
}

type jobManager struct {
	jobs      repository.JobRepository
	queue     repository.QueueRepository
	recent    repository.RecentCrawlRepository
	canceller JobCanceller
	dedup     time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewJobManager creates a JobManager. Seeds are refused for dedup after a
// submission unless force is set.
func NewJobManager(
	jobs repository.JobRepository,
	queue repository.QueueRepository,
	recent repository.RecentCrawlRepository,
	canceller JobCanceller,
	dedup time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) JobManager {
	return &jobManager{
		jobs:      jobs,
		queue:     queue,
		recent:    recent,
		canceller: canceller,
		dedup:     dedup,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

func (uc *jobManager) Submit(ctx context.Context, seed string, force bool, opts entity.JobOptions) (*entity.CrawlJob, error) {
	canonical, err := scope.Normalize(seed)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSeed, seed, err)
	}

	if force {
		if err := uc.recent.Forget(ctx, canonical); err != nil {
			// Not critical, the crawl is queued anyway.
			uc.logger.Warn("failed to clear recent-crawl marker", zap.String("seed", canonical), zap.Error(err))
		}
	} else {
		recent, err := uc.recent.IsRecentlyCrawled(ctx, canonical)
		if err != nil {
			return nil, err
		}
		if recent {
			return nil, ErrSeedRecentlyCrawled
		}
	}

	job := &entity.CrawlJob{
		ID:            uuid.NewString(),
		Seed:          canonical,
		Force:         force,
		Options:       opts,
		CurrentStatus: entity.JobPending,
		SubmittedAt:   uc.now(),
	}
	if err := uc.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	if err := uc.queue.Push(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("queue job: %w", err)
	}
	uc.metrics.JobsInQueue.Inc()

	if err := uc.recent.MarkCrawled(ctx, canonical, uc.dedup); err != nil {
		// The job is queued but the seed could be queued again before it runs.
		uc.logger.Error("failed to mark seed as crawled after queueing", zap.String("seed", canonical), zap.Error(err))
	}

	uc.logger.Info("crawl job submitted", zap.String("job_id", job.ID), zap.String("seed", canonical), zap.Bool("force", force))
	return job, nil
}

func (uc *jobManager) GetStatus(ctx context.Context, id string) (*entity.CrawlJob, error) {
	return uc.jobs.Get(ctx, id)
}

// Cancel marks a pending job cancelled, so the worker skips it, or stops a
// running one. The runner records the final state of a running job.
func (uc *jobManager) Cancel(ctx context.Context, id string) (*entity.CrawlJob, error) {
	job, err := uc.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.CurrentStatus.Terminal() {
		return job, ErrJobFinished
	}

	if job.CurrentStatus == entity.JobRunning {
		if uc.canceller == nil || !uc.canceller.Cancel(id) {
			uc.logger.Warn("running job not owned by this process", zap.String("job_id", id))
		}
		return job, nil
	}

	now := uc.now()
	job.CurrentStatus = entity.JobCancelled
	job.FinishedAt = &now
	if err := uc.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	if err := uc.recent.Forget(ctx, job.Seed); err != nil {
		uc.logger.Warn("failed to clear recent-crawl marker", zap.String("seed", job.Seed), zap.Error(err))
	}
	return job, nil
}
