package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/repository"
	"github.com/user/seo-crawler/internal/scope"
	"github.com/user/seo-crawler/pkg/config"
	"github.com/user/seo-crawler/pkg/metrics"
)

// SchedulerFactory builds the scheduler, with collaborators bound to the
// job, for one crawl. cleanup releases per-job resources and may be nil.
type SchedulerFactory func(ctx context.Context, job *entity.CrawlJob, cfg config.CrawlConfig) (s *Scheduler, cleanup func(), err error)

// JobRunner pops queued jobs and runs them to completion.
type JobRunner struct {
	queue   repository.QueueRepository
	jobs    repository.JobRepository
	recent  repository.RecentCrawlRepository
	build   SchedulerFactory
	base    config.CrawlConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func NewJobRunner(
	queue repository.QueueRepository,
	jobs repository.JobRepository,
	recent repository.RecentCrawlRepository,
	build SchedulerFactory,
	base config.CrawlConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *JobRunner {
	return &JobRunner{
		queue:   queue,
		jobs:    jobs,
		recent:  recent,
		build:   build,
		base:    base,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		running: make(map[string]context.CancelFunc),
	}
}

// ApplyOptions overlays the per-job overrides on cfg.
func ApplyOptions(cfg config.CrawlConfig, o entity.JobOptions) config.CrawlConfig {
	if o.MaxDepth != nil {
		cfg.MaxDepth = *o.MaxDepth
	}
	if o.MainDomainOnly != nil {
		cfg.MainDomainOnly = *o.MainDomainOnly
	}
	if o.FollowRobotsTxt != nil {
		cfg.FollowRobotsTxt = *o.FollowRobotsTxt
	}
	if o.CalculatePageRank != nil {
		cfg.CalculatePageRank = *o.CalculatePageRank
	}
	return cfg
}

// Cancel stops the job if it is running in this process.
func (r *JobRunner) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.running[jobID]
	if ok {
		cancel()
	}
	return ok
}

// Run polls the queue every interval until ctx is done.
func (r *JobRunner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for ctx.Err() == nil {
			processed, err := r.ProcessNextJob(ctx)
			if err != nil {
				r.logger.Error("processing crawl job", zap.Error(err))
			}
			if !processed {
				break
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessNextJob runs the job at the front of the queue. processed is false
// when the queue was empty.
func (r *JobRunner) ProcessNextJob(ctx context.Context) (processed bool, err error) {
	id, err := r.queue.Pop(ctx)
	if errors.Is(err, repository.ErrQueueEmpty) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to pop job from queue: %w", err)
	}
	r.syncQueueGauge(ctx)

	job, err := r.jobs.Get(ctx, id)
	if errors.Is(err, repository.ErrJobNotFound) {
		r.logger.Warn("queued job has no record, dropping", zap.String("job_id", id))
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("load job %s: %w", id, err)
	}
	if job.CurrentStatus != entity.JobPending {
		r.logger.Info("skipping job", zap.String("job_id", id), zap.String("status", string(job.CurrentStatus)))
		return true, nil
	}

	return true, r.runJob(ctx, job)
}

func (r *JobRunner) syncQueueGauge(ctx context.Context) {
	if n, err := r.queue.Size(ctx); err == nil {
		r.metrics.JobsInQueue.Set(float64(n))
	}
}

func (r *JobRunner) runJob(ctx context.Context, job *entity.CrawlJob) error {
	jobCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.running[job.ID] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.running, job.ID)
		r.mu.Unlock()
		cancel()
	}()

	started := r.now()
	job.CurrentStatus = entity.JobRunning
	job.StartedAt = &started
	if err := r.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}

	logger := r.logger.With(zap.String("job_id", job.ID), zap.String("seed", job.Seed))
	logger.Info("crawl job started")

	report, runErr := r.crawl(jobCtx, job)

	finished := r.now()
	job.FinishedAt = &finished
	r.metrics.CrawlDuration.WithLabelValues(domainOf(job.Seed)).Observe(finished.Sub(started).Seconds())
	if report != nil {
		job.PagesAnalyzed = len(report.Pages)
		job.ErrorCount = len(report.Errors)
	}

	switch {
	case runErr != nil:
		job.CurrentStatus = entity.JobFailed
		job.FailureReason = runErr.Error()
		r.metrics.CrawlsTotal.WithLabelValues("failure", errorType(runErr)).Inc()
		logger.Error("crawl job failed", zap.Error(runErr))
	case report.Aborted:
		job.CurrentStatus = entity.JobCancelled
		r.metrics.CrawlsTotal.WithLabelValues("cancelled", "").Inc()
		logger.Info("crawl job cancelled", zap.Int("pages", job.PagesAnalyzed))
	default:
		job.CurrentStatus = entity.JobCompleted
		r.metrics.CrawlsTotal.WithLabelValues("success", "").Inc()
		logger.Info("crawl job completed", zap.Int("pages", job.PagesAnalyzed), zap.Int("errors", job.ErrorCount))
	}

	// A failed or cancelled seed can be submitted again right away.
	if job.CurrentStatus != entity.JobCompleted {
		if err := r.recent.Forget(context.WithoutCancel(ctx), job.Seed); err != nil {
			logger.Warn("failed to clear recent-crawl marker", zap.Error(err))
		}
	}
	if err := r.jobs.Save(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (r *JobRunner) crawl(ctx context.Context, job *entity.CrawlJob) (*entity.Report, error) {
	sched, cleanup, err := r.build(ctx, job, ApplyOptions(r.base, job.Options))
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}
	return sched.Run(ctx, job.Seed)
}

func domainOf(seed string) string {
	u, err := url.Parse(seed)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrVisitedStore):
		return "visited"
	case errors.Is(err, ErrReportSave):
		return "report"
	case errors.Is(err, config.ErrInvalidCrawlCfg), errors.Is(err, config.ErrInvalidDamping):
		return "config"
	case errors.Is(err, scope.ErrUnsupportedScheme), errors.Is(err, scope.ErrEmptyURL), errors.Is(err, scope.ErrEmptyHost):
		return "seed"
	default:
		return "internal"
	}
}
