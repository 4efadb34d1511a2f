// Package app assembles crawl runs from configuration. Both binaries use
// it, the CLI for one crawl and the API worker for every queued job.
package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/seo-crawler/internal/adapter/chromedp_fetch"
	"github.com/user/seo-crawler/internal/adapter/errorlog"
	"github.com/user/seo-crawler/internal/adapter/filesnap"
	"github.com/user/seo-crawler/internal/adapter/httpfetch"
	"github.com/user/seo-crawler/internal/adapter/memory"
	redis_adapter "github.com/user/seo-crawler/internal/adapter/redis"
	"github.com/user/seo-crawler/internal/adapter/robots"
	"github.com/user/seo-crawler/internal/repository"
	"github.com/user/seo-crawler/internal/usecase"
	"github.com/user/seo-crawler/pkg/config"
	"github.com/user/seo-crawler/pkg/metrics"
)

// VisitedTTL bounds how long a Redis visited set outlives its crawl.
const VisitedTTL = 24 * time.Hour

var ErrRedisRequired = errors.New("redis visited backend needs a redis client")

// Fetchers owns the clients shared by every crawl of a process. HTTP is
// always built because robots.txt is read over plain HTTP even when pages
// are rendered in Chrome.
type Fetchers struct {
	HTTP   *httpfetch.Fetcher
	Pages  repository.Fetcher
	closer func()
}

func NewFetchers(cfg config.CrawlConfig, logger *zap.Logger) (*Fetchers, error) {
	hf, err := httpfetch.New(httpfetch.OptionsFrom(cfg), logger.Named("fetch"))
	if err != nil {
		return nil, fmt.Errorf("http fetcher: %w", err)
	}
	f := &Fetchers{HTTP: hf, Pages: hf, closer: func() {}}
	if cfg.Fetcher == config.FetcherChromedp {
		cf := chromedp_fetch.New(cfg.MaxConnections, cfg.FetchTimeout, cfg.UserAgent, logger.Named("chromedp"))
		f.Pages = cf
		f.closer = cf.Close
	}
	return f, nil
}

func (f *Fetchers) Close() { f.closer() }

// Robots returns a loader reading robots.txt through the HTTP client.
func (f *Fetchers) Robots(logger *zap.Logger) usecase.RobotsLoader {
	return func(ctx context.Context, seed string) repository.RobotsPolicy {
		return robots.Load(ctx, f.HTTP.Client(), seed, f.HTTP.UserAgent(), logger)
	}
}

// NewVisited picks the visited-set backend. rdb may be nil for the memory
// backend.
func NewVisited(cfg config.CrawlConfig, rdb *redis.Client, crawlID string) (repository.VisitedRepository, error) {
	if cfg.VisitedBackend != config.BackendRedis {
		return memory.NewVisitedSet(), nil
	}
	if rdb == nil {
		return nil, ErrRedisRequired
	}
	return redis_adapter.NewVisitedRepo(rdb, crawlID, VisitedTTL), nil
}

// Run holds the per-crawl resources that need closing.
type Run struct {
	Scheduler *usecase.Scheduler
	errLog    *errorlog.Log
}

func (r *Run) Close() error {
	if r.errLog == nil {
		return nil
	}
	return r.errLog.Close()
}

// RunOptions are the per-crawl parts of a scheduler build.
type RunOptions struct {
	Config  config.CrawlConfig
	Visited repository.VisitedRepository
	// Dir, when set, prefixes the snapshot directory, report file and
	// error log so concurrent crawls do not share files.
	Dir string
	// Extra sinks receive snapshots and the report alongside the files.
	Extra   []repository.ReportSink
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

func (o RunOptions) path(p string) string {
	if p == "" || o.Dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.Dir, p)
}

// NewRun opens the error log and file snapshots for one crawl and builds
// its scheduler.
func (f *Fetchers) NewRun(opts RunOptions) (*Run, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	snapDir := opts.path(cfg.SnapshotDir)
	if snapDir == "" {
		snapDir = cmp.Or(opts.Dir, ".")
	}
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	var sink usecase.MultiSink
	sink = append(sink, filesnap.New(snapDir, opts.path(cfg.ReportFile)))
	sink = append(sink, opts.Extra...)

	deps := usecase.SchedulerDeps{
		Fetcher: f.Pages,
		Visited: opts.Visited,
		Sink:    sink,
		Robots:  f.Robots(logger),
		Metrics: opts.Metrics,
		Logger:  logger,
	}

	run := &Run{}
	if cfg.ErrorLogFile != "" {
		l, err := errorlog.Open(opts.path(cfg.ErrorLogFile))
		if err != nil {
			return nil, err
		}
		run.errLog = l
		deps.ErrorLog = l
	}

	s, err := usecase.NewScheduler(cfg, deps)
	if err != nil {
		_ = run.Close()
		return nil, err
	}
	run.Scheduler = s
	return run, nil
}
