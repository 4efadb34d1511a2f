package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/seo-crawler/internal/adapter/postgres"
	redis_adapter "github.com/user/seo-crawler/internal/adapter/redis"
	"github.com/user/seo-crawler/internal/app"
	"github.com/user/seo-crawler/internal/delivery/http/handler"
	"github.com/user/seo-crawler/internal/delivery/http/router"
	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/repository"
	"github.com/user/seo-crawler/internal/usecase"
	"github.com/user/seo-crawler/pkg/config"
	"github.com/user/seo-crawler/pkg/logger"
	"github.com/user/seo-crawler/pkg/metrics"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load(config.NewViper(), os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// --- Logger ---
	log, err := logger.New(os.Stdout, cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log.Info("Logger initialized", zap.String("level", cfg.App.LogLevel))

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database Connections ---
	dbpool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
	if err != nil {
		log.Fatal("Unable to connect to database", zap.Error(err))
	}
	defer dbpool.Close()
	if err := postgres.Migrate(ctx, dbpool); err != nil {
		log.Fatal("Unable to apply schema", zap.Error(err))
	}
	log.Info("PostgreSQL connection pool established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Unable to connect to Redis", zap.Error(err))
	}
	log.Info("Redis connection established")

	// --- Repositories ---
	queueRepo := redis_adapter.NewQueueRepo(rdb)
	jobRepo := redis_adapter.NewJobRepo(rdb)
	recentRepo := redis_adapter.NewRecentCrawlRepo(rdb)
	pageRepo := postgres.NewPageRepo(dbpool)

	// --- Use Cases ---
	fetchers, err := app.NewFetchers(cfg.Crawl, log)
	if err != nil {
		log.Fatal("Unable to build fetcher", zap.Error(err))
	}
	defer fetchers.Close()

	build := func(_ context.Context, job *entity.CrawlJob, crawlCfg config.CrawlConfig) (*usecase.Scheduler, func(), error) {
		visited, err := app.NewVisited(crawlCfg, rdb, job.ID)
		if err != nil {
			return nil, nil, err
		}
		jobLog := log.With(zap.String("job_id", job.ID))
		run, err := fetchers.NewRun(app.RunOptions{
			Config:  crawlCfg,
			Visited: visited,
			Dir:     filepath.Join(cfg.App.JobsDir, job.ID),
			Extra:   []repository.ReportSink{postgres.NewReportRepo(dbpool, job.ID)},
			Metrics: m,
			Logger:  jobLog,
		})
		if err != nil {
			return nil, nil, err
		}
		return run.Scheduler, func() {
			if err := run.Close(); err != nil {
				jobLog.Warn("failed to close error log", zap.Error(err))
			}
		}, nil
	}

	runner := usecase.NewJobRunner(queueRepo, jobRepo, recentRepo, build, cfg.Crawl, m, log)
	dedup := time.Duration(cfg.App.DeduplicationDays) * 24 * time.Hour
	jobs := usecase.NewJobManager(jobRepo, queueRepo, recentRepo, runner, dedup, m, log)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		runner.Run(ctx, cfg.App.WorkerPollInterval)
	}()

	// --- HTTP Server ---
	deps := map[string]handler.Pinger{
		"postgres": dbpool,
		"redis":    handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}
	apiHandler := handler.NewHandler(jobs, pageRepo, deps, log)
	httpRouter := router.New(apiHandler, m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), log)

	server := &http.Server{
		Addr:         ":" + cfg.App.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting server", zap.String("port", cfg.App.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not listen on port", zap.String("port", cfg.App.ServerPort), zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// The running crawl sees the cancelled context, saves its partial
	// report and marks the job cancelled.
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("worker did not stop before shutdown deadline")
	}
	log.Info("Server exiting")
}
