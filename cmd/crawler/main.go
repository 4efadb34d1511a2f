package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/user/seo-crawler/internal/app"
	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/usecase"
	"github.com/user/seo-crawler/pkg/config"
	"github.com/user/seo-crawler/pkg/logger"
	"github.com/user/seo-crawler/pkg/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	root := &cobra.Command{
		Use:           "seocrawl",
		Short:         "SEO site crawler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or .env)")
	root.PersistentFlags().String("log-level", "info", "log level: debug|info|warn|error")
	_ = v.BindPFlag("LOG_LEVEL", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newCrawlCmd(v, &cfgFile))
	return root
}

// crawlFlags maps CLI flags onto configuration keys. The negated boolean
// flags are applied after loading instead.
var crawlFlags = map[string]string{
	"max-depth":       "CRAWL_MAX_DEPTH",
	"fan-out":         "CRAWL_FAN_OUT",
	"delay":           "CRAWL_REQUEST_DELAY",
	"max-connections": "CRAWL_MAX_CONNECTIONS",
	"rps":             "CRAWL_REQUESTS_PER_SECOND",
	"retries":         "CRAWL_RETRY_MAX",
	"save-interval":   "CRAWL_SAVE_INTERVAL",
	"snapshot-dir":    "CRAWL_SNAPSHOT_DIR",
	"report":          "CRAWL_REPORT_FILE",
	"error-log":       "CRAWL_ERROR_LOG_FILE",
	"fetcher":         "CRAWL_FETCHER",
	"visited":         "CRAWL_VISITED_BACKEND",
	"apex":            "CRAWL_APEX_STRATEGY",
	"proxy":           "CRAWL_PROXIES",
}

func newCrawlCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	d := config.DefaultCrawl()
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site and write the SEO report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, *cfgFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if all, _ := flags.GetBool("all-subdomains"); all {
				cfg.Crawl.MainDomainOnly = false
			}
			if off, _ := flags.GetBool("no-robots"); off {
				cfg.Crawl.FollowRobotsTxt = false
			}
			if off, _ := flags.GetBool("no-pagerank"); off {
				cfg.Crawl.CalculatePageRank = false
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCrawl(ctx, cfg, args[0])
		},
	}

	f := cmd.Flags()
	f.Int("max-depth", d.MaxDepth, "maximum link depth from the start page")
	f.Bool("all-subdomains", false, "crawl every subdomain of the site apex")
	f.Bool("no-robots", false, "ignore robots.txt")
	f.Bool("no-pagerank", false, "skip PageRank")
	f.Int("fan-out", d.FanOut, "links dispatched concurrently per page")
	f.Duration("delay", d.RequestDelay, "politeness delay before each request")
	f.Int("max-connections", d.MaxConnections, "global cap on concurrent fetches")
	f.Float64("rps", d.RequestsPerSecond, "global request rate limit, 0 for none")
	f.Int("retries", d.RetryMax, "retries for transport failures")
	f.Int("save-interval", d.SaveInterval, "snapshot every N analyzed pages, 0 to disable")
	f.String("snapshot-dir", d.SnapshotDir, "directory for snapshot files")
	f.String("report", d.ReportFile, "final report path")
	f.String("error-log", d.ErrorLogFile, "error log path, empty to disable")
	f.String("fetcher", d.Fetcher, "page fetcher: http|chromedp")
	f.String("visited", d.VisitedBackend, "visited set backend: memory|redis")
	f.String("apex", d.ApexStrategy, "apex strategy: heuristic|publicsuffix")
	f.StringSlice("proxy", nil, "proxy URL, repeatable")

	for name, key := range crawlFlags {
		_ = v.BindPFlag(key, f.Lookup(name))
	}
	return cmd
}

func runCrawl(ctx context.Context, cfg *config.Config, seed string) error {
	log, err := logger.New(os.Stdout, cfg.App.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	m := metrics.New(prometheus.NewRegistry())

	var rdb *redis.Client
	if cfg.Crawl.VisitedBackend == config.BackendRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
	}
	visited, err := app.NewVisited(cfg.Crawl, rdb, uuid.NewString())
	if err != nil {
		return err
	}

	fetchers, err := app.NewFetchers(cfg.Crawl, log)
	if err != nil {
		return err
	}
	defer fetchers.Close()

	run, err := fetchers.NewRun(app.RunOptions{
		Config:  cfg.Crawl,
		Visited: visited,
		Metrics: m,
		Logger:  log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := run.Close(); err != nil {
			log.Warn("failed to close error log", zap.Error(err))
		}
	}()

	report, err := run.Scheduler.Run(ctx, seed)
	if report != nil {
		printSummary(report, cfg.Crawl.ReportFile)
	}
	if errors.Is(err, usecase.ErrReportSave) {
		log.Error("report not saved", zap.Error(err))
	}
	return err
}

func printSummary(r *entity.Report, path string) {
	status := "completed"
	if r.Aborted {
		status = "aborted"
	}
	fmt.Printf("\nCrawl %s: %d pages analyzed, %d errors, %d duplicates\n",
		status, r.PagesAnalyzed, len(r.Errors), len(r.Duplicates))

	codes := make([]int, 0, len(r.StatusCodes))
	for c := range r.StatusCodes {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	for _, c := range codes {
		fmt.Printf("  HTTP %d: %d\n", c, r.StatusCodes[c])
	}
	fmt.Printf("Pages with issues: %d\n", len(r.Issues))
	if path != "" {
		fmt.Printf("Report written to %s\n", path)
	}
}
