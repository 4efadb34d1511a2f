package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrInvalidDamping  = errors.New("pagerank damping must be in (0, 1)")
	ErrInvalidCrawlCfg = errors.New("invalid crawl configuration")
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig      `mapstructure:",squash"`
	Postgres PostgresConfig `mapstructure:",squash"`
	Redis    RedisConfig    `mapstructure:",squash"`
	Crawl    CrawlConfig    `mapstructure:",squash"`
}

type AppConfig struct {
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	DeduplicationDays  int           `mapstructure:"DEDUPLICATION_DAYS"`
	WorkerPollInterval time.Duration `mapstructure:"WORKER_POLL_INTERVAL"`
	// JobsDir holds one directory of files per API crawl job.
	JobsDir            string        `mapstructure:"JOBS_DIR"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     string `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DB       string `mapstructure:"POSTGRES_DB"`
}

// DSN builds the pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.DB)
}

type RedisConfig struct {
	Addr     string `mapstructure:"REDIS_ADDR"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

// CrawlConfig drives a single crawl run.
type CrawlConfig struct {
	FollowRobotsTxt    bool          `mapstructure:"CRAWL_FOLLOW_ROBOTS_TXT" json:"follow_robots_txt"`
	MaxDepth           int           `mapstructure:"CRAWL_MAX_DEPTH" json:"max_depth"`
	MainDomainOnly     bool          `mapstructure:"CRAWL_MAIN_DOMAIN_ONLY" json:"main_domain_only"`
	CalculatePageRank  bool          `mapstructure:"CRAWL_CALCULATE_PAGERANK" json:"calculate_pagerank"`
	PageRankDamping    float64       `mapstructure:"CRAWL_PAGERANK_DAMPING" json:"pagerank_damping"`
	PageRankIterations int           `mapstructure:"CRAWL_PAGERANK_ITERATIONS" json:"pagerank_iterations"`
	PageRankEpsilon    float64       `mapstructure:"CRAWL_PAGERANK_EPSILON" json:"pagerank_epsilon"`
	MinWordCount       int           `mapstructure:"CRAWL_MIN_WORD_COUNT" json:"min_word_count"`
	MaxResponseTime    time.Duration `mapstructure:"CRAWL_MAX_RESPONSE_TIME" json:"max_response_time"`
	SaveInterval       int           `mapstructure:"CRAWL_SAVE_INTERVAL" json:"save_interval"`

	FanOut                int           `mapstructure:"CRAWL_FAN_OUT" json:"fan_out"`
	RequestDelay          time.Duration `mapstructure:"CRAWL_REQUEST_DELAY" json:"request_delay"`
	MaxConnections        int           `mapstructure:"CRAWL_MAX_CONNECTIONS" json:"max_connections"`
	MaxConnectionsPerHost int           `mapstructure:"CRAWL_MAX_CONNECTIONS_PER_HOST" json:"max_connections_per_host"`
	FetchTimeout          time.Duration `mapstructure:"CRAWL_FETCH_TIMEOUT" json:"fetch_timeout"`
	ConnectTimeout        time.Duration `mapstructure:"CRAWL_CONNECT_TIMEOUT" json:"connect_timeout"`
	UserAgent             string        `mapstructure:"CRAWL_USER_AGENT" json:"user_agent"`
	RetryMax              int           `mapstructure:"CRAWL_RETRY_MAX" json:"retry_max"`
	RetryBaseDelay        time.Duration `mapstructure:"CRAWL_RETRY_BASE_DELAY" json:"retry_base_delay"`
	RetryMaxDelay         time.Duration `mapstructure:"CRAWL_RETRY_MAX_DELAY" json:"retry_max_delay"`
	RequestsPerSecond     float64       `mapstructure:"CRAWL_REQUESTS_PER_SECOND" json:"requests_per_second"`
	ApexStrategy          string        `mapstructure:"CRAWL_APEX_STRATEGY" json:"apex_strategy"`
	ProgressEvery         int           `mapstructure:"CRAWL_PROGRESS_EVERY" json:"progress_every"`

	SnapshotDir    string   `mapstructure:"CRAWL_SNAPSHOT_DIR" json:"snapshot_dir"`
	SnapshotKeep   int      `mapstructure:"CRAWL_SNAPSHOT_KEEP" json:"snapshot_keep"`
	ReportFile     string   `mapstructure:"CRAWL_REPORT_FILE" json:"report_file"`
	ErrorLogFile   string   `mapstructure:"CRAWL_ERROR_LOG_FILE" json:"error_log_file"`
	VisitedBackend string   `mapstructure:"CRAWL_VISITED_BACKEND" json:"visited_backend"`
	Fetcher        string   `mapstructure:"CRAWL_FETCHER" json:"fetcher"`
	Proxies        []string `mapstructure:"CRAWL_PROXIES" json:"proxies,omitempty"`
}

const (
	ApexHeuristic    = "heuristic"
	ApexPublicSuffix = "publicsuffix"

	BackendMemory = "memory"
	BackendRedis  = "redis"

	FetcherHTTP     = "http"
	FetcherChromedp = "chromedp"

	DefaultUserAgent = "SEOFrog/1.0 (+https://example.com/bot)"
)

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEDUPLICATION_DAYS", 2)
	v.SetDefault("WORKER_POLL_INTERVAL", 2*time.Second)
	v.SetDefault("JOBS_DIR", "jobs")

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "user")
	v.SetDefault("POSTGRES_PASSWORD", "password")
	v.SetDefault("POSTGRES_DB", "crawler")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	d := DefaultCrawl()
	v.SetDefault("CRAWL_FOLLOW_ROBOTS_TXT", d.FollowRobotsTxt)
	v.SetDefault("CRAWL_MAX_DEPTH", d.MaxDepth)
	v.SetDefault("CRAWL_MAIN_DOMAIN_ONLY", d.MainDomainOnly)
	v.SetDefault("CRAWL_CALCULATE_PAGERANK", d.CalculatePageRank)
	v.SetDefault("CRAWL_PAGERANK_DAMPING", d.PageRankDamping)
	v.SetDefault("CRAWL_PAGERANK_ITERATIONS", d.PageRankIterations)
	v.SetDefault("CRAWL_PAGERANK_EPSILON", d.PageRankEpsilon)
	v.SetDefault("CRAWL_MIN_WORD_COUNT", d.MinWordCount)
	v.SetDefault("CRAWL_MAX_RESPONSE_TIME", d.MaxResponseTime)
	v.SetDefault("CRAWL_SAVE_INTERVAL", d.SaveInterval)
	v.SetDefault("CRAWL_FAN_OUT", d.FanOut)
	v.SetDefault("CRAWL_REQUEST_DELAY", d.RequestDelay)
	v.SetDefault("CRAWL_MAX_CONNECTIONS", d.MaxConnections)
	v.SetDefault("CRAWL_MAX_CONNECTIONS_PER_HOST", d.MaxConnectionsPerHost)
	v.SetDefault("CRAWL_FETCH_TIMEOUT", d.FetchTimeout)
	v.SetDefault("CRAWL_CONNECT_TIMEOUT", d.ConnectTimeout)
	v.SetDefault("CRAWL_USER_AGENT", d.UserAgent)
	v.SetDefault("CRAWL_RETRY_MAX", d.RetryMax)
	v.SetDefault("CRAWL_RETRY_BASE_DELAY", d.RetryBaseDelay)
	v.SetDefault("CRAWL_RETRY_MAX_DELAY", d.RetryMaxDelay)
	v.SetDefault("CRAWL_REQUESTS_PER_SECOND", d.RequestsPerSecond)
	v.SetDefault("CRAWL_APEX_STRATEGY", d.ApexStrategy)
	v.SetDefault("CRAWL_PROGRESS_EVERY", d.ProgressEvery)
	v.SetDefault("CRAWL_SNAPSHOT_DIR", d.SnapshotDir)
	v.SetDefault("CRAWL_SNAPSHOT_KEEP", d.SnapshotKeep)
	v.SetDefault("CRAWL_REPORT_FILE", d.ReportFile)
	v.SetDefault("CRAWL_ERROR_LOG_FILE", d.ErrorLogFile)
	v.SetDefault("CRAWL_VISITED_BACKEND", d.VisitedBackend)
	v.SetDefault("CRAWL_FETCHER", d.Fetcher)
	v.SetDefault("CRAWL_PROXIES", []string{})
}

// DefaultCrawl returns the crawl settings used when nothing is configured.
func DefaultCrawl() CrawlConfig {
	return CrawlConfig{
		FollowRobotsTxt:       true,
		MaxDepth:              10,
		MainDomainOnly:        true,
		CalculatePageRank:     true,
		PageRankDamping:       0.85,
		PageRankIterations:    20,
		PageRankEpsilon:       1e-6,
		MinWordCount:          300,
		MaxResponseTime:       5 * time.Second,
		SaveInterval:          500,
		FanOut:                3,
		RequestDelay:          300 * time.Millisecond,
		MaxConnections:        10,
		MaxConnectionsPerHost: 5,
		FetchTimeout:          30 * time.Second,
		ConnectTimeout:        10 * time.Second,
		UserAgent:             DefaultUserAgent,
		RetryMax:              0,
		RetryBaseDelay:        200 * time.Millisecond,
		RetryMaxDelay:         5 * time.Second,
		ApexStrategy:          ApexHeuristic,
		ProgressEvery:         50,
		SnapshotDir:           "autosaves",
		SnapshotKeep:          3,
		ReportFile:            "seo_report.json",
		ErrorLogFile:          "seo_errors.log",
		VisitedBackend:        BackendMemory,
		Fetcher:               FetcherHTTP,
	}
}

// Load reads configuration from an optional file and the environment.
// An empty path falls back to a .env file in the working directory,
// which is not required to exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Crawl.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the crawler cannot run with.
func (c CrawlConfig) Validate() error {
	if c.PageRankDamping <= 0 || c.PageRankDamping >= 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidDamping, c.PageRankDamping)
	}
	switch {
	case c.MaxDepth < 0:
		return fmt.Errorf("%w: max depth %d", ErrInvalidCrawlCfg, c.MaxDepth)
	case c.FanOut < 1:
		return fmt.Errorf("%w: fan out %d", ErrInvalidCrawlCfg, c.FanOut)
	case c.MaxConnections < 1:
		return fmt.Errorf("%w: max connections %d", ErrInvalidCrawlCfg, c.MaxConnections)
	case c.PageRankIterations < 1:
		return fmt.Errorf("%w: pagerank iterations %d", ErrInvalidCrawlCfg, c.PageRankIterations)
	case c.SaveInterval < 0:
		return fmt.Errorf("%w: save interval %d", ErrInvalidCrawlCfg, c.SaveInterval)
	case c.SnapshotKeep < 1:
		return fmt.Errorf("%w: snapshot keep %d", ErrInvalidCrawlCfg, c.SnapshotKeep)
	}
	switch c.ApexStrategy {
	case ApexHeuristic, ApexPublicSuffix:
	default:
		return fmt.Errorf("%w: apex strategy %q", ErrInvalidCrawlCfg, c.ApexStrategy)
	}
	switch c.VisitedBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("%w: visited backend %q", ErrInvalidCrawlCfg, c.VisitedBackend)
	}
	switch c.Fetcher {
	case FetcherHTTP, FetcherChromedp:
	default:
		return fmt.Errorf("%w: fetcher %q", ErrInvalidCrawlCfg, c.Fetcher)
	}
	return nil
}
