// Package httpfetch implements the crawler's Fetcher on net/http.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/zap"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/pkg/config"
)

const (
	defaultMaxRedirects = 10
	defaultMaxBodyBytes = 10 << 20
)

// Options configures the HTTP client.
type Options struct {
	UserAgent       string
	Timeout         time.Duration
	ConnectTimeout  time.Duration
	MaxConnsPerHost int
	MaxRedirects    int
	MaxBodyBytes    int64
	Proxies         []string

	// RetryMax > 0 retries transport failures with exponential backoff.
	RetryMax       int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// OptionsFrom maps crawl settings onto fetcher options.
func OptionsFrom(cfg config.CrawlConfig) Options {
	return Options{
		UserAgent:       cfg.UserAgent,
		Timeout:         cfg.FetchTimeout,
		ConnectTimeout:  cfg.ConnectTimeout,
		MaxConnsPerHost: cfg.MaxConnectionsPerHost,
		Proxies:         cfg.Proxies,
		RetryMax:        cfg.RetryMax,
		RetryBaseDelay:  cfg.RetryBaseDelay,
		RetryMaxDelay:   cfg.RetryMaxDelay,
	}
}

type hopsKey struct{}

type Fetcher struct {
	client   *http.Client
	opts     Options
	executor failsafe.Executor[*entity.FetchResult]
	logger   *zap.Logger
}

// New builds the transport and client. An invalid proxy list is an error.
func New(opts Options, logger *zap.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.MaxConnsPerHost <= 0 {
		opts.MaxConnsPerHost = 5
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	rotator, err := newProxyRotator(opts.Proxies)
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 rotator.Proxy,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   opts.MaxConnsPerHost,
		MaxConnsPerHost:       opts.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ExpectContinueTimeout: time.Second,
	}

	f := &Fetcher{opts: opts, logger: logger}
	f.client = &http.Client{
		Transport:     transport,
		Timeout:       opts.Timeout,
		CheckRedirect: f.checkRedirect,
	}

	if opts.RetryMax > 0 {
		base, maxDelay := opts.RetryBaseDelay, opts.RetryMaxDelay
		if base <= 0 {
			base = 200 * time.Millisecond
		}
		if maxDelay < base {
			maxDelay = 10 * base
		}
		policy := retrypolicy.NewBuilder[*entity.FetchResult]().
			HandleIf(func(_ *entity.FetchResult, err error) bool {
				return err != nil && !errors.Is(err, context.Canceled)
			}).
			WithMaxRetries(opts.RetryMax).
			WithBackoff(base, maxDelay).
			WithJitterFactor(0.1).
			Build()
		f.executor = failsafe.With(policy)
	}
	return f, nil
}

// Client exposes the underlying client so robots.txt is fetched with the
// same transport.
func (f *Fetcher) Client() *http.Client { return f.client }

func (f *Fetcher) UserAgent() string { return f.opts.UserAgent }

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= f.opts.MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", f.opts.MaxRedirects)
	}
	if hops, ok := req.Context().Value(hopsKey{}).(*[]entity.RedirectHop); ok && req.Response != nil {
		*hops = append(*hops, entity.RedirectHop{
			URL:        via[len(via)-1].URL.String(),
			StatusCode: req.Response.StatusCode,
		})
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	return nil
}

// Fetch issues a GET for url. Non-2xx responses are results, not errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*entity.FetchResult, error) {
	if f.executor == nil {
		return f.do(ctx, url)
	}
	res, err := f.executor.WithContext(ctx).Get(func() (*entity.FetchResult, error) {
		return f.do(ctx, url)
	})
	if err != nil {
		f.logger.Debug("fetch failed after retries", zap.String("url", url), zap.Int("retry_max", f.opts.RetryMax), zap.Error(err))
		var fe *entity.FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &entity.FetchError{URL: url, Kind: entity.ClassifyError(err), Err: err}
	}
	return res, nil
}

func (f *Fetcher) do(ctx context.Context, url string) (*entity.FetchResult, error) {
	var hops []entity.RedirectHop
	ctx = context.WithValue(ctx, hopsKey{}, &hops)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &entity.FetchError{URL: url, Kind: entity.KindNetworkError, Err: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &entity.FetchError{URL: url, Kind: entity.ClassifyError(err), Err: err}
	}
	defer resp.Body.Close()

	res := &entity.FetchResult{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Redirects:   hops,
	}

	body := io.LimitReader(resp.Body, f.opts.MaxBodyBytes)
	if res.IsHTML() && resp.StatusCode < http.StatusBadRequest {
		res.Body, err = io.ReadAll(body)
		if err != nil {
			return nil, &entity.FetchError{URL: url, Kind: entity.ClassifyError(err), Err: fmt.Errorf("read body: %w", err)}
		}
	} else {
		_, _ = io.Copy(io.Discard, body)
	}
	res.Latency = time.Since(start)
	return res, nil
}
