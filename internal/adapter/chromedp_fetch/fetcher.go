// Package chromedp_fetch renders pages in headless Chrome for sites whose
// links only appear after scripts run.
package chromedp_fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/seo-crawler/internal/entity"
)

type Fetcher struct {
	allocatorPool *sync.Pool
	timeout       time.Duration
	logger        *zap.Logger

	mu      sync.Mutex
	cancels []context.CancelFunc
}

// New creates a fetcher backed by a pool of Chrome allocators.
func New(maxConcurrency int, pageLoadTimeout time.Duration, userAgent string, logger *zap.Logger) *Fetcher {
	f := &Fetcher{timeout: pageLoadTimeout, logger: logger}
	f.allocatorPool = &sync.Pool{
		New: func() interface{} {
			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.UserAgent(userAgent),
			)
			allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
			f.mu.Lock()
			f.cancels = append(f.cancels, cancel)
			f.mu.Unlock()
			return allocCtx
		},
	}

	for i := 0; i < maxConcurrency; i++ {
		f.allocatorPool.Put(f.allocatorPool.Get())
	}
	return f
}

// Close shuts down every browser started by the pool.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cancel := range f.cancels {
		cancel()
	}
	f.cancels = nil
}

// document tracks the main-frame responses of one navigation.
type document struct {
	mu        sync.Mutex
	requestID network.RequestID
	final     *network.Response
	hops      []entity.RedirectHop
}

func (d *document) listen(ev interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Type != network.ResourceTypeDocument {
			return
		}
		if d.requestID == "" {
			d.requestID = e.RequestID
		}
		if e.RequestID == d.requestID && e.RedirectResponse != nil {
			d.hops = append(d.hops, entity.RedirectHop{
				URL:        e.RedirectResponse.URL,
				StatusCode: int(e.RedirectResponse.Status),
			})
		}
	case *network.EventResponseReceived:
		if e.Type == network.ResourceTypeDocument && e.RequestID == d.requestID {
			d.final = e.Response
		}
	}
}

// Fetch navigates to url and returns the rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*entity.FetchResult, error) {
	allocCtx := f.allocatorPool.Get().(context.Context)
	defer f.allocatorPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, f.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	doc := &document{}
	chromedp.ListenTarget(taskCtx, doc.listen)

	var html string
	start := time.Now()
	err := chromedp.Run(taskCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	latency := time.Since(start)
	if err != nil {
		f.logger.Debug("render failed", zap.String("url", url), zap.Error(err))
		return nil, &entity.FetchError{URL: url, Kind: entity.ClassifyError(err), Err: err}
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()
	if doc.final == nil {
		return nil, &entity.FetchError{URL: url, Kind: entity.KindNetworkError, Err: fmt.Errorf("no document response")}
	}

	res := &entity.FetchResult{
		URL:         url,
		FinalURL:    doc.final.URL,
		StatusCode:  int(doc.final.Status),
		ContentType: doc.final.MimeType,
		Header:      toHeader(doc.final.Headers),
		Redirects:   doc.hops,
		Latency:     latency,
	}
	if res.IsHTML() {
		res.Body = []byte(html)
	}
	return res, nil
}

func toHeader(h network.Headers) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		out.Set(k, fmt.Sprint(v))
	}
	return out
}
