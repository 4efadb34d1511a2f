package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/user/seo-crawler/internal/analyzer"
	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/linkgraph"
	"github.com/user/seo-crawler/internal/pagerank"
	"github.com/user/seo-crawler/internal/repository"
	"github.com/user/seo-crawler/internal/scope"
	"github.com/user/seo-crawler/pkg/config"
	"github.com/user/seo-crawler/pkg/metrics"
)

var (
	ErrSchedulerUsed = errors.New("scheduler already ran")
	ErrReportSave    = errors.New("save report")
	ErrVisitedStore  = errors.New("visited set unavailable")
)

const topPagesLogged = 10

// RobotsLoader builds the robots policy for a canonical seed.
type RobotsLoader func(ctx context.Context, seed string) repository.RobotsPolicy

// SchedulerDeps are the collaborators of one crawl. Fetcher and Visited are
// required; the rest may be nil.
type SchedulerDeps struct {
	Fetcher  repository.Fetcher
	Visited  repository.VisitedRepository
	Robots   RobotsLoader
	Sink     repository.ReportSink
	ErrorLog repository.ErrorLogSink
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type allowAll struct{}

func (allowAll) CanFetch(string) bool { return true }

// crawlState is everything the traversal mutates. Guarded by mu, except
// errors which locks itself.
type crawlState struct {
	mu          sync.Mutex
	graph       *linkgraph.Graph
	dedup       *linkgraph.DedupIndex
	pages       map[string]*entity.PageRecord
	order       []string
	states      map[string]entity.URLState
	statusCodes map[int]int
	redirects   []entity.RedirectRecord
	errors      *ErrorRecorder
}

// Scheduler drives a single crawl from a seed to the final report.
type Scheduler struct {
	cfg     config.CrawlConfig
	deps    SchedulerDeps
	logger  *zap.Logger
	metrics *metrics.Metrics
	limiter *rate.Limiter
	conns   *semaphore.Weighted
	now     func() time.Time

	seed        string
	filter      *scope.Filter
	analyzer    *analyzer.Analyzer
	robots      repository.RobotsPolicy
	checkpoints *CheckpointManager
	state       *crawlState

	started atomic.Bool
	aborted atomic.Bool

	fatalOnce sync.Once
	fatalErr  error
}

func NewScheduler(cfg config.CrawlConfig, deps SchedulerDeps) (*Scheduler, error) {
	if deps.Fetcher == nil || deps.Visited == nil {
		return nil, errors.New("scheduler needs a fetcher and a visited set")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}

	s := &Scheduler{
		cfg:     cfg,
		deps:    deps,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		conns:   semaphore.NewWeighted(int64(max(cfg.MaxConnections, 1))),
		now:     time.Now,
		robots:  allowAll{},
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	s.state = &crawlState{
		graph:       linkgraph.NewGraph(),
		dedup:       linkgraph.NewDedupIndex(),
		pages:       make(map[string]*entity.PageRecord),
		states:      make(map[string]entity.URLState),
		statusCodes: make(map[int]int),
		errors:      NewErrorRecorder(deps.ErrorLog, deps.Metrics),
	}
	return s, nil
}

func (s *Scheduler) apexFunc() scope.ApexFunc {
	if s.cfg.ApexStrategy == config.ApexPublicSuffix {
		return scope.PublicSuffixApex
	}
	return scope.ApexDomain
}

// Run crawls the site of seed and returns the final report. Cancelling ctx
// stops new dispatches; fetches in flight finish and the report is built
// from what was collected, with Aborted set.
func (s *Scheduler) Run(ctx context.Context, seed string) (*entity.Report, error) {
	if s.started.Swap(true) {
		return nil, ErrSchedulerUsed
	}
	startedAt := s.now()

	canonical, err := scope.Normalize(seed)
	if err != nil {
		return nil, fmt.Errorf("seed %q: %w", seed, err)
	}
	s.seed = canonical
	s.filter, err = scope.NewFilter(canonical, s.cfg.MainDomainOnly, s.apexFunc())
	if err != nil {
		return nil, fmt.Errorf("scope for %s: %w", canonical, err)
	}
	s.analyzer = analyzer.New(s.filter)
	if s.cfg.FollowRobotsTxt && s.deps.Robots != nil {
		if p := s.deps.Robots(ctx, canonical); p != nil {
			s.robots = p
		}
	}
	s.checkpoints = NewCheckpointManager(ctx, s.deps.Sink, s.cfg.SaveInterval, s.cfg.SnapshotKeep,
		s.snapshot, s.metrics, s.logger)

	stop := context.AfterFunc(ctx, func() { s.aborted.Store(true) })
	defer stop()

	s.logger.Info("crawl started",
		zap.String("seed", canonical),
		zap.String("apex", s.filter.Apex()),
		zap.Int("max_depth", s.cfg.MaxDepth))

	s.dispatch(ctx, canonical, 0, "")
	s.checkpoints.Close()

	report := s.finalize(ctx, startedAt)
	s.logSummary(report)

	// fatalErr is written only by dispatch goroutines, all joined by now.
	runErr := s.fatalErr
	if s.deps.Sink != nil {
		if err := s.deps.Sink.SaveReport(context.WithoutCancel(ctx), report); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("%w: %w", ErrReportSave, err))
		}
	}
	return report, runErr
}

// abort stops the crawl on an infrastructure failure. The first error is
// returned from Run once the partial report is saved.
func (s *Scheduler) abort(err error) {
	s.fatalOnce.Do(func() {
		s.fatalErr = err
		s.logger.Error("aborting crawl", zap.Error(err))
	})
	s.aborted.Store(true)
}

// dispatch processes one discovered URL and, if it turns out to be a page,
// recursively its links.
func (s *Scheduler) dispatch(ctx context.Context, url string, depth int, source string) {
	if s.stopping(ctx) || depth > s.cfg.MaxDepth {
		return
	}
	if !s.filter.InScope(url) {
		s.setState(url, entity.StateRejected)
		return
	}
	if !s.robots.CanFetch(url) {
		s.logger.Debug("disallowed by robots.txt", zap.String("url", url))
		s.setState(url, entity.StateSkipped)
		return
	}

	bg := context.WithoutCancel(ctx)
	fresh, err := s.deps.Visited.TryVisit(bg, url)
	if err != nil {
		s.abort(fmt.Errorf("%w: %s: %w", ErrVisitedStore, url, err))
		return
	}
	if !fresh {
		return
	}
	s.setState(url, entity.StateDispatched)

	if err := s.throttle(ctx); err != nil {
		return
	}
	if err := s.conns.Acquire(ctx, 1); err != nil {
		return
	}
	s.metrics.FetchesInFlight.Inc()
	res, err := s.deps.Fetcher.Fetch(bg, url)
	s.metrics.FetchesInFlight.Dec()
	s.conns.Release(1)

	links := s.handle(url, depth, source, res, err)
	s.fanOut(ctx, links, depth+1, url)
}

// stopping reports whether the crawl was aborted. The AfterFunc hook sets
// the flag asynchronously, so ctx is consulted too.
func (s *Scheduler) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		s.aborted.Store(true)
	}
	return s.aborted.Load()
}

// throttle applies the politeness delay and the optional global rate limit.
func (s *Scheduler) throttle(ctx context.Context) error {
	if s.cfg.RequestDelay > 0 {
		t := time.NewTimer(s.cfg.RequestDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if s.limiter != nil {
		return s.limiter.Wait(ctx)
	}
	return nil
}

// fanOut dispatches links in batches of FanOut, joining each batch before
// starting the next.
func (s *Scheduler) fanOut(ctx context.Context, links []string, depth int, source string) {
	if len(links) == 0 || depth > s.cfg.MaxDepth {
		return
	}
	width := max(s.cfg.FanOut, 1)
	for i := 0; i < len(links); i += width {
		if s.stopping(ctx) {
			return
		}
		var g errgroup.Group
		for _, link := range links[i:min(i+width, len(links))] {
			g.Go(func() error {
				s.dispatch(ctx, link, depth, source)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// handle classifies a fetch outcome and returns the links to follow.
func (s *Scheduler) handle(url string, depth int, source string, res *entity.FetchResult, fetchErr error) []string {
	if fetchErr != nil {
		s.fail(entity.ErrorRecord{
			URL:       url,
			Kind:      entity.ClassifyError(fetchErr),
			SourceURL: source,
			Message:   fetchErr.Error(),
		})
		return nil
	}

	s.metrics.IncPagesFetched(res.StatusCode)
	s.metrics.FetchDuration.Observe(res.Latency.Seconds())

	s.state.mu.Lock()
	s.state.statusCodes[res.StatusCode]++
	if res.Redirected() {
		s.state.redirects = append(s.state.redirects, entity.NewRedirectRecord(res))
	}
	s.state.mu.Unlock()

	if res.Redirected() {
		final, err := scope.Normalize(res.FinalURL)
		if err != nil || !s.filter.InScope(final) {
			s.logger.Debug("redirect left scope", zap.String("url", url), zap.String("final", res.FinalURL))
			s.setState(url, entity.StateRejected)
			return nil
		}
		// The target stays unvisited: pages linking to it directly get it
		// as a page of its own.
	}

	if kind, failed := entity.ClassifyStatus(res.StatusCode); failed {
		s.fail(entity.ErrorRecord{
			URL:        url,
			Kind:       kind,
			StatusCode: res.StatusCode,
			SourceURL:  source,
			Message:    fmt.Sprintf("HTTP %d", res.StatusCode),
		})
		return nil
	}
	if !res.IsHTML() {
		s.setState(url, entity.StateSkipped)
		return nil
	}

	rec, err := s.analyzer.Analyze(res, depth)
	if err != nil {
		// The page keeps whatever was extracted before the failure.
		var next []string
		if rec != nil {
			next = s.commit(rec)
		}
		s.fail(entity.ErrorRecord{
			URL:        url,
			Kind:       entity.KindParseError,
			StatusCode: res.StatusCode,
			SourceURL:  source,
			Message:    err.Error(),
		})
		return next
	}
	return s.commit(rec)
}

func (s *Scheduler) fail(rec entity.ErrorRecord) {
	rec.Timestamp = s.now()

	// Recording under mu means a commit linking to rec.URL either comes
	// first and is in known, or sees StateFailed and finds the record.
	s.state.mu.Lock()
	s.state.states[rec.URL] = entity.StateFailed
	s.state.errors.Record(rec, s.state.graph.Sources(rec.URL)...)
	s.state.mu.Unlock()

	s.logger.Debug("url failed",
		zap.String("url", rec.URL),
		zap.String("kind", string(rec.Kind)),
		zap.Int("status", rec.StatusCode))
}

// commit adds an analyzed page to the crawl state and returns its internal
// links that have not been seen yet.
func (s *Scheduler) commit(rec *entity.PageRecord) []string {
	st := s.state
	st.mu.Lock()
	if rec.ContentHash != "" {
		rec.Duplicate = st.dedup.Add(rec.ContentHash, rec.URL)
	}
	st.graph.MarkPage(rec.URL)
	st.graph.AddEdges(rec.URL, rec.InternalLinks)
	st.pages[rec.URL] = rec
	st.order = append(st.order, rec.URL)
	st.states[rec.URL] = entity.StateAnalyzed

	// Links still in Discovered may have been dropped as too deep from
	// another page, so they are offered again; TryVisit dedups.
	var next []string
	for _, link := range rec.InternalLinks {
		switch state, seen := st.states[link]; {
		case !seen:
			st.states[link] = entity.StateDiscovered
			next = append(next, link)
		case state == entity.StateDiscovered:
			next = append(next, link)
		case state == entity.StateFailed:
			st.errors.AddSource(link, rec.URL)
		}
	}
	analyzed := len(st.order)
	st.mu.Unlock()

	s.metrics.PagesAnalyzed.Inc()
	if s.cfg.ProgressEvery > 0 && analyzed%s.cfg.ProgressEvery == 0 {
		s.logger.Info("crawl progress",
			zap.Int("pages", analyzed),
			zap.Int("errors", st.errors.Len()),
			zap.String("last", rec.URL))
	}
	s.checkpoints.Observe(analyzed)
	return next
}

func (s *Scheduler) setState(url string, state entity.URLState) {
	s.state.mu.Lock()
	s.state.states[url] = state
	s.state.mu.Unlock()
}

// snapshot copies the collected result. Safe to call during the crawl.
func (s *Scheduler) snapshot() *entity.Snapshot {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	pages := make([]entity.PageRecord, len(st.order))
	for i, url := range st.order {
		pages[i] = *st.pages[url]
	}
	return &entity.Snapshot{
		Seed:          s.seed,
		TakenAt:       s.now(),
		PagesAnalyzed: len(st.order),
		Pages:         pages,
		Duplicates:    st.dedup.Groups(),
		Errors:        st.errors.Records(),
		ErrorSources:  st.errors.Sources(),
		Links:         st.graph.Edges(),
		Redirects:     append([]entity.RedirectRecord(nil), st.redirects...),
	}
}

// finalize fills inbound counts and PageRank into the page records, then
// builds the report.
func (s *Scheduler) finalize(ctx context.Context, startedAt time.Time) *entity.Report {
	st := s.state
	st.mu.Lock()
	urls, adj := st.graph.PageSubgraph()
	scores, iterations := s.rank(adj)
	ranks := make(map[string]float64, len(urls))
	for i, url := range urls {
		rec := st.pages[url]
		rec.InboundLinks = st.graph.InboundCount(url)
		rec.PageRank = scores[i]
		ranks[url] = scores[i]
	}
	statusCodes := make(map[int]int, len(st.statusCodes))
	for code, n := range st.statusCodes {
		statusCodes[code] = n
	}
	urlStates := make(map[entity.URLState]int)
	for _, state := range st.states {
		urlStates[state]++
	}
	st.mu.Unlock()

	snap := s.snapshot()
	rules := AuditRules{MinWordCount: s.cfg.MinWordCount, MaxResponseTime: s.cfg.MaxResponseTime}
	return &entity.Report{
		Snapshot:           *snap,
		PageRank:           ranks,
		PageRankIterations: iterations,
		StatusCodes:        statusCodes,
		URLStates:          urlStates,
		Issues:             rules.Audit(snap.Pages),
		StartedAt:          startedAt,
		FinishedAt:         s.now(),
		Aborted:            s.stopping(ctx),
	}
}

// rank returns one score per node of adj.
func (s *Scheduler) rank(adj [][]int) ([]float64, int) {
	uniform := func() []float64 {
		scores := make([]float64, len(adj))
		for i := range scores {
			scores[i] = pagerank.Uniform(len(adj))
		}
		return scores
	}
	if !s.cfg.CalculatePageRank || len(adj) == 0 {
		return uniform(), 0
	}

	res, err := pagerank.Solve(adj, pagerank.Options{
		Damping:       s.cfg.PageRankDamping,
		MaxIterations: s.cfg.PageRankIterations,
		Epsilon:       s.cfg.PageRankEpsilon,
	})
	if err != nil {
		s.logger.Error("pagerank failed, using uniform scores", zap.Error(err))
		return uniform(), 0
	}
	s.metrics.PageRankIterations.Set(float64(res.Iterations))
	if !res.Converged {
		s.logger.Info("pagerank hit the iteration cap", zap.Int("iterations", res.Iterations))
	}
	return res.Scores, res.Iterations
}

func (s *Scheduler) logSummary(report *entity.Report) {
	s.logger.Info("crawl finished",
		zap.String("seed", report.Seed),
		zap.Int("pages", len(report.Pages)),
		zap.Int("errors", len(report.Errors)),
		zap.Int("duplicate_groups", len(report.Duplicates)),
		zap.Int("redirects", len(report.Redirects)),
		zap.Bool("aborted", report.Aborted),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	if !s.cfg.CalculatePageRank || len(report.PageRank) == 0 {
		return
	}
	top := make([]string, 0, len(report.PageRank))
	for url := range report.PageRank {
		top = append(top, url)
	}
	sort.Slice(top, func(i, j int) bool {
		if report.PageRank[top[i]] != report.PageRank[top[j]] {
			return report.PageRank[top[i]] > report.PageRank[top[j]]
		}
		return top[i] < top[j]
	})
	for i, url := range top[:min(topPagesLogged, len(top))] {
		s.logger.Info("top page",
			zap.Int("rank", i+1),
			zap.String("url", url),
			zap.Float64("pagerank", report.PageRank[url]))
	}
}
