package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/repository"
	"github.com/user/seo-crawler/pkg/metrics"
)

// CheckpointManager saves a snapshot every interval analyzed pages. Writes
// happen on a background goroutine; when it falls behind only the newest
// pending snapshot is kept.
type CheckpointManager struct {
	sink     repository.ReportSink
	interval int
	keep     int
	take     func() *entity.Snapshot
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu     sync.Mutex
	next   int
	closed bool
	slot   chan *entity.Snapshot
	done   chan struct{}
}

// NewCheckpointManager starts the writer goroutine. take must be safe to
// call concurrently with the crawl. interval <= 0 disables checkpoints.
func NewCheckpointManager(
	ctx context.Context,
	sink repository.ReportSink,
	interval, keep int,
	take func() *entity.Snapshot,
	m *metrics.Metrics,
	logger *zap.Logger,
) *CheckpointManager {
	c := &CheckpointManager{
		sink:     sink,
		interval: interval,
		keep:     keep,
		take:     take,
		metrics:  m,
		logger:   logger,
		next:     interval,
		slot:     make(chan *entity.Snapshot, 1),
		done:     make(chan struct{}),
	}
	go c.loop(context.WithoutCancel(ctx))
	return c
}

// Observe is called after each committed page with the running total.
func (c *CheckpointManager) Observe(pagesAnalyzed int) {
	if c.interval <= 0 || c.sink == nil {
		return
	}
	c.mu.Lock()
	if c.closed || pagesAnalyzed < c.next {
		c.mu.Unlock()
		return
	}
	c.next = (pagesAnalyzed/c.interval + 1) * c.interval
	c.mu.Unlock()

	snap := c.take()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case <-c.slot:
		c.logger.Debug("dropping stale checkpoint")
	default:
	}
	c.slot <- snap
}

func (c *CheckpointManager) loop(ctx context.Context) {
	defer close(c.done)
	for snap := range c.slot {
		c.save(ctx, snap)
	}
}

func (c *CheckpointManager) save(ctx context.Context, snap *entity.Snapshot) {
	result := "ok"
	if err := c.sink.SaveSnapshot(ctx, snap); err != nil {
		result = "error"
		c.logger.Error("checkpoint failed", zap.Int("pages", snap.PagesAnalyzed), zap.Error(err))
	} else if err := c.sink.PruneSnapshots(ctx, c.keep); err != nil {
		c.logger.Warn("pruning checkpoints failed", zap.Error(err))
	} else {
		c.logger.Info("checkpoint saved", zap.Int("pages", snap.PagesAnalyzed))
	}
	if c.metrics != nil {
		c.metrics.CheckpointsTotal.WithLabelValues(result).Inc()
	}
}

// Close writes any pending snapshot and stops the writer.
func (c *CheckpointManager) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.slot)
	}
	c.mu.Unlock()
	<-c.done
}
