package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/repository"
)

func setup(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestQueueFIFO(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()
	q := NewQueueRepo(client)

	_, err := q.Pop(ctx)
	require.ErrorIs(t, err, repository.ErrQueueEmpty)

	require.NoError(t, q.Push(ctx, "job-1"))
	require.NoError(t, q.Push(ctx, "job-2"))
	n, err := q.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	id, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	id, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-2", id)
}

func TestRecentCrawl(t *testing.T) {
	client, mr := setup(t)
	ctx := context.Background()
	r := NewRecentCrawlRepo(client)
	seed := "https://example.com/"

	ok, err := r.IsRecentlyCrawled(ctx, seed)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.MarkCrawled(ctx, seed, time.Hour))
	ok, err = r.IsRecentlyCrawled(ctx, seed)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Hour)
	ok, err = r.IsRecentlyCrawled(ctx, seed)
	require.NoError(t, err)
	assert.False(t, ok, "marker expires")

	require.NoError(t, r.MarkCrawled(ctx, seed, time.Hour))
	require.NoError(t, r.Forget(ctx, seed))
	ok, err = r.IsRecentlyCrawled(ctx, seed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVisitedTryVisit(t *testing.T) {
	client, mr := setup(t)
	ctx := context.Background()
	v := NewVisitedRepo(client, "crawl-1", time.Hour)

	ok, err := v.TryVisit(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = v.TryVisit(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, ok)

	other := NewVisitedRepo(client, "crawl-2", time.Hour)
	ok, err = other.TryVisit(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, ok, "crawls are isolated")

	n, err := v.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.True(t, mr.TTL("crawler:crawl:crawl-1:visited") > 0)
}

func TestVisitedConcurrent(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()
	v := NewVisitedRepo(client, "crawl-1", 0)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := v.TryVisit(ctx, "https://example.com/"); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestJobRepo(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()
	r := NewJobRepo(client)

	_, err := r.Get(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrJobNotFound)

	depth := 2
	job := &entity.CrawlJob{
		ID:            "abc",
		Seed:          "https://example.com/",
		CurrentStatus: entity.JobPending,
		Options:       entity.JobOptions{MaxDepth: &depth},
		SubmittedAt:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, r.Save(ctx, job))

	got, err := r.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, job.Seed, got.Seed)
	assert.Equal(t, entity.JobPending, got.CurrentStatus)
	require.NotNil(t, got.Options.MaxDepth)
	assert.Equal(t, 2, *got.Options.MaxDepth)
	assert.True(t, job.SubmittedAt.Equal(got.SubmittedAt))
}
