package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/repository"
)

type fakeResults struct {
	pgx.BatchResults
	err error
}

func (f fakeResults) Close() error { return f.err }

type fakeTx struct {
	pgx.Tx
	batches    []*pgx.Batch
	batchErr   error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batches = append(f.batches, b)
	return fakeResults{err: f.batchErr}
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeRow struct {
	raw []byte
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.raw
	return nil
}

type fakeDB struct {
	tx    *fakeTx
	execs []string
	args  [][]any
	row   fakeRow
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) { return f.tx, nil }

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row { return f.row }

func sampleReport() *entity.Report {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &entity.Report{
		Snapshot: entity.Snapshot{
			Seed:    "https://example.com/",
			TakenAt: now,
			Pages: []entity.PageRecord{
				{URL: "https://example.com/", StatusCode: 200, Title: "Home", CrawledAt: now},
				{URL: "https://example.com/a", StatusCode: 200, Title: "A", CrawledAt: now},
			},
			Errors: []entity.ErrorRecord{
				{URL: "https://example.com/gone", Kind: entity.KindNotFound, StatusCode: 404, Timestamp: now},
			},
			Links: map[string][]string{
				"https://example.com/": {"https://example.com/a", "https://example.com/gone"},
			},
			Redirects: []entity.RedirectRecord{
				{From: "https://example.com/old", To: "https://example.com/a", Chain: "301 -> 200"},
			},
		},
		StatusCodes: map[int]int{200: 2, 404: 1},
		StartedAt:   now.Add(-time.Minute),
		FinishedAt:  now,
	}
}

func TestSaveReportBatch(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	repo := NewReportRepo(db, "job-1")

	require.NoError(t, repo.SaveReport(context.Background(), sampleReport()))
	require.Len(t, db.tx.batches, 1)
	assert.True(t, db.tx.committed)

	var deletes, reports, pages, links, errs, redirects int
	for _, q := range db.tx.batches[0].QueuedQueries {
		sql := strings.TrimSpace(q.SQL)
		assert.Equal(t, "job-1", q.Arguments[0])
		switch {
		case strings.HasPrefix(sql, "DELETE"):
			deletes++
		case strings.Contains(sql, "INSERT INTO crawl_reports"):
			reports++
		case strings.Contains(sql, "INSERT INTO crawl_pages"):
			pages++
		case strings.Contains(sql, "INSERT INTO crawl_links"):
			links++
		case strings.Contains(sql, "INSERT INTO crawl_errors"):
			errs++
		case strings.Contains(sql, "INSERT INTO crawl_redirects"):
			redirects++
		}
	}
	assert.Equal(t, 4, deletes)
	assert.Equal(t, 1, reports)
	assert.Equal(t, 2, pages)
	assert.Equal(t, 2, links)
	assert.Equal(t, 1, errs)
	assert.Equal(t, 1, redirects)
}

func TestSaveReportRollsBackOnBatchError(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{batchErr: errors.New("boom")}}
	repo := NewReportRepo(db, "job-1")

	err := repo.SaveReport(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job-1")
	assert.False(t, db.tx.committed)
	assert.True(t, db.tx.rolledBack)
}

func TestSaveSnapshotOneRowPerKind(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	repo := NewReportRepo(db, "job-1")

	snap := sampleReport().Snapshot
	require.NoError(t, repo.SaveSnapshot(context.Background(), &snap))
	require.Len(t, db.tx.batches, 1)

	queued := db.tx.batches[0].QueuedQueries
	require.Len(t, queued, len(entity.SnapshotKinds))
	for i, kind := range entity.SnapshotKinds {
		assert.Equal(t, string(kind), queued[i].Arguments[1])
	}
}

func TestPruneSnapshots(t *testing.T) {
	db := &fakeDB{}
	repo := NewReportRepo(db, "job-1")

	require.NoError(t, repo.PruneSnapshots(context.Background(), 3))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "PARTITION BY kind")
	assert.Equal(t, []any{"job-1", 3}, db.args[0])
}

func TestMigrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, Migrate(context.Background(), db))
	require.Len(t, db.execs, 1)
	for _, table := range []string{"crawl_reports", "crawl_pages", "crawl_links", "crawl_errors", "crawl_redirects", "crawl_snapshots"} {
		assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestFindPage(t *testing.T) {
	db := &fakeDB{row: fakeRow{raw: []byte(`{"url":"https://example.com/a","status_code":200,"title":"A"}`)}}
	page, err := NewPageRepo(db).FindPage(context.Background(), "job-1", "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "A", page.Title)

	db.row = fakeRow{err: pgx.ErrNoRows}
	_, err = NewPageRepo(db).FindPage(context.Background(), "job-1", "https://example.com/missing")
	assert.ErrorIs(t, err, repository.ErrPageNotFound)
}
