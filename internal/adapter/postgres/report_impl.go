package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/seo-crawler/internal/entity"
)

// ReportRepoImpl stores snapshots and final reports of one crawl.
type ReportRepoImpl struct {
	db      DB
	crawlID string
}

func NewReportRepo(db DB, crawlID string) *ReportRepoImpl {
	return &ReportRepoImpl{db: db, crawlID: crawlID}
}

// SaveSnapshot writes one row per snapshot kind in a single batch.
func (r *ReportRepoImpl) SaveSnapshot(ctx context.Context, snap *entity.Snapshot) error {
	batch := &pgx.Batch{}
	for _, kind := range entity.SnapshotKinds {
		payload, err := json.Marshal(snap.Part(kind))
		if err != nil {
			return fmt.Errorf("encode %s snapshot: %w", kind, err)
		}
		batch.Queue(`INSERT INTO crawl_snapshots (crawl_id, kind, taken_at, pages_analyzed, payload)
			VALUES ($1, $2, $3, $4, $5)`,
			r.crawlID, string(kind), snap.TakenAt, snap.PagesAnalyzed, payload)
	}
	return r.inTx(ctx, batch)
}

// PruneSnapshots deletes all but the newest keep rows per kind.
func (r *ReportRepoImpl) PruneSnapshots(ctx context.Context, keep int) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM crawl_snapshots WHERE id IN (
			SELECT id FROM (
				SELECT id, row_number() OVER (PARTITION BY kind ORDER BY taken_at DESC, id DESC) AS rn
				FROM crawl_snapshots WHERE crawl_id = $1
			) ranked WHERE rn > $2
		)`, r.crawlID, keep)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

// SaveReport replaces everything stored for the crawl with report.
func (r *ReportRepoImpl) SaveReport(ctx context.Context, report *entity.Report) error {
	batch, err := r.reportBatch(report)
	if err != nil {
		return err
	}
	return r.inTx(ctx, batch)
}

func (r *ReportRepoImpl) reportBatch(report *entity.Report) (*pgx.Batch, error) {
	statusCodes, err := json.Marshal(report.StatusCodes)
	if err != nil {
		return nil, err
	}
	duplicates, err := json.Marshal(report.Duplicates)
	if err != nil {
		return nil, err
	}
	issues, err := json.Marshal(report.Issues)
	if err != nil {
		return nil, err
	}

	batch := &pgx.Batch{}
	for _, table := range []string{"crawl_pages", "crawl_links", "crawl_errors", "crawl_redirects"} {
		batch.Queue(`DELETE FROM `+table+` WHERE crawl_id = $1`, r.crawlID)
	}
	batch.Queue(`
		INSERT INTO crawl_reports (crawl_id, seed, started_at, finished_at, pages, errors, aborted, pagerank_iterations, status_codes, duplicates, issues)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (crawl_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			pages = EXCLUDED.pages,
			errors = EXCLUDED.errors,
			aborted = EXCLUDED.aborted,
			pagerank_iterations = EXCLUDED.pagerank_iterations,
			status_codes = EXCLUDED.status_codes,
			duplicates = EXCLUDED.duplicates,
			issues = EXCLUDED.issues`,
		r.crawlID, report.Seed, report.StartedAt, report.FinishedAt, len(report.Pages), len(report.Errors),
		report.Aborted, report.PageRankIterations, statusCodes, duplicates, issues)

	for i := range report.Pages {
		p := &report.Pages[i]
		record, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode page %s: %w", p.URL, err)
		}
		batch.Queue(`
			INSERT INTO crawl_pages (crawl_id, url, status_code, title, word_count, response_time_ms, content_hash, duplicate, pagerank, inbound_links, depth, record, crawled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			r.crawlID, p.URL, p.StatusCode, p.Title, p.WordCount, p.ResponseTime.Milliseconds(), p.ContentHash,
			p.Duplicate, p.PageRank, p.InboundLinks, p.Depth, record, p.CrawledAt)
	}
	for src, targets := range report.Links {
		for _, dst := range targets {
			batch.Queue(`INSERT INTO crawl_links (crawl_id, source, target) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				r.crawlID, src, dst)
		}
	}
	for _, e := range report.Errors {
		batch.Queue(`INSERT INTO crawl_errors (crawl_id, url, kind, status_code, source_url, message, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.crawlID, e.URL, string(e.Kind), e.StatusCode, e.SourceURL, e.Message, e.Timestamp)
	}
	for _, rd := range report.Redirects {
		batch.Queue(`INSERT INTO crawl_redirects (crawl_id, from_url, to_url, chain) VALUES ($1, $2, $3, $4)
			ON CONFLICT (crawl_id, from_url) DO UPDATE SET to_url = EXCLUDED.to_url, chain = EXCLUDED.chain`,
			r.crawlID, rd.From, rd.To, rd.Chain)
	}
	return batch, nil
}

func (r *ReportRepoImpl) inTx(ctx context.Context, batch *pgx.Batch) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("crawl %s: %w", r.crawlID, err)
	}
	return tx.Commit(ctx)
}
