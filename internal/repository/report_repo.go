package repository

import (
	"context"
	"errors"

	"github.com/user/seo-crawler/internal/entity"
)

// ReportSink persists checkpoint snapshots and the final report.
type ReportSink interface {
	SaveSnapshot(ctx context.Context, snap *entity.Snapshot) error
	// PruneSnapshots keeps only the newest keep snapshots per kind.
	PruneSnapshots(ctx context.Context, keep int) error
	SaveReport(ctx context.Context, report *entity.Report) error
}

var ErrPageNotFound = errors.New("page not found")

// PageRepository reads page records of finished crawls.
type PageRepository interface {
	FindPage(ctx context.Context, crawlID, url string) (*entity.PageRecord, error)
}
