package usecase

import (
	"context"
	"errors"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/repository"
)

// MultiSink fans every call out to all sinks and joins their errors.
type MultiSink []repository.ReportSink

func (m MultiSink) SaveSnapshot(ctx context.Context, snap *entity.Snapshot) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SaveSnapshot(ctx, snap))
	}
	return errors.Join(errs...)
}

func (m MultiSink) PruneSnapshots(ctx context.Context, keep int) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.PruneSnapshots(ctx, keep))
	}
	return errors.Join(errs...)
}

func (m MultiSink) SaveReport(ctx context.Context, report *entity.Report) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SaveReport(ctx, report))
	}
	return errors.Join(errs...)
}
