package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/repository"
)

// PageRepoImpl reads stored page records.
type PageRepoImpl struct {
	db DB
}

func NewPageRepo(db DB) *PageRepoImpl {
	return &PageRepoImpl{db: db}
}

// FindPage retrieves the record of url from the final report of crawlID.
func (r *PageRepoImpl) FindPage(ctx context.Context, crawlID, url string) (*entity.PageRecord, error) {
	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT record FROM crawl_pages WHERE crawl_id = $1 AND url = $2`,
		crawlID, url,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrPageNotFound
	}
	if err != nil {
		return nil, err
	}

	var page entity.PageRecord
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", url, err)
	}
	return &page, nil
}
