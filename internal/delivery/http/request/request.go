package request

import "github.com/user/seo-crawler/internal/entity"

type SubmitCrawlRequest struct {
	URL        string            `json:"url"`
	ForceCrawl bool              `json:"force_crawl"`
	Options    entity.JobOptions `json:"options"`
}
