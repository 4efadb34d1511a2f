package response

import (
	"time"

	"github.com/user/seo-crawler/internal/entity"
)

type SubmitCrawlResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	CrawlRequestID string `json:"crawl_request_id"`
}

// CrawlStatusResponse is a DTO for crawl status, mirroring entity.CrawlJob.
type CrawlStatusResponse struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	CurrentStatus string     `json:"current_status"` // "pending", "running", "completed", "failed", "cancelled"
	SubmittedAt   time.Time  `json:"submitted_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	PagesAnalyzed int        `json:"pages_analyzed"`
	ErrorCount    int        `json:"error_count"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

func NewCrawlStatusResponse(job *entity.CrawlJob) CrawlStatusResponse {
	return CrawlStatusResponse{
		ID:            job.ID,
		URL:           job.Seed,
		CurrentStatus: string(job.CurrentStatus),
		SubmittedAt:   job.SubmittedAt,
		StartedAt:     job.StartedAt,
		FinishedAt:    job.FinishedAt,
		PagesAnalyzed: job.PagesAnalyzed,
		ErrorCount:    job.ErrorCount,
		FailureReason: job.FailureReason,
	}
}
