package entity

import "time"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job will not change state again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// JobOptions overrides selected crawl settings for a single job.
type JobOptions struct {
	MaxDepth          *int  `json:"max_depth,omitempty"`
	MainDomainOnly    *bool `json:"main_domain_only,omitempty"`
	FollowRobotsTxt   *bool `json:"follow_robots_txt,omitempty"`
	CalculatePageRank *bool `json:"calculate_pagerank,omitempty"`
}

// CrawlJob tracks a site crawl submitted through the API.
type CrawlJob struct {
	ID            string     `json:"id"`
	Seed          string     `json:"seed"`
	Force         bool       `json:"force"`
	Options       JobOptions `json:"options"`
	CurrentStatus JobStatus  `json:"current_status"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	PagesAnalyzed int        `json:"pages_analyzed"`
	ErrorCount    int        `json:"error_count"`
	FailureReason string     `json:"failure_reason,omitempty"`
}
