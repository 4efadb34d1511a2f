package usecase

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/user/seo-crawler/internal/entity"
)

const lowPageRank = 0.0001

// AuditRules holds the reporting thresholds applied to every page.
type AuditRules struct {
	MinWordCount    int
	MaxResponseTime time.Duration
}

// Issues lists the on-page SEO problems of p. Lengths are counted in
// characters.
func (r AuditRules) Issues(p *entity.PageRecord) []string {
	var issues []string

	switch n := utf8.RuneCountInString(p.Title); {
	case n == 0:
		issues = append(issues, "Missing title")
	case n > 60:
		issues = append(issues, "Title too long (>60)")
	case n < 30:
		issues = append(issues, "Title too short (<30)")
	}

	switch n := utf8.RuneCountInString(p.MetaDescription); {
	case n == 0:
		issues = append(issues, "Missing meta description")
	case n > 160:
		issues = append(issues, "Meta description too long (>160)")
	case n < 120:
		issues = append(issues, "Meta description too short (<120)")
	}

	switch {
	case len(p.H1) == 0:
		issues = append(issues, "Missing H1")
	case len(p.H1) > 1:
		issues = append(issues, "Multiple H1 tags")
	}

	if p.Duplicate {
		issues = append(issues, "Duplicate content")
	}
	if p.WordCount < r.MinWordCount {
		issues = append(issues, fmt.Sprintf("Thin content (<%d words)", r.MinWordCount))
	}
	if r.MaxResponseTime > 0 && p.ResponseTime > r.MaxResponseTime {
		issues = append(issues, "Slow response")
	}
	if p.PageRank < lowPageRank {
		issues = append(issues, "Low PageRank")
	}
	if n := p.ImagesWithoutAlt(); n > 0 {
		issues = append(issues, fmt.Sprintf("Images without alt (%d)", n))
	}
	return issues
}

// Audit maps each page URL with at least one issue to its issues.
func (r AuditRules) Audit(pages []entity.PageRecord) map[string][]string {
	res := make(map[string][]string)
	for i := range pages {
		if issues := r.Issues(&pages[i]); len(issues) > 0 {
			res[pages[i].URL] = issues
		}
	}
	return res
}
