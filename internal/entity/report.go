package entity

import (
	"strconv"
	"strings"
	"time"
)

// URLState is the lifecycle position of a URL within one crawl.
type URLState string

const (
	StateDiscovered URLState = "discovered"
	StateDispatched URLState = "dispatched"
	StateAnalyzed   URLState = "analyzed"
	StateRejected   URLState = "rejected"
	StateSkipped    URLState = "skipped"
	StateFailed     URLState = "failed"
)

// DuplicateGroup lists every URL sharing a content fingerprint. The first
// URL is the canonical one.
type DuplicateGroup struct {
	Hash string   `json:"hash"`
	URLs []string `json:"urls"`
}

// RedirectRecord describes a followed redirect chain.
type RedirectRecord struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Chain string `json:"chain"`
}

// NewRedirectRecord renders hop statuses followed by the final status,
// e.g. "301 -> 302 -> 200".
func NewRedirectRecord(r *FetchResult) RedirectRecord {
	parts := make([]string, 0, len(r.Redirects)+1)
	for _, hop := range r.Redirects {
		parts = append(parts, strconv.Itoa(hop.StatusCode))
	}
	parts = append(parts, strconv.Itoa(r.StatusCode))
	return RedirectRecord{From: r.URL, To: r.FinalURL, Chain: strings.Join(parts, " -> ")}
}

type SnapshotKind string

const (
	SnapshotPages      SnapshotKind = "pages"
	SnapshotDuplicates SnapshotKind = "duplicates"
	SnapshotErrors     SnapshotKind = "errors"
	SnapshotLinks      SnapshotKind = "links"
	SnapshotRedirects  SnapshotKind = "redirects"
)

// SnapshotKinds is the fixed set of report kinds persisted per checkpoint.
var SnapshotKinds = []SnapshotKind{
	SnapshotPages, SnapshotDuplicates, SnapshotErrors, SnapshotLinks, SnapshotRedirects,
}

// Snapshot is a point-in-time copy of the crawl result.
type Snapshot struct {
	Seed          string              `json:"seed"`
	TakenAt       time.Time           `json:"taken_at"`
	PagesAnalyzed int                 `json:"pages_analyzed"`
	Pages         []PageRecord        `json:"pages"`
	Duplicates    []DuplicateGroup    `json:"duplicates"`
	Errors        []ErrorRecord       `json:"errors"`
	ErrorSources  map[string][]string `json:"error_sources"`
	Links         map[string][]string `json:"links"`
	Redirects     []RedirectRecord    `json:"redirects"`
}

// Part returns the section of the snapshot stored under kind.
func (s *Snapshot) Part(kind SnapshotKind) any {
	switch kind {
	case SnapshotPages:
		return s.Pages
	case SnapshotDuplicates:
		return s.Duplicates
	case SnapshotErrors:
		return struct {
			Errors  []ErrorRecord       `json:"errors"`
			Sources map[string][]string `json:"sources"`
		}{s.Errors, s.ErrorSources}
	case SnapshotLinks:
		return s.Links
	case SnapshotRedirects:
		return s.Redirects
	}
	return nil
}

// Report is the final crawl result handed to reporting.
type Report struct {
	Snapshot
	PageRank           map[string]float64  `json:"pagerank"`
	PageRankIterations int                 `json:"pagerank_iterations"`
	StatusCodes        map[int]int         `json:"status_codes"`
	URLStates          map[URLState]int    `json:"url_states"`
	Issues             map[string][]string `json:"issues"`
	StartedAt          time.Time           `json:"started_at"`
	FinishedAt         time.Time           `json:"finished_at"`
	Aborted            bool                `json:"aborted"`
}
