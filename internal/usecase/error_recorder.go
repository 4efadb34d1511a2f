package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/repository"
	"github.com/user/seo-crawler/pkg/metrics"
)

const startPage = "start page"

// ErrorRecorder collects failed URLs together with every page that linked
// to them. Safe for concurrent use.
type ErrorRecorder struct {
	mu      sync.Mutex
	records []entity.ErrorRecord
	sources map[string][]string
	seen    map[string]map[string]bool

	log     repository.ErrorLogSink
	metrics *metrics.Metrics
}

// NewErrorRecorder returns a recorder. log and m may be nil.
func NewErrorRecorder(log repository.ErrorLogSink, m *metrics.Metrics) *ErrorRecorder {
	return &ErrorRecorder{
		sources: make(map[string][]string),
		seen:    make(map[string]map[string]bool),
		log:     log,
		metrics: m,
	}
}

// Record stores rec. known lists pages already known to link to rec.URL;
// they are indexed as sources alongside rec.SourceURL.
func (r *ErrorRecorder) Record(rec entity.ErrorRecord, known ...string) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	if _, ok := r.seen[rec.URL]; !ok {
		r.seen[rec.URL] = make(map[string]bool)
		r.sources[rec.URL] = []string{}
	}
	for _, src := range known {
		r.addSourceLocked(rec.URL, src)
	}
	r.addSourceLocked(rec.URL, sourceLabel(rec.SourceURL))
	r.mu.Unlock()

	if r.log != nil {
		r.log.Log(FormatErrorLine(rec))
	}
	if r.metrics != nil {
		r.metrics.IncErrorsTotal(string(rec.Kind))
	}
}

// AddSource indexes source as another page linking to a failed url. It is
// a no-op for URLs that never failed.
func (r *ErrorRecorder) AddSource(url, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[url]; ok {
		r.addSourceLocked(url, sourceLabel(source))
	}
}

func (r *ErrorRecorder) addSourceLocked(url, source string) {
	if source == "" || r.seen[url][source] {
		return
	}
	r.seen[url][source] = true
	r.sources[url] = append(r.sources[url], source)
}

// Failed reports whether url has an error record.
func (r *ErrorRecorder) Failed(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[url]
	return ok
}

func (r *ErrorRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Records returns a copy of the records in recording order.
func (r *ErrorRecorder) Records() []entity.ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.ErrorRecord(nil), r.records...)
}

// Sources returns a copy of the source index.
func (r *ErrorRecorder) Sources() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make(map[string][]string, len(r.sources))
	for url, srcs := range r.sources {
		res[url] = append([]string(nil), srcs...)
	}
	return res
}

func sourceLabel(source string) string {
	if source == "" {
		return startPage
	}
	return source
}

// FormatErrorLine renders rec the way it appears in the error log.
func FormatErrorLine(rec entity.ErrorRecord) string {
	src := sourceLabel(rec.SourceURL)
	switch rec.Kind {
	case entity.KindNotFound:
		return fmt.Sprintf("404: %s (source: %s)", rec.URL, src)
	case entity.KindHTTPError:
		return fmt.Sprintf("Error %d: %s (source: %s)", rec.StatusCode, rec.URL, src)
	case entity.KindTimeout:
		return fmt.Sprintf("Timeout: %s (source: %s)", rec.URL, src)
	case entity.KindParseError:
		return fmt.Sprintf("Error analyzing %s: %s", rec.URL, rec.Message)
	default:
		return fmt.Sprintf("Error processing %s: %s (source: %s)", rec.URL, rec.Message, src)
	}
}
