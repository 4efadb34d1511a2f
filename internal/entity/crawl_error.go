package entity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrorKind classifies why a URL could not be analyzed.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindHTTPError    ErrorKind = "http_error"
	KindTimeout      ErrorKind = "timeout"
	KindNetworkError ErrorKind = "network_error"
	KindParseError   ErrorKind = "parse_error"
)

// ClassifyStatus maps an HTTP status to an error kind. ok is false for
// statuses below 400.
func ClassifyStatus(status int) (kind ErrorKind, ok bool) {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound, true
	case status >= 400:
		return KindHTTPError, true
	default:
		return "", false
	}
}

// ErrorRecord is one failed URL as seen from one discovering page.
// SourceURL is empty for the seed.
type ErrorRecord struct {
	URL        string    `json:"url"`
	Kind       ErrorKind `json:"kind"`
	StatusCode int       `json:"status_code,omitempty"`
	SourceURL  string    `json:"source_url,omitempty"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// FetchError is a transport-level failure; no HTTP status was received.
type FetchError struct {
	URL  string
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClassifyError maps a fetch failure to Timeout or NetworkError.
func ClassifyError(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Kind != "" {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetworkError
}
