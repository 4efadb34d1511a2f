package entity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	for status, want := range map[int]ErrorKind{404: KindNotFound, 410: KindHTTPError, 500: KindHTTPError} {
		kind, ok := ClassifyStatus(status)
		assert.True(t, ok, status)
		assert.Equal(t, want, kind, status)
	}
	for _, status := range []int{200, 301, 399} {
		_, ok := ClassifyStatus(status)
		assert.False(t, ok, status)
	}
}

func TestNewRedirectRecord(t *testing.T) {
	rec := NewRedirectRecord(&FetchResult{
		URL:        "https://example.com/old",
		FinalURL:   "https://example.com/new",
		StatusCode: 200,
		Redirects: []RedirectHop{
			{URL: "https://example.com/old", StatusCode: 301},
			{URL: "https://example.com/mid", StatusCode: 302},
		},
	})
	assert.Equal(t, "301 -> 302 -> 200", rec.Chain)
	assert.Equal(t, "https://example.com/old", rec.From)
	assert.Equal(t, "https://example.com/new", rec.To)
}

func TestFetchResultIsHTML(t *testing.T) {
	assert.True(t, (&FetchResult{ContentType: "text/html; charset=utf-8"}).IsHTML())
	assert.True(t, (&FetchResult{ContentType: "TEXT/HTML"}).IsHTML())
	assert.False(t, (&FetchResult{ContentType: "application/pdf"}).IsHTML())
}

func TestImagesWithoutAlt(t *testing.T) {
	p := PageRecord{Images: []ImageInfo{{Src: "a", Alt: "x"}, {Src: "b"}, {Src: "c"}}}
	assert.Equal(t, 2, p.ImagesWithoutAlt())
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobPending.Terminal())
	assert.False(t, JobRunning.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobCancelled.Terminal())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	assert.Equal(t, KindTimeout, ClassifyError(context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, ClassifyError(fmt.Errorf("get: %w", timeoutErr{})))
	assert.Equal(t, KindNetworkError, ClassifyError(errors.New("connection refused")))
	assert.Equal(t, KindTimeout, ClassifyError(&FetchError{URL: "u", Kind: KindTimeout, Err: errors.New("x")}))

	fe := &FetchError{URL: "https://example.com/", Kind: KindNetworkError, Err: errors.New("reset")}
	assert.Contains(t, fe.Error(), "network_error")
	assert.ErrorIs(t, fmt.Errorf("wrap: %w", fe), fe.Err)
}
