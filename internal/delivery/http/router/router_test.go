package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/seo-crawler/internal/delivery/http/handler"
	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/repository"
	"github.com/user/seo-crawler/pkg/metrics"
)

type noJobs struct{}

func (noJobs) Submit(context.Context, string, bool, entity.JobOptions) (*entity.CrawlJob, error) {
	return nil, repository.ErrJobNotFound
}

func (noJobs) GetStatus(context.Context, string) (*entity.CrawlJob, error) {
	return nil, repository.ErrJobNotFound
}

func (noJobs) Cancel(context.Context, string) (*entity.CrawlJob, error) {
	return nil, repository.ErrJobNotFound
}

func TestRoutesAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := handler.NewHandler(noJobs{}, nil, nil, zap.NewNop())
	srv := httptest.NewServer(New(h, m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
	resp.Body.Close()

	for _, id := range []string{"a", "b"} {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/crawl/"+id, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodDelete, "/api/crawl/{id}", "404")))

	resp, err = http.Post(srv.URL+"/api/status", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "http_requests_total")
}
