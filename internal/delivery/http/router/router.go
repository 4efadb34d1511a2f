package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/user/seo-crawler/internal/delivery/http/handler"
	"github.com/user/seo-crawler/internal/delivery/http/middleware"
	"github.com/user/seo-crawler/pkg/metrics"
)

// New builds the API router. metricsHandler serves /metrics, typically
// promhttp.HandlerFor the registry behind m.
func New(h *handler.Handler, m *metrics.Metrics, metricsHandler http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Handle("/metrics", metricsHandler)
	r.Get("/api/health", h.HandleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/crawl", h.HandleSubmitCrawl)
		r.Delete("/crawl/{id}", h.HandleCancelCrawl)
		r.Get("/crawl/{id}/page", h.HandleGetPage)
		r.Get("/status", h.HandleGetCrawlStatus)
	})

	return r
}
