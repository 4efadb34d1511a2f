package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/seo-crawler/internal/delivery/http/request"
	"github.com/user/seo-crawler/internal/delivery/http/response"
	"github.com/user/seo-crawler/internal/repository"
	"github.com/user/seo-crawler/internal/scope"
	"github.com/user/seo-crawler/internal/usecase"
)

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handler struct {
	jobs   usecase.JobManager
	pages  repository.PageRepository
	deps   map[string]Pinger
	logger *zap.Logger
}

// NewHandler wires the API. pages may be nil when no report store is
// configured; deps are pinged by the health check.
func NewHandler(jobs usecase.JobManager, pages repository.PageRepository, deps map[string]Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		jobs:   jobs,
		pages:  pages,
		deps:   deps,
		logger: logger,
	}
}

func (h *Handler) HandleSubmitCrawl(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		h.writeJSONError(w, "url is required", http.StatusBadRequest)
		return
	}
	if d := req.Options.MaxDepth; d != nil && *d < 0 {
		h.writeJSONError(w, "options.max_depth must not be negative", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.Submit(r.Context(), req.URL, req.ForceCrawl, req.Options)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrSeedRecentlyCrawled):
			h.writeJSONError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, usecase.ErrInvalidSeed):
			h.writeJSONError(w, "Invalid URL format", http.StatusBadRequest)
		default:
			h.logger.Error("failed to submit crawl", zap.String("url", req.URL), zap.Error(err))
			h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := response.SubmitCrawlResponse{
		Status:         "success",
		Message:        "URL submitted for crawling",
		CrawlRequestID: job.ID,
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) HandleGetCrawlStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeJSONError(w, "id query parameter is required", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			h.writeJSONError(w, "Crawl status not found for the given id", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get crawl status", zap.String("id", id), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewCrawlStatusResponse(job))
}

func (h *Handler) HandleCancelCrawl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.jobs.Cancel(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		h.writeJSONError(w, "Crawl job not found", http.StatusNotFound)
	case errors.Is(err, usecase.ErrJobFinished):
		h.writeJSONError(w, err.Error(), http.StatusConflict)
	case err != nil:
		h.logger.Error("failed to cancel crawl", zap.String("id", id), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	default:
		h.writeJSON(w, http.StatusAccepted, response.NewCrawlStatusResponse(job))
	}
}

func (h *Handler) HandleGetPage(w http.ResponseWriter, r *http.Request) {
	if h.pages == nil {
		h.writeJSONError(w, "Page lookup is not available", http.StatusNotImplemented)
		return
	}
	id := chi.URLParam(r, "id")
	canonical, err := scope.Normalize(r.URL.Query().Get("url"))
	if err != nil {
		h.writeJSONError(w, "Invalid URL format in query parameter", http.StatusBadRequest)
		return
	}

	page, err := h.pages.FindPage(r.Context(), id, canonical)
	if err != nil {
		if errors.Is(err, repository.ErrPageNotFound) {
			h.writeJSONError(w, "Page not found in crawl", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to find page", zap.String("id", id), zap.String("url", canonical), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	healthy := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			status[name] = "unhealthy"
			healthy = false
			continue
		}
		status[name] = "healthy"
	}

	if !healthy {
		status["status"] = "degraded"
		h.writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
