package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/user/shouldipickitup/internal/delivery/http/request"
	"github.com/user/shouldipickitup/internal/delivery/http/response"
	"github.com/user/shouldipickitup/internal/entity"
	"github.com/user/shouldipickitup/internal/repository"
	"github.com/user/shouldipickitup/internal/usecase"
	"github.com/user/shouldipickitup/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	healthTimeout    = 2 * time.Second
)

var zipPattern = regexp.MustCompile(`^\d{5}$`)

// RecordStore is the read side of the persistence gateway.
type RecordStore interface {
	AllSourcesSortedByCrawlDate(ctx context.Context) ([]entity.SourceSummary, error)
	FindByURL(ctx context.Context, sourceURL string) (*entity.SourceRecord, error)
	FindByZip(ctx context.Context, zip string) (*entity.SourceRecord, error)
}

// Pinger is a dependency reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the handler's collaborators. Failures, History and Checks are optional.
type Deps struct {
	SourceManager usecase.SourceManager
	Records       RecordStore
	Failures      repository.CrawlFailureRepository
	History       repository.BatchHistoryRepository
	Checks        map[string]Pinger
	Logger        *slog.Logger
}

type Handler struct {
	deps   Deps
	logger *slog.Logger
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps:   deps,
		logger: logger.OrDefault(deps.Logger),
	}
}

func (h *Handler) HandleSubmitCrawl(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	runID, err := h.deps.SourceManager.Submit(r.Context(), req.URL, req.ForceCrawl)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidSourceURL):
			h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, usecase.ErrSourceRecentlyCrawled):
			h.writeJSONError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, usecase.ErrCrawlInProgress):
			h.writeJSON(w, http.StatusConflict, response.SubmitCrawlResponse{
				Status:         "error",
				Message:        err.Error(),
				CrawlRequestID: runID,
			})
		case entity.IsStoreUnavailable(err):
			h.logger.Error("Store unavailable while submitting source", "url", req.URL, "error", err)
			h.writeJSONError(w, "Store unavailable", http.StatusServiceUnavailable)
		default:
			h.logger.Error("Failed to submit source", "url", req.URL, "error", err)
			h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := response.SubmitCrawlResponse{
		Status:         "success",
		Message:        "Source submitted for crawling",
		CrawlRequestID: runID,
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) HandleGetCrawlStatus(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.writeJSONError(w, "URL query parameter is required", http.StatusBadRequest)
		return
	}

	status, err := h.deps.SourceManager.GetStatus(r.Context(), rawURL)
	if err != nil {
		h.logger.Error("Failed to get crawl status", "url", rawURL, "error", err)
		h.writeStoreError(w, err)
		return
	}

	if status.State == entity.StateUnknown {
		h.writeJSONError(w, "Crawl status not found for the given URL", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, response.NewCrawlStatusResponse(status))
}

func (h *Handler) HandleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.deps.Records.AllSourcesSortedByCrawlDate(r.Context())
	if err != nil {
		h.logger.Error("Failed to list sources", "error", err)
		h.writeStoreError(w, err)
		return
	}
	if sources == nil {
		sources = []entity.SourceSummary{}
	}
	h.writeJSON(w, http.StatusOK, response.SourcesResponse{Sources: sources})
}

func (h *Handler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.writeJSONError(w, "URL query parameter is required", http.StatusBadRequest)
		return
	}

	rec, err := h.deps.Records.FindByURL(r.Context(), rawURL)
	if err != nil {
		h.writeRecordError(w, rawURL, err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewRecordResponse(rec))
}

func (h *Handler) HandleGetZip(w http.ResponseWriter, r *http.Request) {
	zip := chi.URLParam(r, "zip")
	if !zipPattern.MatchString(zip) {
		h.writeJSONError(w, "Zip code must be five digits", http.StatusBadRequest)
		return
	}

	rec, err := h.deps.Records.FindByZip(r.Context(), zip)
	if err != nil {
		h.writeRecordError(w, zip, err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewRecordResponse(rec))
}

func (h *Handler) HandleListFailures(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	failures := []*entity.CrawlFailure{}
	if h.deps.Failures != nil {
		found, err := h.deps.Failures.FindRecent(r.Context(), limit)
		if err != nil {
			h.logger.Error("Failed to list crawl failures", "error", err)
			h.writeStoreError(w, err)
			return
		}
		if found != nil {
			failures = found
		}
	}
	h.writeJSON(w, http.StatusOK, response.FailuresResponse{Failures: failures})
}

func (h *Handler) HandleListBatches(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	batches := []entity.BatchSummary{}
	if h.deps.History != nil {
		found, err := h.deps.History.Recent(r.Context(), limit)
		if err != nil {
			h.logger.Error("Failed to list batch runs", "error", err)
			h.writeJSONError(w, "Batch history unavailable", http.StatusServiceUnavailable)
			return
		}
		if found != nil {
			batches = found
		}
	}
	h.writeJSON(w, http.StatusOK, response.BatchesResponse{Batches: batches})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := response.HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.deps.Checks))}
	code := http.StatusOK
	for name, p := range h.deps.Checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Error("Health check failed", "dependency", name, "error", err)
			resp.Checks[name] = "unhealthy"
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "healthy"
	}
	h.writeJSON(w, code, resp)
}

func (h *Handler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		h.writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return min(n, maxListLimit), true
}

func (h *Handler) writeRecordError(w http.ResponseWriter, key string, err error) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		h.writeJSONError(w, "Record not found", http.StatusNotFound)
	case errors.Is(err, usecase.ErrNoPrimaryStore):
		h.writeJSONError(w, err.Error(), http.StatusNotImplemented)
	default:
		h.logger.Error("Failed to read record", "key", key, "error", err)
		h.writeStoreError(w, err)
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if entity.IsStoreUnavailable(err) {
		h.writeJSONError(w, "Store unavailable", http.StatusServiceUnavailable)
		return
	}
	h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
