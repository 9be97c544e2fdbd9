package response

import (
	"time"

	"github.com/user/shouldipickitup/internal/entity"
)

type SubmitCrawlResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	CrawlRequestID string `json:"crawl_request_id"`
}

// CrawlStatusResponse is a DTO for source status, mirroring entity.SourceStatus
type CrawlStatusResponse struct {
	URL                string     `json:"url"`
	CurrentStatus      string     `json:"current_status"` // "running", "crawled", "failed"
	RunID              string     `json:"run_id,omitempty"`
	LastCrawlTimestamp *time.Time `json:"last_crawl_timestamp,omitempty"`
	Items              int        `json:"items"`
	FailureKind        string     `json:"failure_kind,omitempty"`
	FailureReason      string     `json:"failure_reason,omitempty"`
	FailureCount       int        `json:"failure_count,omitempty"`
}

func NewCrawlStatusResponse(s *entity.SourceStatus) CrawlStatusResponse {
	resp := CrawlStatusResponse{
		URL:                s.SourceURL,
		CurrentStatus:      s.State,
		RunID:              s.RunID,
		LastCrawlTimestamp: s.LastCrawled,
		Items:              s.Items,
	}
	if s.Failure != nil {
		resp.FailureKind = s.Failure.Kind
		resp.FailureReason = s.Failure.Reason
		resp.FailureCount = s.Failure.FailureCount
	}
	return resp
}

// RecordResponse carries a stored record in its persisted document shape.
type RecordResponse struct {
	SourceURL string                `json:"source_url"`
	CityState string                `json:"city_state,omitempty"`
	Document  entity.RecordDocument `json:"document"`
}

func NewRecordResponse(rec *entity.SourceRecord) RecordResponse {
	return RecordResponse{
		SourceURL: rec.SourceURL,
		CityState: rec.CityState,
		Document:  rec.Document(),
	}
}

type SourcesResponse struct {
	Sources []entity.SourceSummary `json:"sources"`
}

type FailuresResponse struct {
	Failures []*entity.CrawlFailure `json:"failures"`
}

type BatchesResponse struct {
	Batches []entity.BatchSummary `json:"batches"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
