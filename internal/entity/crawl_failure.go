package entity

import "time"

// CrawlFailure mirrors the `crawl_failures` PostgreSQL table schema.
type CrawlFailure struct {
	ID                   int64     `json:"id"`
	SourceURL            string    `json:"source_url"`
	Kind                 string    `json:"kind"`
	Reason               string    `json:"reason"`
	HTTPStatusCode       int       `json:"http_status_code,omitempty"`
	LastAttemptTimestamp time.Time `json:"last_attempt_timestamp"`
	FailureCount         int       `json:"failure_count"`
}
