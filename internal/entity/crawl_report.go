package entity

import "time"

// SkipReason explains why a source was not crawled.
type SkipReason string

const (
	SkipNone   SkipReason = ""
	SkipFresh  SkipReason = "fresh"
	SkipLeased SkipReason = "leased"
)

// CrawlReport summarises one source crawl.
type CrawlReport struct {
	RunID      string
	SourceURL  string
	Skipped    SkipReason
	Fetched    int
	Evaluated  int
	Accepted   int
	Rejected   map[CorrelationKind]int
	Transient  int
	GeoAbsent  int
	Write      WriteStatus
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewCrawlReport returns a report with its counters initialised.
func NewCrawlReport(runID, sourceURL string, started time.Time) *CrawlReport {
	return &CrawlReport{
		RunID:     runID,
		SourceURL: sourceURL,
		Rejected:  make(map[CorrelationKind]int),
		StartedAt: started,
	}
}

// BatchSummary aggregates the reports of one batch run.
type BatchSummary struct {
	Sources    int            `json:"sources"`
	Crawled    int            `json:"crawled"`
	Fresh      int            `json:"fresh"`
	Leased     int            `json:"leased"`
	Degraded   int            `json:"degraded"`
	Failed     map[string]int `json:"failed"`
	Accepted   int            `json:"accepted"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Source states reported by the status endpoint.
const (
	StateRunning = "running"
	StateCrawled = "crawled"
	StateFailed  = "failed"
	StateUnknown = "unknown"
)

// SourceStatus is the current view of a single source.
type SourceStatus struct {
	SourceURL   string
	State       string
	RunID       string
	LastCrawled *time.Time
	Items       int
	Failure     *CrawlFailure
}
