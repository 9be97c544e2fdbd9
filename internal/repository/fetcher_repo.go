package repository

import "context"

// Page is a fetched document. StatusCode is whatever the remote returned;
// classifying it is the caller's job.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher is the fetch capability. Implementations never retry and surface
// transport failures as errors. Timeouts come from ctx.
type Fetcher interface {
	Get(ctx context.Context, url string) (*Page, error)
}
