package repository

import (
	"context"
	"time"

	"github.com/user/shouldipickitup/internal/entity"
)

// SourceRecordReader is the read side shared by the primary and snapshot stores.
type SourceRecordReader interface {
	// LastCrawled returns entity.ErrNotFound when the source has never been crawled.
	LastCrawled(ctx context.Context, sourceURL string) (time.Time, error)
	// ListByCrawlDate returns all sources, oldest crawl first.
	ListByCrawlDate(ctx context.Context) ([]entity.SourceSummary, error)
	// FindByURL returns entity.ErrNotFound for an unknown source.
	FindByURL(ctx context.Context, sourceURL string) (*entity.SourceRecord, error)
}

// SourceRecordRepository is the primary document store.
type SourceRecordRepository interface {
	SourceRecordReader
	// Upsert replaces the stored record for rec.SourceURL, creating it if absent.
	// Connection failures are returned as *entity.StoreUnavailableError.
	Upsert(ctx context.Context, rec *entity.SourceRecord) error
	// Register adds a never-crawled source serving the given zip codes.
	Register(ctx context.Context, sourceURL string, zips []string) error
	// FindByZip resolves a zip code to the record of the source that serves it.
	FindByZip(ctx context.Context, zip string) (*entity.SourceRecord, error)
	Ping(ctx context.Context) error
}
