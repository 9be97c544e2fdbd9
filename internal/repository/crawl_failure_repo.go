package repository

import (
	"context"

	"github.com/user/shouldipickitup/internal/entity"
)

// CrawlFailureRepository keeps per-source failure accounting for the batch driver.
type CrawlFailureRepository interface {
	// SaveOrUpdate creates or updates the failure row and bumps its count.
	SaveOrUpdate(ctx context.Context, failure *entity.CrawlFailure) error
	// FindByURL returns entity.ErrNotFound when the source has no failure row.
	FindByURL(ctx context.Context, sourceURL string) (*entity.CrawlFailure, error)
	// FindRecent lists failures, most recent attempt first.
	FindRecent(ctx context.Context, limit int) ([]*entity.CrawlFailure, error)
	// Delete clears the failure row after a successful crawl.
	Delete(ctx context.Context, sourceURL string) error
}
