package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/shouldipickitup/internal/entity"
)

// CrawlFailureRepoImpl keeps per-source failure counts in PostgreSQL.
type CrawlFailureRepoImpl struct {
	db *pgxpool.Pool
}

// NewCrawlFailureRepo creates a new instance of CrawlFailureRepoImpl.
func NewCrawlFailureRepo(db *pgxpool.Pool) *CrawlFailureRepoImpl {
	return &CrawlFailureRepoImpl{db: db}
}

// SaveOrUpdate creates or updates the failure row for a source.
// It increments failure_count on conflict.
func (r *CrawlFailureRepoImpl) SaveOrUpdate(ctx context.Context, f *entity.CrawlFailure) error {
	query := `
		INSERT INTO crawl_failures (source_url, kind, reason, http_status_code, last_attempt_timestamp, failure_count)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (source_url) DO UPDATE SET
			kind = EXCLUDED.kind,
			reason = EXCLUDED.reason,
			http_status_code = EXCLUDED.http_status_code,
			last_attempt_timestamp = EXCLUDED.last_attempt_timestamp,
			failure_count = crawl_failures.failure_count + 1;
	`
	_, err := r.db.Exec(ctx, query,
		f.SourceURL,
		f.Kind,
		f.Reason,
		f.HTTPStatusCode,
		f.LastAttemptTimestamp,
	)
	return classify(ctx, "save failure", err)
}

// FindByURL retrieves the failure row for a source.
func (r *CrawlFailureRepoImpl) FindByURL(ctx context.Context, sourceURL string) (*entity.CrawlFailure, error) {
	query := `
		SELECT id, source_url, kind, reason, http_status_code, last_attempt_timestamp, failure_count
		FROM crawl_failures
		WHERE source_url = $1;
	`
	var f entity.CrawlFailure
	err := r.db.QueryRow(ctx, query, sourceURL).Scan(
		&f.ID,
		&f.SourceURL,
		&f.Kind,
		&f.Reason,
		&f.HTTPStatusCode,
		&f.LastAttemptTimestamp,
		&f.FailureCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, classify(ctx, "find failure", err)
	}
	return &f, nil
}

// FindRecent lists failures, most recent attempt first.
func (r *CrawlFailureRepoImpl) FindRecent(ctx context.Context, limit int) ([]*entity.CrawlFailure, error) {
	query := `
		SELECT id, source_url, kind, reason, http_status_code, last_attempt_timestamp, failure_count
		FROM crawl_failures
		ORDER BY last_attempt_timestamp DESC
		LIMIT $1;
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, classify(ctx, "list failures", err)
	}
	defer rows.Close()

	var failures []*entity.CrawlFailure
	for rows.Next() {
		var f entity.CrawlFailure
		if err := rows.Scan(
			&f.ID,
			&f.SourceURL,
			&f.Kind,
			&f.Reason,
			&f.HTTPStatusCode,
			&f.LastAttemptTimestamp,
			&f.FailureCount,
		); err != nil {
			return nil, err
		}
		failures = append(failures, &f)
	}

	return failures, classify(ctx, "list failures", rows.Err())
}

// Delete removes a source's failure row, typically after a successful crawl.
func (r *CrawlFailureRepoImpl) Delete(ctx context.Context, sourceURL string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM crawl_failures WHERE source_url = $1;`, sourceURL)
	return classify(ctx, "delete failure", err)
}
