package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/shouldipickitup/internal/entity"
)

// SourceRecordRepoImpl stores one row per source in craigs_sources, with the
// record document in a JSONB column.
type SourceRecordRepoImpl struct {
	db *pgxpool.Pool
}

// NewSourceRecordRepo creates a new instance of SourceRecordRepoImpl.
func NewSourceRecordRepo(db *pgxpool.Pool) *SourceRecordRepoImpl {
	return &SourceRecordRepoImpl{db: db}
}

// Upsert replaces the document for rec.SourceURL. A known city_state is kept
// when the new record has none.
func (r *SourceRecordRepoImpl) Upsert(ctx context.Context, rec *entity.SourceRecord) error {
	doc, err := json.Marshal(rec.Document())
	if err != nil {
		return fmt.Errorf("marshal record document: %w", err)
	}

	query := `
		INSERT INTO craigs_sources (craigs_url, city_state, date_crawled, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (craigs_url) DO UPDATE SET
			city_state = COALESCE(NULLIF(EXCLUDED.city_state, ''), craigs_sources.city_state),
			date_crawled = EXCLUDED.date_crawled,
			doc = EXCLUDED.doc;
	`
	_, err = r.db.Exec(ctx, query, rec.SourceURL, rec.CityState, rec.LastCrawled, doc)
	return classify(ctx, "upsert", err)
}

// Register adds a source that has not been crawled yet. Existing rows only
// get their zip lists refreshed.
func (r *SourceRecordRepoImpl) Register(ctx context.Context, sourceURL string, zips []string) error {
	if zips == nil {
		zips = []string{}
	}
	query := `
		INSERT INTO craigs_sources (craigs_url, zips)
		VALUES ($1, $2)
		ON CONFLICT (craigs_url) DO UPDATE SET zips = EXCLUDED.zips;
	`
	_, err := r.db.Exec(ctx, query, sourceURL, zips)
	return classify(ctx, "register", err)
}

// LastCrawled returns entity.ErrNotFound for unknown or never-crawled sources.
func (r *SourceRecordRepoImpl) LastCrawled(ctx context.Context, sourceURL string) (time.Time, error) {
	var last *time.Time
	err := r.db.QueryRow(ctx, `SELECT date_crawled FROM craigs_sources WHERE craigs_url = $1;`, sourceURL).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && last == nil) {
		return time.Time{}, entity.ErrNotFound
	}
	if err != nil {
		return time.Time{}, classify(ctx, "last crawled", err)
	}
	return *last, nil
}

// ListByCrawlDate returns every source, never-crawled ones first, then oldest crawl first.
func (r *SourceRecordRepoImpl) ListByCrawlDate(ctx context.Context) ([]entity.SourceSummary, error) {
	query := `
		SELECT craigs_url, date_crawled
		FROM craigs_sources
		ORDER BY date_crawled ASC NULLS FIRST, craigs_url ASC;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, classify(ctx, "list sources", err)
	}
	defer rows.Close()

	var out []entity.SourceSummary
	for rows.Next() {
		var s entity.SourceSummary
		if err := rows.Scan(&s.SourceURL, &s.LastCrawled); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, classify(ctx, "list sources", rows.Err())
}

// FindByURL loads the stored record for a source.
func (r *SourceRecordRepoImpl) FindByURL(ctx context.Context, sourceURL string) (*entity.SourceRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT craigs_url, city_state, doc FROM craigs_sources WHERE craigs_url = $1;`, sourceURL)
	return scanRecord(ctx, row)
}

// FindByZip resolves a zip code to the source that serves it, checking primary
// zips before alternates.
func (r *SourceRecordRepoImpl) FindByZip(ctx context.Context, zip string) (*entity.SourceRecord, error) {
	query := `
		SELECT craigs_url, city_state, doc
		FROM craigs_sources
		WHERE $1 = ANY(zips) OR $1 = ANY(alt_zips)
		ORDER BY ($1 = ANY(zips)) DESC, craigs_url ASC
		LIMIT 1;
	`
	return scanRecord(ctx, r.db.QueryRow(ctx, query, zip))
}

func (r *SourceRecordRepoImpl) Ping(ctx context.Context) error {
	return classify(ctx, "ping", r.db.Ping(ctx))
}

func scanRecord(ctx context.Context, row pgx.Row) (*entity.SourceRecord, error) {
	var (
		sourceURL, cityState string
		raw                  []byte
	)
	if err := row.Scan(&sourceURL, &cityState, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, classify(ctx, "find record", err)
	}

	rec := entity.SourceRecord{SourceURL: sourceURL}
	if raw != nil {
		var doc entity.RecordDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode record document for %s: %w", sourceURL, err)
		}
		var err error
		rec, err = entity.RecordFromDocument(sourceURL, doc)
		if err != nil {
			return nil, fmt.Errorf("decode record document for %s: %w", sourceURL, err)
		}
	}
	rec.CityState = cityState
	return &rec, nil
}

// classify marks errors that did not come back from the server as
// *entity.StoreUnavailableError. Server-side errors and caller cancellation are
// returned wrapped but unclassified.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		return fmt.Errorf("%s: %w", op, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return &entity.StoreUnavailableError{Op: op, Err: err}
	}
}
