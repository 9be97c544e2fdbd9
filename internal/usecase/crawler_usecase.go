package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/user/shouldipickitup/internal/crawler"
	"github.com/user/shouldipickitup/internal/entity"
	"github.com/user/shouldipickitup/internal/repository"
	"github.com/user/shouldipickitup/pkg/logger"
	"github.com/user/shouldipickitup/pkg/metrics"
	"github.com/user/shouldipickitup/pkg/utils"
)

// ListingSource fetches the free-items listings of a source.
type ListingSource interface {
	Fetch(ctx context.Context, endpoint string) (*crawler.ListingSeq, error)
}

// Correlator classifies one listing against the secondary marketplace.
type Correlator interface {
	Correlate(ctx context.Context, listing entity.Listing) (entity.CorrelationResult, error)
}

// GeoEnricher locates one listing. A nil Geo with a nil error means no location.
type GeoEnricher interface {
	Enrich(ctx context.Context, listing entity.Listing) (*entity.Geo, error)
}

// RecordWriter persists an assembled record.
type RecordWriter interface {
	Upsert(ctx context.Context, rec *entity.SourceRecord) (entity.WriteStatus, error)
}

// Crawler defines the per-source crawl pipeline.
type Crawler interface {
	// CrawlSource runs the freshness gate, then fetches, correlates, enriches
	// and upserts one source.
	CrawlSource(ctx context.Context, sourceURL string) (*entity.CrawlReport, error)
	CrawlSourceWith(ctx context.Context, sourceURL string, opts CrawlOptions) (*entity.CrawlReport, error)
}

// CrawlOptions adjusts a single crawl.
type CrawlOptions struct {
	// RunID tags logs and the report. A new one is generated when empty.
	RunID string
	// Force skips the freshness gate.
	Force bool
}

// CrawlSettings are the tunables of the crawl pipeline.
type CrawlSettings struct {
	HowMany int
	// MaxListings caps how many listings are correlated per source. 0 means no cap.
	MaxListings int
	Staleness   time.Duration
	LeaseTTL    time.Duration
}

// CrawlerDeps are the collaborators of the crawl pipeline. Failures and
// Leases are optional.
type CrawlerDeps struct {
	Listings   ListingSource
	Correlator Correlator
	Geo        GeoEnricher
	Gate       *FreshnessGate
	Assembler  *Assembler
	Store      RecordWriter
	Failures   repository.CrawlFailureRepository
	Leases     repository.LeaseRepository
	Logger     *slog.Logger
	Now        func() time.Time
}

type crawlerUseCase struct {
	deps     CrawlerDeps
	settings CrawlSettings
	logger   *slog.Logger
	now      func() time.Time
}

// NewCrawlerUseCase creates a new instance of the crawler use case.
func NewCrawlerUseCase(deps CrawlerDeps, settings CrawlSettings) Crawler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &crawlerUseCase{
		deps:     deps,
		settings: settings,
		logger:   logger.OrDefault(deps.Logger),
		now:      now,
	}
}

func (uc *crawlerUseCase) CrawlSource(ctx context.Context, sourceURL string) (*entity.CrawlReport, error) {
	return uc.CrawlSourceWith(ctx, sourceURL, CrawlOptions{})
}

func (uc *crawlerUseCase) CrawlSourceWith(ctx context.Context, sourceURL string, opts CrawlOptions) (*entity.CrawlReport, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := uc.logger.With("run_id", runID, "source", sourceURL)
	report := entity.NewCrawlReport(runID, sourceURL, uc.now())
	defer func() { report.FinishedAt = uc.now() }()

	if uc.deps.Leases != nil {
		ok, err := uc.deps.Leases.Acquire(ctx, sourceURL, runID, uc.settings.LeaseTTL)
		switch {
		case err != nil:
			log.Warn("Lease check failed, crawling without a lease", "error", err)
		case !ok:
			report.Skipped = entity.SkipLeased
			metrics.SourceCrawlsTotal.WithLabelValues(string(entity.SkipLeased)).Inc()
			log.Info("Source is being crawled elsewhere, skipping")
			return report, nil
		default:
			defer func() {
				if err := uc.deps.Leases.Release(context.WithoutCancel(ctx), sourceURL, runID); err != nil {
					log.Warn("Failed to release lease", "error", err)
				}
			}()
		}
	}

	if !opts.Force {
		stale, err := uc.deps.Gate.ShouldCrawl(ctx, sourceURL, uc.settings.Staleness)
		if err != nil {
			return report, uc.fail(ctx, log, sourceURL, err)
		}
		if !stale {
			report.Skipped = entity.SkipFresh
			metrics.SourceCrawlsTotal.WithLabelValues(string(entity.SkipFresh)).Inc()
			log.Info("Source crawled recently, skipping", "staleness", uc.settings.Staleness.String())
			return report, nil
		}
	}

	startTime := uc.now()
	seq, err := uc.deps.Listings.Fetch(ctx, sourceURL)
	if err != nil {
		return report, uc.fail(ctx, log, sourceURL, err)
	}
	report.Fetched = seq.Len()
	log.Info("Fetched listings", "candidates", seq.Len(), "city_state", seq.CityState)

	accepted, err := uc.evaluate(ctx, log, seq, report)
	if err != nil {
		return report, uc.fail(ctx, log, sourceURL, err)
	}

	rec := uc.deps.Assembler.Assemble(sourceURL, accepted, uc.settings.HowMany)
	rec.CityState = seq.CityState
	status, err := uc.deps.Store.Upsert(ctx, &rec)
	if err != nil {
		return report, uc.fail(ctx, log, sourceURL, err)
	}
	report.Write = status

	if uc.deps.Failures != nil {
		if err := uc.deps.Failures.Delete(ctx, sourceURL); err != nil {
			log.Warn("Failed to clear crawl failure after successful crawl", "error", err)
		}
	}

	metrics.SourceCrawlsTotal.WithLabelValues("crawled").Inc()
	metrics.CrawlDuration.WithLabelValues(utils.Host(sourceURL)).Observe(uc.now().Sub(startTime).Seconds())
	log.Info("Source crawled",
		"evaluated", report.Evaluated,
		"accepted", report.Accepted,
		"transient", report.Transient,
		"geo_absent", report.GeoAbsent,
		"write", status.String(),
	)
	return report, nil
}

// evaluate correlates listings in ordinal order until howmany are accepted,
// the listing cap is hit or the sequence ends. Only accepted listings are
// enriched. A cancelled context aborts with no result.
func (uc *crawlerUseCase) evaluate(ctx context.Context, log *slog.Logger, seq *crawler.ListingSeq, report *entity.CrawlReport) ([]entity.AcceptedItem, error) {
	howmany := max(uc.settings.HowMany, 0)
	accepted := make([]entity.AcceptedItem, 0, howmany)
	if howmany == 0 {
		return accepted, nil
	}

	for listing := range seq.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if uc.settings.MaxListings > 0 && report.Evaluated >= uc.settings.MaxListings {
			log.Info("Listing cap reached", "max_listings", uc.settings.MaxListings)
			break
		}
		report.Evaluated++

		result, err := uc.deps.Correlator.Correlate(ctx, listing)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.Transient++
			metrics.CorrelationsTotal.WithLabelValues("transient").Inc()
			log.Warn("Marketplace lookup failed, skipping listing",
				"ordinal", listing.Ordinal, "title", listing.Title, "error", err, "marketplace_transient", true)
			continue
		}

		metrics.CorrelationsTotal.WithLabelValues(result.Kind.String()).Inc()
		switch result.Kind {
		case entity.Priced:
		case entity.NoMatch, entity.NoPrice, entity.MalformedLink:
			report.Rejected[result.Kind]++
			log.Info("Listing skipped", "ordinal", listing.Ordinal, "title", listing.Title, "outcome", result.Kind.String())
			continue
		default:
			return nil, fmt.Errorf("unknown correlation outcome %d", result.Kind)
		}

		item := entity.AcceptedItem{
			Ordinal: len(accepted) + 1,
			Listing: listing,
			Price:   result.Price,
			Link:    result.Link,
			Geo:     uc.enrich(ctx, log, listing, report),
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		accepted = append(accepted, item)
		report.Accepted = len(accepted)

		if len(accepted) >= howmany {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return accepted, nil
}

// enrich never fails the listing: errors and missing map links both leave Geo nil.
func (uc *crawlerUseCase) enrich(ctx context.Context, log *slog.Logger, listing entity.Listing, report *entity.CrawlReport) *entity.Geo {
	if uc.deps.Geo == nil {
		return nil
	}
	geo, err := uc.deps.Geo.Enrich(ctx, listing)
	switch {
	case err != nil:
		report.GeoAbsent++
		metrics.GeoEnrichmentsTotal.WithLabelValues("error").Inc()
		if ctx.Err() == nil {
			log.Warn("Geo enrichment failed, keeping listing without location", "ordinal", listing.Ordinal, "url", listing.DetailURL, "error", err)
		}
		return nil
	case geo == nil:
		report.GeoAbsent++
		metrics.GeoEnrichmentsTotal.WithLabelValues("absent").Inc()
		log.Info("No location for listing", "ordinal", listing.Ordinal, "url", listing.DetailURL)
		return nil
	default:
		metrics.GeoEnrichmentsTotal.WithLabelValues("found").Inc()
		return geo
	}
}

// fail records the failure and returns err wrapped with the source.
func (uc *crawlerUseCase) fail(ctx context.Context, log *slog.Logger, sourceURL string, err error) error {
	kind := entity.FailureKind(err)
	metrics.SourceCrawlsTotal.WithLabelValues(kind).Inc()

	switch kind {
	case "cancelled":
		log.Info("Crawl cancelled, nothing written", "error", err)
	case "store_unavailable":
		log.Error("Store unavailable, aborting source", "error", err)
	default:
		log.Error("Crawl failed", "kind", kind, "error", err)
		uc.recordFailure(ctx, log, sourceURL, kind, err)
	}
	return fmt.Errorf("crawl %s: %w", sourceURL, err)
}

func (uc *crawlerUseCase) recordFailure(ctx context.Context, log *slog.Logger, sourceURL, kind string, crawlErr error) {
	if uc.deps.Failures == nil {
		return
	}
	var status int
	var fe *entity.FetchError
	if errors.As(crawlErr, &fe) {
		status = fe.Status
	}
	failure := &entity.CrawlFailure{
		SourceURL:            sourceURL,
		Kind:                 kind,
		Reason:               crawlErr.Error(),
		HTTPStatusCode:       status,
		LastAttemptTimestamp: uc.now(),
	}
	if err := uc.deps.Failures.SaveOrUpdate(ctx, failure); err != nil {
		log.Warn("Failed to record crawl failure", "error", err)
	}
}
