package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	badgerstore "github.com/user/shouldipickitup/internal/adapter/badger"
	"github.com/user/shouldipickitup/internal/adapter/chromedp_crawler"
	"github.com/user/shouldipickitup/internal/adapter/httpfetch"
	"github.com/user/shouldipickitup/internal/adapter/postgres"
	redis_adapter "github.com/user/shouldipickitup/internal/adapter/redis"
	"github.com/user/shouldipickitup/internal/crawler"
	"github.com/user/shouldipickitup/internal/repository"
	"github.com/user/shouldipickitup/internal/usecase"
	"github.com/user/shouldipickitup/pkg/config"
	"github.com/user/shouldipickitup/pkg/logger"
)

// batchHistorySize is how many batch summaries are kept in Redis.
const batchHistorySize = 50

// Pinger is a dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App holds the wired pipeline and the connections behind it.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Gateway  *usecase.Gateway
	Gate     *usecase.FreshnessGate
	Crawler  usecase.Crawler
	Batch    *usecase.BatchRunner
	Failures repository.CrawlFailureRepository
	History  repository.BatchHistoryRepository
	// Checks are the dependencies reported by the health endpoint.
	Checks map[string]Pinger

	closers []func() error
}

// New connects the stores selected by cfg and wires the crawl pipeline.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, l *slog.Logger) (a *App, err error) {
	l = logger.OrDefault(l)
	a = &App{Config: cfg, Logger: l, Checks: make(map[string]Pinger)}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	snapshot, err := badgerstore.Open(cfg.SnapshotPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, snapshot.Close)
	l.Info("Snapshot store opened", "path", cfg.SnapshotPath)

	var primary repository.SourceRecordRepository
	if cfg.OutputMode == config.OutputStore {
		pool, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closePool(pool))
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		records := postgres.NewSourceRecordRepo(pool)
		primary = records
		a.Failures = postgres.NewCrawlFailureRepo(pool)
		a.Checks["postgres"] = records
		l.Info("PostgreSQL connection pool established")
	} else {
		l.Info("Snapshot output selected, primary store disabled")
	}

	var leases repository.LeaseRepository
	if cfg.RedisAddr != "" {
		client, err := redis_adapter.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeClient(client))
		leaseRepo := redis_adapter.NewLeaseRepo(client)
		leases = leaseRepo
		a.History = redis_adapter.NewBatchHistoryRepo(client, batchHistorySize)
		a.Checks["redis"] = leaseRepo
		l.Info("Redis connection established")
	}

	fetcher, err := a.newFetcher(cfg, l)
	if err != nil {
		return nil, err
	}

	limiter := crawler.NewHostLimiter(cfg.MinDelay(), cfg.MaxDelay())
	timeout := cfg.RequestTimeout()

	a.Gateway = usecase.NewGateway(primary, snapshot, l)
	a.Gate = usecase.NewFreshnessGate(a.Gateway, nil)
	a.Crawler = usecase.NewCrawlerUseCase(usecase.CrawlerDeps{
		Listings:   crawler.NewListingFetcher(fetcher, limiter, timeout, l),
		Correlator: crawler.NewCorrelator(fetcher, limiter, cfg.MarketplaceSearchURL, timeout, l),
		Geo:        crawler.NewGeoEnricher(fetcher, limiter, crawler.Point{Lat: cfg.OriginLat, Lng: cfg.OriginLng}, timeout, l),
		Gate:       a.Gate,
		Assembler:  usecase.NewAssembler(nil),
		Store:      a.Gateway,
		Failures:   a.Failures,
		Leases:     leases,
		Logger:     l,
	}, usecase.CrawlSettings{
		HowMany:     cfg.HowMany,
		MaxListings: cfg.MaxListings,
		Staleness:   cfg.Staleness(),
		LeaseTTL:    cfg.LeaseTTL(),
	})
	a.Batch = usecase.NewBatchRunner(a.Crawler, a.Gateway, a.History, cfg.BatchParallelism, l)

	return a, nil
}

func (a *App) newFetcher(cfg *config.Config, l *slog.Logger) (repository.Fetcher, error) {
	switch cfg.FetchMode {
	case config.FetchHTTP:
		return httpfetch.New(cfg.FetchRPS), nil
	case config.FetchBrowser:
		f := chromedp_crawler.NewChromedpFetcher(cfg.RequestTimeout(), l)
		a.closers = append(a.closers, func() error { f.Close(); return nil })
		l.Info("Headless browser fetcher started")
		return f, nil
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", cfg.FetchMode)
	}
}

// NewSourceManager builds the on-demand crawl manager. Crawls it starts run
// under baseCtx.
func (a *App) NewSourceManager(baseCtx context.Context) usecase.SourceManager {
	return usecase.NewSourceManager(baseCtx, a.Crawler, a.Gate, a.Gateway, a.Failures, a.Config.Staleness(), a.Logger)
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func closePool(pool *pgxpool.Pool) func() error {
	return func() error {
		pool.Close()
		return nil
	}
}

func closeClient(client *goredis.Client) func() error {
	return client.Close
}
