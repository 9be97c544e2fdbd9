package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/shouldipickitup/internal/entity"
	"github.com/user/shouldipickitup/internal/repository"
	"github.com/user/shouldipickitup/pkg/logger"
	"github.com/user/shouldipickitup/pkg/utils"
)

var (
	ErrSourceRecentlyCrawled = errors.New("source has been crawled recently and force is false")
	ErrCrawlInProgress       = errors.New("a crawl of this source is already running")
	ErrInvalidSourceURL      = errors.New("source URL must be an absolute http(s) URL")
)

// RecordFinder looks up stored records.
type RecordFinder interface {
	FindByURL(ctx context.Context, sourceURL string) (*entity.SourceRecord, error)
}

// SourceManager defines on-demand crawls and status lookups for single sources.
type SourceManager interface {
	// Submit starts a background crawl and returns its run ID.
	Submit(ctx context.Context, sourceURL string, force bool) (string, error)
	GetStatus(ctx context.Context, sourceURL string) (*entity.SourceStatus, error)
	// Wait blocks until all submitted crawls have finished.
	Wait()
}

type sourceManagerUseCase struct {
	baseCtx   context.Context
	crawler   Crawler
	gate      *FreshnessGate
	records   RecordFinder
	failures  repository.CrawlFailureRepository
	staleness time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	running map[string]string // source URL -> run ID
	wg      sync.WaitGroup
}

// NewSourceManager creates a new SourceManager. Background crawls run under
// baseCtx, so cancelling it stops them. failures may be nil.
func NewSourceManager(
	baseCtx context.Context,
	crawler Crawler,
	gate *FreshnessGate,
	records RecordFinder,
	failures repository.CrawlFailureRepository,
	staleness time.Duration,
	l *slog.Logger,
) SourceManager {
	return &sourceManagerUseCase{
		baseCtx:   baseCtx,
		crawler:   crawler,
		gate:      gate,
		records:   records,
		failures:  failures,
		staleness: staleness,
		logger:    logger.OrDefault(l),
		running:   make(map[string]string),
	}
}

func (uc *sourceManagerUseCase) Submit(ctx context.Context, sourceURL string, force bool) (string, error) {
	if _, ok := utils.StripQuery(sourceURL); !ok {
		return "", ErrInvalidSourceURL
	}

	uc.mu.Lock()
	if runID, ok := uc.running[sourceURL]; ok {
		uc.mu.Unlock()
		return runID, ErrCrawlInProgress
	}
	uc.mu.Unlock()

	if !force {
		stale, err := uc.gate.ShouldCrawl(ctx, sourceURL, uc.staleness)
		if err != nil {
			return "", err
		}
		if !stale {
			return "", ErrSourceRecentlyCrawled
		}
	}

	runID := uuid.NewString()
	uc.mu.Lock()
	if existing, ok := uc.running[sourceURL]; ok {
		uc.mu.Unlock()
		return existing, ErrCrawlInProgress
	}
	uc.running[sourceURL] = runID
	uc.wg.Add(1)
	uc.mu.Unlock()

	go func() {
		defer uc.wg.Done()
		defer func() {
			uc.mu.Lock()
			delete(uc.running, sourceURL)
			uc.mu.Unlock()
		}()
		// The gate already ran above (or was skipped on purpose).
		if _, err := uc.crawler.CrawlSourceWith(uc.baseCtx, sourceURL, CrawlOptions{RunID: runID, Force: true}); err != nil {
			uc.logger.Warn("Submitted crawl failed", "run_id", runID, "source", sourceURL, "error", err)
		}
	}()

	return runID, nil
}

func (uc *sourceManagerUseCase) GetStatus(ctx context.Context, sourceURL string) (*entity.SourceStatus, error) {
	status := &entity.SourceStatus{SourceURL: sourceURL, State: entity.StateUnknown}

	uc.mu.Lock()
	runID, running := uc.running[sourceURL]
	uc.mu.Unlock()
	if running {
		status.State = entity.StateRunning
		status.RunID = runID
	}

	rec, err := uc.records.FindByURL(ctx, sourceURL)
	switch {
	case err == nil:
		if !rec.LastCrawled.IsZero() {
			last := rec.LastCrawled
			status.LastCrawled = &last
			status.Items = len(rec.Items)
			if !running {
				status.State = entity.StateCrawled
			}
		}
	case !errors.Is(err, entity.ErrNotFound):
		return nil, err
	}

	if uc.failures != nil {
		f, err := uc.failures.FindByURL(ctx, sourceURL)
		switch {
		case err == nil:
			status.Failure = f
			// A failure newer than the last good crawl wins.
			if !running && (status.LastCrawled == nil || f.LastAttemptTimestamp.After(*status.LastCrawled)) {
				status.State = entity.StateFailed
			}
		case !errors.Is(err, entity.ErrNotFound):
			uc.logger.Warn("Failed to look up crawl failure", "source", sourceURL, "error", err)
		}
	}

	return status, nil
}

func (uc *sourceManagerUseCase) Wait() {
	uc.wg.Wait()
}
