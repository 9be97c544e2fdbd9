package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/shouldipickitup/internal/entity"
	"github.com/user/shouldipickitup/internal/repository"
	"github.com/user/shouldipickitup/pkg/logger"
	"github.com/user/shouldipickitup/pkg/utils"
)

// SourceLister lists the sources a batch should visit.
type SourceLister interface {
	AllSourcesSortedByCrawlDate(ctx context.Context) ([]entity.SourceSummary, error)
}

// BatchRunner crawls every known source, oldest crawl first. Sources on the
// same host run one after another; different hosts run in parallel up to the
// configured limit. A failing source never stops the batch.
type BatchRunner struct {
	crawler     Crawler
	sources     SourceLister
	history     repository.BatchHistoryRepository
	parallelism int
	logger      *slog.Logger
	now         func() time.Time
}

// NewBatchRunner creates a BatchRunner. history may be nil.
func NewBatchRunner(crawler Crawler, sources SourceLister, history repository.BatchHistoryRepository, parallelism int, l *slog.Logger) *BatchRunner {
	return &BatchRunner{
		crawler:     crawler,
		sources:     sources,
		history:     history,
		parallelism: max(parallelism, 1),
		logger:      logger.OrDefault(l),
		now:         time.Now,
	}
}

// Run crawls all sources and returns the tally. The error is non-nil only when
// the source list cannot be read or ctx ends before the batch finishes.
func (b *BatchRunner) Run(ctx context.Context) (*entity.BatchSummary, error) {
	list, err := b.sources.AllSourcesSortedByCrawlDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	urls := make([]string, 0, len(list))
	for _, s := range list {
		urls = append(urls, s.SourceURL)
	}
	return b.RunSources(ctx, urls)
}

// RunSources crawls the given sources in order, grouped by host.
func (b *BatchRunner) RunSources(ctx context.Context, sourceURLs []string) (*entity.BatchSummary, error) {
	summary := &entity.BatchSummary{Sources: len(sourceURLs), Failed: make(map[string]int), StartedAt: b.now()}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(b.parallelism)
	for _, group := range groupByHost(sourceURLs) {
		g.Go(func() error {
			for _, src := range group {
				if err := ctx.Err(); err != nil {
					return err
				}
				report, err := b.crawler.CrawlSource(ctx, src)
				mu.Lock()
				tally(summary, report, err)
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	summary.FinishedAt = b.now()

	if b.history != nil {
		if herr := b.history.Push(context.WithoutCancel(ctx), summary); herr != nil {
			b.logger.Warn("Failed to record batch summary", "error", herr)
		}
	}

	b.logger.Info("Batch finished",
		"sources", summary.Sources,
		"crawled", summary.Crawled,
		"fresh", summary.Fresh,
		"leased", summary.Leased,
		"degraded", summary.Degraded,
		"accepted", summary.Accepted,
		"failed", summary.Failed,
	)
	return summary, err
}

func tally(summary *entity.BatchSummary, report *entity.CrawlReport, err error) {
	if err != nil {
		summary.Failed[entity.FailureKind(err)]++
		return
	}
	switch report.Skipped {
	case entity.SkipFresh:
		summary.Fresh++
		return
	case entity.SkipLeased:
		summary.Leased++
		return
	}
	summary.Crawled++
	summary.Accepted += report.Accepted
	if report.Write == entity.WriteDegraded {
		summary.Degraded++
	}
}

// groupByHost buckets sources by host, keeping first-seen order both across
// and within groups.
func groupByHost(sourceURLs []string) [][]string {
	index := make(map[string]int)
	var groups [][]string
	for _, u := range sourceURLs {
		host := utils.Host(u)
		i, ok := index[host]
		if !ok {
			i = len(groups)
			index[host] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], u)
	}
	return groups
}
