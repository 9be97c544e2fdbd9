package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/user/shouldipickitup/internal/entity"
)

// LastCrawledReader is the single lookup the freshness gate needs.
type LastCrawledReader interface {
	LastCrawled(ctx context.Context, sourceURL string) (time.Time, error)
}

// FreshnessGate decides whether a source is stale enough to crawl again.
type FreshnessGate struct {
	reader LastCrawledReader
	now    func() time.Time
}

func NewFreshnessGate(reader LastCrawledReader, now func() time.Time) *FreshnessGate {
	if now == nil {
		now = time.Now
	}
	return &FreshnessGate{reader: reader, now: now}
}

// ShouldCrawl reports true when the source has never been crawled or its last
// crawl is strictly older than threshold. Any lookup failure other than "not
// found" is a *entity.StoreUnavailableError: the gate fails closed.
func (g *FreshnessGate) ShouldCrawl(ctx context.Context, sourceURL string, threshold time.Duration) (bool, error) {
	last, err := g.reader.LastCrawled(ctx, sourceURL)
	switch {
	case err == nil:
		return g.now().Sub(last) > threshold, nil
	case errors.Is(err, entity.ErrNotFound):
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case entity.IsStoreUnavailable(err):
		return false, err
	default:
		return false, &entity.StoreUnavailableError{Op: "last crawled", Err: err}
	}
}
