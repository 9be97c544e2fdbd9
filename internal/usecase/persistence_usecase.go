package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/shouldipickitup/internal/entity"
	"github.com/user/shouldipickitup/internal/repository"
	"github.com/user/shouldipickitup/pkg/logger"
	"github.com/user/shouldipickitup/pkg/metrics"
)

// ErrNoPrimaryStore is returned by lookups that only the primary store can answer.
var ErrNoPrimaryStore = errors.New("primary store is not configured")

// Gateway is the single entry point for record persistence. Writes go to the
// primary store, falling back to the local snapshot when the primary is
// unreachable. With no primary store every write goes to the snapshot.
type Gateway struct {
	primary  repository.SourceRecordRepository
	snapshot repository.SnapshotRepository
	logger   *slog.Logger
}

// NewGateway wires the stores. primary may be nil for snapshot-only output;
// snapshot may be nil to disable the fallback.
func NewGateway(primary repository.SourceRecordRepository, snapshot repository.SnapshotRepository, l *slog.Logger) *Gateway {
	return &Gateway{
		primary:  primary,
		snapshot: snapshot,
		logger:   logger.OrDefault(l),
	}
}

// Upsert replaces the stored record for rec.SourceURL. WriteDegraded is a
// success: the record is durable locally but not in the primary store.
func (g *Gateway) Upsert(ctx context.Context, rec *entity.SourceRecord) (entity.WriteStatus, error) {
	if g.primary == nil {
		if err := g.saveSnapshot(ctx, rec); err != nil {
			metrics.StoreWritesTotal.WithLabelValues("failed").Inc()
			return 0, err
		}
		metrics.StoreWritesTotal.WithLabelValues(entity.WriteSnapshot.String()).Inc()
		return entity.WriteSnapshot, nil
	}

	err := g.primary.Upsert(ctx, rec)
	if err == nil {
		metrics.StoreWritesTotal.WithLabelValues(entity.WriteStored.String()).Inc()
		return entity.WriteStored, nil
	}
	if !entity.IsStoreUnavailable(err) || g.snapshot == nil {
		metrics.StoreWritesTotal.WithLabelValues("failed").Inc()
		return 0, fmt.Errorf("upsert %s: %w", rec.SourceURL, err)
	}

	g.logger.Warn("Primary store unavailable, writing snapshot", "source", rec.SourceURL, "error", err)
	if serr := g.saveSnapshot(ctx, rec); serr != nil {
		metrics.StoreWritesTotal.WithLabelValues("failed").Inc()
		return 0, errors.Join(err, serr)
	}
	metrics.StoreWritesTotal.WithLabelValues(entity.WriteDegraded.String()).Inc()
	return entity.WriteDegraded, nil
}

func (g *Gateway) saveSnapshot(ctx context.Context, rec *entity.SourceRecord) error {
	if g.snapshot == nil {
		return errors.New("no snapshot store configured")
	}
	if err := g.snapshot.Save(ctx, rec); err != nil {
		return fmt.Errorf("snapshot %s: %w", rec.SourceURL, err)
	}
	return nil
}

// reader is the store reads are served from.
func (g *Gateway) reader() repository.SourceRecordReader {
	if g.primary != nil {
		return g.primary
	}
	return g.snapshot
}

// LastCrawled returns entity.ErrNotFound for a source that was never crawled.
func (g *Gateway) LastCrawled(ctx context.Context, sourceURL string) (time.Time, error) {
	return g.reader().LastCrawled(ctx, sourceURL)
}

// AllSourcesSortedByCrawlDate lists every known source, never-crawled first,
// then ascending by last crawl.
func (g *Gateway) AllSourcesSortedByCrawlDate(ctx context.Context) ([]entity.SourceSummary, error) {
	return g.reader().ListByCrawlDate(ctx)
}

func (g *Gateway) FindByURL(ctx context.Context, sourceURL string) (*entity.SourceRecord, error) {
	return g.reader().FindByURL(ctx, sourceURL)
}

func (g *Gateway) FindByZip(ctx context.Context, zip string) (*entity.SourceRecord, error) {
	if g.primary == nil {
		return nil, ErrNoPrimaryStore
	}
	return g.primary.FindByZip(ctx, zip)
}

// Register adds a never-crawled source to the primary store.
func (g *Gateway) Register(ctx context.Context, sourceURL string, zips []string) error {
	if g.primary == nil {
		return ErrNoPrimaryStore
	}
	return g.primary.Register(ctx, sourceURL, zips)
}

// Ping checks the primary store. Snapshot-only gateways are always healthy.
func (g *Gateway) Ping(ctx context.Context) error {
	if g.primary == nil {
		return nil
	}
	return g.primary.Ping(ctx)
}
