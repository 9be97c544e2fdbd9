package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"
	"github.com/user/shouldipickitup/internal/entity"
)

// snapshotEntry is the stored form of a record, keyed by source URL.
type snapshotEntry struct {
	SourceURL   string `badgerhold:"key"`
	CityState   string
	LastCrawled time.Time
	Document    entity.RecordDocument
}

// SnapshotRepoImpl keeps the latest record per source in a local badger database.
type SnapshotRepoImpl struct {
	store *badgerhold.Store
}

// Open opens or creates the snapshot database in dir.
func Open(dir string) (*SnapshotRepoImpl, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	return &SnapshotRepoImpl{store: store}, nil
}

// Save replaces the snapshot entry for rec.SourceURL.
func (s *SnapshotRepoImpl) Save(ctx context.Context, rec *entity.SourceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry := snapshotEntry{
		SourceURL:   rec.SourceURL,
		CityState:   rec.CityState,
		LastCrawled: rec.LastCrawled,
		Document:    rec.Document(),
	}
	if err := s.store.Upsert(rec.SourceURL, &entry); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotRepoImpl) LastCrawled(ctx context.Context, sourceURL string) (time.Time, error) {
	entry, err := s.get(ctx, sourceURL)
	if err != nil {
		return time.Time{}, err
	}
	return entry.LastCrawled, nil
}

func (s *SnapshotRepoImpl) FindByURL(ctx context.Context, sourceURL string) (*entity.SourceRecord, error) {
	entry, err := s.get(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	rec, err := entity.RecordFromDocument(entry.SourceURL, entry.Document)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot for %s: %w", sourceURL, err)
	}
	rec.CityState = entry.CityState
	return &rec, nil
}

// ListByCrawlDate returns every snapshotted source, oldest crawl first.
func (s *SnapshotRepoImpl) ListByCrawlDate(ctx context.Context) ([]entity.SourceSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []snapshotEntry
	if err := s.store.Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.LastCrawled.Equal(b.LastCrawled) {
			return a.LastCrawled.Before(b.LastCrawled)
		}
		return a.SourceURL < b.SourceURL
	})

	out := make([]entity.SourceSummary, 0, len(entries))
	for _, e := range entries {
		sum := entity.SourceSummary{SourceURL: e.SourceURL}
		if !e.LastCrawled.IsZero() {
			last := e.LastCrawled
			sum.LastCrawled = &last
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *SnapshotRepoImpl) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *SnapshotRepoImpl) get(ctx context.Context, sourceURL string) (*snapshotEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entry snapshotEntry
	if err := s.store.Get(sourceURL, &entry); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &entry, nil
}
