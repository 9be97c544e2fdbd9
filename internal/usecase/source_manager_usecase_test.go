package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/shouldipickitup/internal/entity"
	"github.com/user/shouldipickitup/internal/repository"
)

// gatedCrawler blocks every crawl until release is closed.
type gatedCrawler struct {
	release chan struct{}
	mu      sync.Mutex
	opts    []CrawlOptions
	store   *memStore
	now     time.Time
}

func (c *gatedCrawler) CrawlSource(ctx context.Context, sourceURL string) (*entity.CrawlReport, error) {
	return c.CrawlSourceWith(ctx, sourceURL, CrawlOptions{})
}

func (c *gatedCrawler) CrawlSourceWith(ctx context.Context, sourceURL string, opts CrawlOptions) (*entity.CrawlReport, error) {
	c.mu.Lock()
	c.opts = append(c.opts, opts)
	c.mu.Unlock()
	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.store.put(entity.SourceRecord{SourceURL: sourceURL, LastCrawled: c.now, Items: accepted("desk")})
	return entity.NewCrawlReport(opts.RunID, sourceURL, c.now), nil
}

const managedSource = "https://gainesville.craigslist.org"

func newManager(t *testing.T, store *memStore, failures *fakeFailures) (SourceManager, *gatedCrawler) {
	t.Helper()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	c := &gatedCrawler{release: make(chan struct{}), store: store, now: now}
	gate := NewFreshnessGate(store, fixedClock(now))
	var fr repository.CrawlFailureRepository
	if failures != nil {
		fr = failures
	}
	m := NewSourceManager(context.Background(), c, gate, store, fr, 72*time.Hour, nil)
	return m, c
}

func TestSourceManager_Submit(t *testing.T) {
	store := newMemStore()
	m, c := newManager(t, store, newFakeFailures())

	runID, err := m.Submit(context.Background(), managedSource, false)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	status, err := m.GetStatus(context.Background(), managedSource)
	require.NoError(t, err)
	assert.Equal(t, entity.StateRunning, status.State)
	assert.Equal(t, runID, status.RunID)

	_, err = m.Submit(context.Background(), managedSource, true)
	assert.ErrorIs(t, err, ErrCrawlInProgress)

	close(c.release)
	m.Wait()

	require.Len(t, c.opts, 1)
	assert.Equal(t, runID, c.opts[0].RunID)
	assert.True(t, c.opts[0].Force)

	status, err = m.GetStatus(context.Background(), managedSource)
	require.NoError(t, err)
	assert.Equal(t, entity.StateCrawled, status.State)
	assert.Equal(t, 1, status.Items)
	require.NotNil(t, status.LastCrawled)
}

func TestSourceManager_SubmitRecentlyCrawled(t *testing.T) {
	store := newMemStore()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	store.put(entity.SourceRecord{SourceURL: managedSource, LastCrawled: now.Add(-time.Hour)})
	m, c := newManager(t, store, nil)
	close(c.release)

	_, err := m.Submit(context.Background(), managedSource, false)
	assert.ErrorIs(t, err, ErrSourceRecentlyCrawled)

	_, err = m.Submit(context.Background(), managedSource, true)
	assert.NoError(t, err)
	m.Wait()
	assert.Len(t, c.opts, 1)
}

func TestSourceManager_SubmitInvalidURL(t *testing.T) {
	m, _ := newManager(t, newMemStore(), nil)

	for _, raw := range []string{"", "gainesville.craigslist.org", "ftp://gainesville.craigslist.org"} {
		_, err := m.Submit(context.Background(), raw, true)
		assert.ErrorIs(t, err, ErrInvalidSourceURL, raw)
	}
}

func TestSourceManager_SubmitStoreUnavailable(t *testing.T) {
	store := newMemStore()
	store.err = &entity.StoreUnavailableError{Op: "last crawled", Err: context.DeadlineExceeded}
	m, _ := newManager(t, store, nil)

	_, err := m.Submit(context.Background(), managedSource, false)
	assert.True(t, entity.IsStoreUnavailable(err))
}

func TestSourceManager_GetStatus(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	t.Run("unknown", func(t *testing.T) {
		m, _ := newManager(t, newMemStore(), newFakeFailures())
		status, err := m.GetStatus(context.Background(), managedSource)
		require.NoError(t, err)
		assert.Equal(t, entity.StateUnknown, status.State)
		assert.Nil(t, status.LastCrawled)
	})

	t.Run("failure newer than last crawl", func(t *testing.T) {
		store := newMemStore()
		store.put(entity.SourceRecord{SourceURL: managedSource, LastCrawled: now.Add(-48 * time.Hour)})
		failures := newFakeFailures()
		require.NoError(t, failures.SaveOrUpdate(context.Background(), &entity.CrawlFailure{
			SourceURL: managedSource, Kind: "fetch", HTTPStatusCode: 403, LastAttemptTimestamp: now,
		}))
		m, _ := newManager(t, store, failures)

		status, err := m.GetStatus(context.Background(), managedSource)
		require.NoError(t, err)
		assert.Equal(t, entity.StateFailed, status.State)
		require.NotNil(t, status.Failure)
		assert.Equal(t, 403, status.Failure.HTTPStatusCode)
	})

	t.Run("failure older than last crawl", func(t *testing.T) {
		store := newMemStore()
		store.put(entity.SourceRecord{SourceURL: managedSource, LastCrawled: now})
		failures := newFakeFailures()
		require.NoError(t, failures.SaveOrUpdate(context.Background(), &entity.CrawlFailure{
			SourceURL: managedSource, Kind: "fetch", LastAttemptTimestamp: now.Add(-time.Hour),
		}))
		m, _ := newManager(t, store, failures)

		status, err := m.GetStatus(context.Background(), managedSource)
		require.NoError(t, err)
		assert.Equal(t, entity.StateCrawled, status.State)
	})

	t.Run("registered but never crawled", func(t *testing.T) {
		store := newMemStore()
		require.NoError(t, store.Register(context.Background(), managedSource, []string{"32601"}))
		m, _ := newManager(t, store, nil)

		status, err := m.GetStatus(context.Background(), managedSource)
		require.NoError(t, err)
		assert.Equal(t, entity.StateUnknown, status.State)
	})

	t.Run("store error", func(t *testing.T) {
		store := newMemStore()
		store.err = &entity.StoreUnavailableError{Op: "find", Err: context.DeadlineExceeded}
		m, _ := newManager(t, store, nil)

		_, err := m.GetStatus(context.Background(), managedSource)
		assert.Error(t, err)
	})
}
