package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/shouldipickitup/internal/entity"
	"github.com/user/shouldipickitup/pkg/utils"
)

// scriptedCrawler returns canned reports per source and tracks per-host overlap.
type scriptedCrawler struct {
	mu       sync.Mutex
	reports  map[string]*entity.CrawlReport
	errs     map[string]error
	calls    []string
	active   map[string]int
	overlaps int
	delay    time.Duration
}

func newScriptedCrawler() *scriptedCrawler {
	return &scriptedCrawler{
		reports: make(map[string]*entity.CrawlReport),
		errs:    make(map[string]error),
		active:  make(map[string]int),
	}
}

func (c *scriptedCrawler) CrawlSource(ctx context.Context, sourceURL string) (*entity.CrawlReport, error) {
	return c.CrawlSourceWith(ctx, sourceURL, CrawlOptions{})
}

func (c *scriptedCrawler) CrawlSourceWith(_ context.Context, sourceURL string, _ CrawlOptions) (*entity.CrawlReport, error) {
	host := utils.Host(sourceURL)
	c.mu.Lock()
	c.calls = append(c.calls, sourceURL)
	c.active[host]++
	if c.active[host] > 1 {
		c.overlaps++
	}
	c.mu.Unlock()

	time.Sleep(c.delay)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[host]--
	if err := c.errs[sourceURL]; err != nil {
		return entity.NewCrawlReport("r", sourceURL, time.Time{}), err
	}
	if r := c.reports[sourceURL]; r != nil {
		return r, nil
	}
	return entity.NewCrawlReport("r", sourceURL, time.Time{}), nil
}

func TestBatchRunner_Summary(t *testing.T) {
	c := newScriptedCrawler()
	c.reports["https://a.craigslist.org"] = &entity.CrawlReport{Accepted: 3, Write: entity.WriteStored}
	c.reports["https://b.craigslist.org"] = &entity.CrawlReport{Accepted: 2, Write: entity.WriteDegraded}
	c.reports["https://c.craigslist.org"] = &entity.CrawlReport{Skipped: entity.SkipFresh}
	c.reports["https://d.craigslist.org"] = &entity.CrawlReport{Skipped: entity.SkipLeased}
	c.errs["https://e.craigslist.org"] = &entity.FetchError{URL: "https://e.craigslist.org", Status: 500}
	c.errs["https://f.craigslist.org"] = errors.New("crawl: " + entity.ErrEmptyResult.Error())

	store := newMemStore()
	for _, u := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, store.Register(context.Background(), "https://"+u+".craigslist.org", nil))
	}

	summary, err := NewBatchRunner(c, NewGateway(store, nil, nil), nil, 3, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Sources)
	assert.Equal(t, 2, summary.Crawled)
	assert.Equal(t, 5, summary.Accepted)
	assert.Equal(t, 1, summary.Degraded)
	assert.Equal(t, 1, summary.Fresh)
	assert.Equal(t, 1, summary.Leased)
	assert.Equal(t, 1, summary.Failed["fetch"])
	assert.Equal(t, 1, summary.Failed["other"])
	assert.Len(t, c.calls, 6)
}

func TestBatchRunner_OldestFirst(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.put(entity.SourceRecord{SourceURL: "https://new.craigslist.org", LastCrawled: now})
	store.put(entity.SourceRecord{SourceURL: "https://old.craigslist.org", LastCrawled: now.Add(-48 * time.Hour)})
	require.NoError(t, store.Register(context.Background(), "https://never.craigslist.org", nil))

	c := newScriptedCrawler()
	_, err := NewBatchRunner(c, NewGateway(store, nil, nil), nil, 1, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://never.craigslist.org",
		"https://old.craigslist.org",
		"https://new.craigslist.org",
	}, c.calls)
}

func TestBatchRunner_SameHostIsSerial(t *testing.T) {
	c := newScriptedCrawler()
	c.delay = 5 * time.Millisecond
	sources := []string{
		"https://newyork.craigslist.org/brk",
		"https://newyork.craigslist.org/mnh",
		"https://newyork.craigslist.org/que",
		"https://gainesville.craigslist.org",
		"https://tampa.craigslist.org",
	}

	summary, err := NewBatchRunner(c, nil, nil, 4, nil).RunSources(context.Background(), sources)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Crawled)
	assert.Zero(t, c.overlaps)
}

func TestBatchRunner_ListFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")

	_, err := NewBatchRunner(newScriptedCrawler(), NewGateway(store, nil, nil), nil, 2, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestBatchRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newScriptedCrawler()

	_, err := NewBatchRunner(c, nil, nil, 2, nil).RunSources(ctx, []string{"https://a.craigslist.org", "https://b.craigslist.org"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.calls)
}

type memHistory struct {
	summaries []entity.BatchSummary
}

func (h *memHistory) Push(_ context.Context, s *entity.BatchSummary) error {
	h.summaries = append([]entity.BatchSummary{*s}, h.summaries...)
	return nil
}

func (h *memHistory) Recent(_ context.Context, limit int) ([]entity.BatchSummary, error) {
	return h.summaries[:min(limit, len(h.summaries))], nil
}

func TestBatchRunner_RecordsHistory(t *testing.T) {
	history := &memHistory{}
	r := NewBatchRunner(newScriptedCrawler(), nil, history, 2, nil)

	_, err := r.RunSources(context.Background(), []string{"https://a.craigslist.org"})
	require.NoError(t, err)
	_, err = r.RunSources(context.Background(), []string{"https://a.craigslist.org", "https://b.craigslist.org"})
	require.NoError(t, err)

	recent, err := history.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 2, recent[0].Sources)
	assert.Equal(t, 2, recent[0].Crawled)
	assert.False(t, recent[0].FinishedAt.Before(recent[0].StartedAt))
}

func TestGroupByHost(t *testing.T) {
	groups := groupByHost([]string{
		"https://newyork.craigslist.org/brk",
		"https://gainesville.craigslist.org",
		"https://newyork.craigslist.org/mnh",
	})
	assert.Equal(t, [][]string{
		{"https://newyork.craigslist.org/brk", "https://newyork.craigslist.org/mnh"},
		{"https://gainesville.craigslist.org"},
	}, groups)
}
