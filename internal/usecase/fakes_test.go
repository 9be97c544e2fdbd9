package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/user/shouldipickitup/internal/crawler"
	"github.com/user/shouldipickitup/internal/entity"
)

// memStore is an in-memory SourceRecordRepository and SnapshotRepository.
type memStore struct {
	mu      sync.Mutex
	records map[string]entity.SourceRecord
	zips    map[string]string
	err     error
	upserts int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]entity.SourceRecord), zips: make(map[string]string)}
}

func (m *memStore) put(rec entity.SourceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.SourceURL] = rec
}

func (m *memStore) get(sourceURL string) (entity.SourceRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sourceURL]
	return rec, ok
}

func (m *memStore) Upsert(_ context.Context, rec *entity.SourceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.upserts++
	m.records[rec.SourceURL] = *rec
	return nil
}

func (m *memStore) Save(ctx context.Context, rec *entity.SourceRecord) error {
	return m.Upsert(ctx, rec)
}

func (m *memStore) Register(_ context.Context, sourceURL string, zips []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.records[sourceURL]; !ok {
		m.records[sourceURL] = entity.SourceRecord{SourceURL: sourceURL}
	}
	for _, z := range zips {
		m.zips[z] = sourceURL
	}
	return nil
}

func (m *memStore) LastCrawled(_ context.Context, sourceURL string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return time.Time{}, m.err
	}
	rec, ok := m.records[sourceURL]
	if !ok || rec.LastCrawled.IsZero() {
		return time.Time{}, entity.ErrNotFound
	}
	return rec.LastCrawled, nil
}

func (m *memStore) ListByCrawlDate(_ context.Context) ([]entity.SourceSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]entity.SourceSummary, 0, len(m.records))
	for _, rec := range m.records {
		s := entity.SourceSummary{SourceURL: rec.SourceURL}
		if !rec.LastCrawled.IsZero() {
			last := rec.LastCrawled
			s.LastCrawled = &last
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.LastCrawled == nil && b.LastCrawled == nil:
			return a.SourceURL < b.SourceURL
		case a.LastCrawled == nil:
			return true
		case b.LastCrawled == nil:
			return false
		case !a.LastCrawled.Equal(*b.LastCrawled):
			return a.LastCrawled.Before(*b.LastCrawled)
		default:
			return a.SourceURL < b.SourceURL
		}
	})
	return out, nil
}

func (m *memStore) FindByURL(_ context.Context, sourceURL string) (*entity.SourceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[sourceURL]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &rec, nil
}

func (m *memStore) FindByZip(ctx context.Context, zip string) (*entity.SourceRecord, error) {
	m.mu.Lock()
	sourceURL, ok := m.zips[zip]
	m.mu.Unlock()
	if !ok {
		return nil, entity.ErrNotFound
	}
	return m.FindByURL(ctx, sourceURL)
}

func (m *memStore) Ping(context.Context) error { return m.err }

func (m *memStore) Close() error { return nil }

// fakeListings serves a fixed listing set, or an error.
type fakeListings struct {
	listings  []entity.Listing
	cityState string
	err       error
	calls     int
}

func (f *fakeListings) Fetch(_ context.Context, endpoint string) (*crawler.ListingSeq, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	seq := crawler.SliceSeq(endpoint, f.listings...)
	seq.CityState = f.cityState
	return seq, nil
}

type correlation struct {
	result entity.CorrelationResult
	err    error
}

// fakeCorrelator answers by listing title. Unknown titles are NoMatch.
type fakeCorrelator struct {
	mu      sync.Mutex
	answers map[string]correlation
	calls   []string
	// onCall runs before answering, with the 1-based call number.
	onCall func(n int)
}

func (f *fakeCorrelator) Correlate(ctx context.Context, l entity.Listing) (entity.CorrelationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, l.Title)
	n := len(f.calls)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(n)
	}
	if err := ctx.Err(); err != nil {
		return entity.CorrelationResult{}, err
	}
	if a, ok := f.answers[l.Title]; ok {
		return a.result, a.err
	}
	return entity.NoMatchResult(), nil
}

// fakeGeo answers by detail URL. Unknown URLs are absent.
type fakeGeo struct {
	mu    sync.Mutex
	geos  map[string]*entity.Geo
	errs  map[string]error
	calls []string
}

func (f *fakeGeo) Enrich(_ context.Context, l entity.Listing) (*entity.Geo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, l.DetailURL)
	if err := f.errs[l.DetailURL]; err != nil {
		return nil, err
	}
	return f.geos[l.DetailURL], nil
}

type fakeFailures struct {
	mu      sync.Mutex
	saved   map[string]*entity.CrawlFailure
	deleted []string
}

func newFakeFailures() *fakeFailures {
	return &fakeFailures{saved: make(map[string]*entity.CrawlFailure)}
}

func (f *fakeFailures) SaveOrUpdate(_ context.Context, failure *entity.CrawlFailure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.saved[failure.SourceURL]
	cp := *failure
	cp.FailureCount = 1
	if prev != nil {
		cp.FailureCount = prev.FailureCount + 1
	}
	f.saved[failure.SourceURL] = &cp
	return nil
}

func (f *fakeFailures) FindByURL(_ context.Context, sourceURL string) (*entity.CrawlFailure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fl, ok := f.saved[sourceURL]; ok {
		return fl, nil
	}
	return nil, entity.ErrNotFound
}

func (f *fakeFailures) FindRecent(_ context.Context, limit int) ([]*entity.CrawlFailure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.CrawlFailure
	for _, fl := range f.saved {
		out = append(out, fl)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeFailures) Delete(_ context.Context, sourceURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, sourceURL)
	f.deleted = append(f.deleted, sourceURL)
	return nil
}

type fakeLeases struct {
	mu       sync.Mutex
	held     map[string]string
	released []string
}

func newFakeLeases() *fakeLeases {
	return &fakeLeases{held: make(map[string]string)}
}

func (f *fakeLeases) Acquire(_ context.Context, sourceURL, holder string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.held[sourceURL]; ok {
		return false, nil
	}
	f.held[sourceURL] = holder
	return true, nil
}

func (f *fakeLeases) Release(_ context.Context, sourceURL, holder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[sourceURL] == holder {
		delete(f.held, sourceURL)
		f.released = append(f.released, sourceURL)
	}
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
