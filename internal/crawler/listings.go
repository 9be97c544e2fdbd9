package crawler

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/shouldipickitup/internal/entity"
	"github.com/user/shouldipickitup/internal/repository"
	"github.com/user/shouldipickitup/pkg/logger"
	"github.com/user/shouldipickitup/pkg/utils"
)

// Listing anchors on the legacy results page and on the static fallback markup.
const listingSelector = "a.result-title.hdrlnk, li.cl-static-search-result > a"

// ListingSeq is a lazy, single-pass sequence of listings in page order.
// Ordinals are assigned while iterating, starting at 1.
type ListingSeq struct {
	// SourcePage is the listing URL the sequence was read from.
	SourcePage string
	// CityState is "city,ST" from the page's geo meta tags, if present.
	CityState string

	candidates int
	produce    iter.Seq[entity.Listing]
	consumed   atomic.Bool
}

// NewListingSeq wraps produce. candidates is an upper bound for Len.
func NewListingSeq(sourcePage string, candidates int, produce iter.Seq[entity.Listing]) *ListingSeq {
	return &ListingSeq{SourcePage: sourcePage, candidates: candidates, produce: produce}
}

// SliceSeq returns a ListingSeq over a fixed set of listings.
func SliceSeq(sourcePage string, listings ...entity.Listing) *ListingSeq {
	return NewListingSeq(sourcePage, len(listings), func(yield func(entity.Listing) bool) {
		for _, l := range listings {
			if !yield(l) {
				return
			}
		}
	})
}

// Len is the number of candidate listings on the page. Iteration can yield
// fewer once duplicates are dropped.
func (s *ListingSeq) Len() int { return s.candidates }

// All yields each listing once. The sequence is not restartable: every call
// after the first yields nothing.
func (s *ListingSeq) All() iter.Seq[entity.Listing] {
	return func(yield func(entity.Listing) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			return
		}
		ordinal := 0
		for l := range s.produce {
			ordinal++
			l.Ordinal = ordinal
			if !yield(l) {
				return
			}
		}
	}
}

// ListingFetcher retrieves and parses a source's free-items page.
type ListingFetcher struct {
	fetcher repository.Fetcher
	limiter *HostLimiter
	timeout time.Duration
	logger  *slog.Logger
}

func NewListingFetcher(fetcher repository.Fetcher, limiter *HostLimiter, timeout time.Duration, l *slog.Logger) *ListingFetcher {
	return &ListingFetcher{
		fetcher: fetcher,
		limiter: limiter,
		timeout: timeout,
		logger:  logger.OrDefault(l),
	}
}

// Fetch downloads the free-items page for endpoint. Transport failures and
// non-2xx responses are *entity.FetchError; a page with no listings is
// entity.ErrEmptyResult.
func (f *ListingFetcher) Fetch(ctx context.Context, endpoint string) (*ListingSeq, error) {
	pageURL := FreeItemsURL(endpoint)

	page, err := throttledGet(ctx, f.limiter, f.fetcher, pageURL, f.timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &entity.FetchError{URL: pageURL, Err: err}
	}
	if !isSuccess(page.StatusCode) {
		return nil, &entity.FetchError{URL: pageURL, Status: page.StatusCode}
	}

	doc, err := parseDocument(page)
	if err != nil {
		return nil, &entity.FetchError{URL: pageURL, Status: page.StatusCode, Err: err}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &entity.FetchError{URL: pageURL, Err: err}
	}

	seq := ParseListings(doc, base)
	if seq.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", pageURL, entity.ErrEmptyResult)
	}
	f.logger.Debug("Fetched listing page", "url", pageURL, "candidates", seq.Len(), "city_state", seq.CityState)
	return seq, nil
}

// ParseListings reads listing anchors from doc. Anchors without a title or href
// are ignored up front; URLs are resolved against base and duplicates dropped
// lazily during iteration.
func ParseListings(doc *goquery.Document, base *url.URL) *ListingSeq {
	nodes := doc.Find(listingSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		return ok && strings.TrimSpace(href) != "" && listingTitle(s) != ""
	})

	seq := NewListingSeq(base.String(), nodes.Length(), func(yield func(entity.Listing) bool) {
		seen := make(map[string]struct{}, nodes.Length())
		for i := range nodes.Length() {
			node := nodes.Eq(i)
			href, _ := node.Attr("href")
			abs, err := utils.ToAbsoluteURL(base, href)
			if err != nil {
				continue
			}
			if _, dup := seen[abs]; dup {
				continue
			}
			seen[abs] = struct{}{}
			if !yield(entity.Listing{Title: listingTitle(node), DetailURL: abs}) {
				return
			}
		}
	})
	seq.CityState = cityState(doc)
	return seq
}

func listingTitle(s *goquery.Selection) string {
	text := s.Find(".title").First().Text()
	if strings.TrimSpace(text) == "" {
		text = s.Text()
	}
	return strings.Join(strings.Fields(text), " ")
}

// cityState builds "city,ST" from geo.placename and geo.region (e.g. "US-FL").
// The city is lowercased with spaces removed.
func cityState(doc *goquery.Document) string {
	city, _ := doc.Find(`meta[name="geo.placename"]`).Attr("content")
	region, _ := doc.Find(`meta[name="geo.region"]`).Attr("content")
	city = strings.ToLower(strings.Join(strings.Fields(city), ""))
	if city == "" {
		return ""
	}
	state := strings.TrimSpace(region)
	if i := strings.LastIndex(state, "-"); i >= 0 {
		state = state[i+1:]
	}
	if state == "" {
		return city
	}
	return city + "," + state
}
