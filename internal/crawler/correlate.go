package crawler

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/shouldipickitup/internal/entity"
	"github.com/user/shouldipickitup/internal/repository"
	"github.com/user/shouldipickitup/pkg/logger"
	"github.com/user/shouldipickitup/pkg/utils"
)

const (
	resultTitleSelector = ".s-item__title"
	resultPriceSelector = "span.s-item__price"
	resultLinkSelector  = "a.s-item__link"
)

var plainAmount = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Correlator looks a listing title up on the secondary marketplace and
// classifies the first search result.
type Correlator struct {
	fetcher    repository.Fetcher
	limiter    *HostLimiter
	searchBase string
	timeout    time.Duration
	logger     *slog.Logger
}

func NewCorrelator(fetcher repository.Fetcher, limiter *HostLimiter, searchBase string, timeout time.Duration, l *slog.Logger) *Correlator {
	return &Correlator{
		fetcher:    fetcher,
		limiter:    limiter,
		searchBase: searchBase,
		timeout:    timeout,
		logger:     logger.OrDefault(l),
	}
}

// Correlate searches for the listing's exact title. A failed search returns a
// *entity.TransientError, never a correlation outcome. Context cancellation is
// returned as is.
func (c *Correlator) Correlate(ctx context.Context, listing entity.Listing) (entity.CorrelationResult, error) {
	searchURL := MarketplaceSearchURL(c.searchBase, listing.Title)

	page, err := throttledGet(ctx, c.limiter, c.fetcher, searchURL, c.timeout)
	if err != nil {
		if ctx.Err() != nil {
			return entity.CorrelationResult{}, ctx.Err()
		}
		return entity.CorrelationResult{}, &entity.TransientError{Query: listing.Title, Err: err}
	}
	if !isSuccess(page.StatusCode) {
		return entity.CorrelationResult{}, &entity.TransientError{Query: listing.Title, Status: page.StatusCode}
	}

	doc, err := parseDocument(page)
	if err != nil {
		return entity.CorrelationResult{}, &entity.TransientError{Query: listing.Title, Status: page.StatusCode, Err: err}
	}

	result := ClassifySearchPage(doc)
	c.logger.Debug("Correlated listing", "title", listing.Title, "outcome", result.Kind.String())
	return result, nil
}

// ClassifySearchPage maps a search results page to a correlation outcome.
// Checks run in order: any result title, a price element, a numeric price,
// then an absolute result link.
func ClassifySearchPage(doc *goquery.Document) entity.CorrelationResult {
	if doc.Find(resultTitleSelector).Length() == 0 {
		return entity.NoMatchResult()
	}

	priceNode := doc.Find(resultPriceSelector).First()
	if priceNode.Length() == 0 {
		return entity.NoPriceResult()
	}
	price, ok := ParseMarketplacePrice(priceNode.Text())
	if !ok {
		return entity.NoPriceResult()
	}

	href, ok := doc.Find(resultLinkSelector).First().Attr("href")
	if !ok {
		return entity.MalformedLinkResult()
	}
	link, ok := utils.StripQuery(href)
	if !ok {
		return entity.MalformedLinkResult()
	}
	return entity.PricedResult(price, link)
}

// ParseMarketplacePrice reads a displayed price such as "$12.99",
// "US $1,299.00" or "$5.00 to $9.00" (the low end is used).
func ParseMarketplacePrice(text string) (entity.Price, bool) {
	s := strings.TrimSpace(text)
	if low, _, found := strings.Cut(s, " to "); found {
		s = low
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '£', '€', '¥', ',':
			return -1
		}
		return r
	}, s)

	fields := strings.Fields(s)
	// Drop a short currency prefix such as "US" or "AU".
	if len(fields) == 2 && len(fields[0]) <= 3 && isLetters(fields[0]) {
		fields = fields[1:]
	}
	if len(fields) != 1 || !plainAmount.MatchString(fields[0]) {
		return 0, false
	}

	f, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return entity.PriceFromFloat(f), true
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
