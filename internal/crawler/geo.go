package crawler

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/shouldipickitup/internal/entity"
	"github.com/user/shouldipickitup/internal/repository"
	"github.com/user/shouldipickitup/pkg/logger"
)

const (
	earthRadiusMiles = 3958.7613
	mapLinkSelector  = `a[href*="google.com/maps/preview"]`
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// GeoEnricher reads a listing's map link from its detail page and computes the
// distance from a fixed origin.
type GeoEnricher struct {
	fetcher repository.Fetcher
	limiter *HostLimiter
	origin  Point
	timeout time.Duration
	logger  *slog.Logger
}

func NewGeoEnricher(fetcher repository.Fetcher, limiter *HostLimiter, origin Point, timeout time.Duration, l *slog.Logger) *GeoEnricher {
	return &GeoEnricher{
		fetcher: fetcher,
		limiter: limiter,
		origin:  origin,
		timeout: timeout,
		logger:  logger.OrDefault(l),
	}
}

// Enrich returns nil, nil when the detail page has no usable map link, which
// usually means the listing was removed. Fetch failures are returned as errors;
// callers may still keep the listing without geo fields.
func (g *GeoEnricher) Enrich(ctx context.Context, listing entity.Listing) (*entity.Geo, error) {
	page, err := throttledGet(ctx, g.limiter, g.fetcher, listing.DetailURL, g.timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &entity.FetchError{URL: listing.DetailURL, Err: err}
	}
	switch {
	case page.StatusCode == http.StatusNotFound, page.StatusCode == http.StatusGone:
		g.logger.Info("Listing detail page gone", "url", listing.DetailURL, "status", page.StatusCode)
		return nil, nil
	case !isSuccess(page.StatusCode):
		return nil, &entity.FetchError{URL: listing.DetailURL, Status: page.StatusCode}
	}

	doc, err := parseDocument(page)
	if err != nil {
		return nil, &entity.FetchError{URL: listing.DetailURL, Status: page.StatusCode, Err: err}
	}

	pt, ok := MapCoordinates(doc)
	if !ok {
		g.logger.Info("No map link on listing, probably removed", "url", listing.DetailURL)
		return nil, nil
	}
	return &entity.Geo{
		Latitude:  pt.Lat,
		Longitude: pt.Lng,
		Miles:     HaversineMiles(g.origin, pt),
	}, nil
}

// MapCoordinates finds the first map preview link in doc and parses it.
func MapCoordinates(doc *goquery.Document) (Point, bool) {
	href, ok := doc.Find(mapLinkSelector).First().Attr("href")
	if !ok {
		return Point{}, false
	}
	return ParseMapLink(href)
}

// ParseMapLink extracts coordinates from a link of the form
// ".../maps/preview/@<lat>,<lng>,<zoom>z". At least two numeric fields are required.
func ParseMapLink(href string) (Point, bool) {
	_, after, found := strings.Cut(href, "@")
	if !found {
		return Point{}, false
	}
	coords, _, _ := strings.Cut(after, "z")
	fields := strings.Split(coords, ",")
	if len(fields) < 2 {
		return Point{}, false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return Point{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil || lng < -180 || lng > 180 {
		return Point{}, false
	}
	return Point{Lat: lat, Lng: lng}, true
}

// HaversineMiles is the great-circle distance between a and b in miles.
func HaversineMiles(a, b Point) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}
