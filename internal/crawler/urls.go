package crawler

import (
	"net/url"
	"strings"
)

const (
	freeItemsPath     = "/d/free-stuff/search"
	freeItemsCategory = "zip"
	sortByDistance    = "sort=dist"
)

// FreeItemsURL derives the "free items, sorted by distance" listing URL from a
// bare source endpoint.
//
//	https://sfbay.craigslist.org      -> https://sfbay.craigslist.org/d/free-stuff/search/zip?sort=dist
//	https://newyork.craigslist.org/brk -> https://newyork.craigslist.org/d/free-stuff/search/brk/zip?sort=dist
//
// Endpoints with an area segment (borough layout) get the free-items path
// inserted before that trailing segment. Already-derived URLs are returned unchanged.
func FreeItemsURL(endpoint string) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint + freeItemsPath + "/" + freeItemsCategory + "?" + sortByDistance
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	for _, s := range segments {
		if s == "search" {
			return endpoint
		}
	}

	var path string
	switch len(segments) {
	case 0:
		path = freeItemsPath + "/" + freeItemsCategory
	default:
		area := segments[len(segments)-1]
		prefix := ""
		if len(segments) > 1 {
			prefix = "/" + strings.Join(segments[:len(segments)-1], "/")
		}
		path = prefix + freeItemsPath + "/" + area + "/" + freeItemsCategory
	}

	u.Path = path
	u.RawPath = ""
	u.RawQuery = sortByDistance
	u.Fragment = ""
	return u.String()
}

// MarketplaceSearchURL builds a title search on the secondary marketplace.
// The title is used verbatim apart from URL encoding.
func MarketplaceSearchURL(searchBase, title string) string {
	q := url.Values{}
	q.Set("_from", "R40")
	q.Set("_nkw", title)
	q.Set("_sacat", "0")
	q.Set("LH_TitleDesc", "0")
	q.Set("_osacat", "0")
	q.Set("_odkw", title)

	sep := "?"
	if strings.Contains(searchBase, "?") {
		sep = "&"
	}
	return searchBase + sep + q.Encode()
}
