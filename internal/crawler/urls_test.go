package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeItemsURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{"bare host", "https://gainesville.craigslist.org", "https://gainesville.craigslist.org/d/free-stuff/search/zip?sort=dist"},
		{"trailing slash", "https://gainesville.craigslist.org/", "https://gainesville.craigslist.org/d/free-stuff/search/zip?sort=dist"},
		{"borough", "https://newyork.craigslist.org/brk", "https://newyork.craigslist.org/d/free-stuff/search/brk/zip?sort=dist"},
		{"borough trailing slash", "https://newyork.craigslist.org/mnh/", "https://newyork.craigslist.org/d/free-stuff/search/mnh/zip?sort=dist"},
		{"already derived", "https://sfbay.craigslist.org/d/free-stuff/search/zip?sort=dist", "https://sfbay.craigslist.org/d/free-stuff/search/zip?sort=dist"},
		{"surrounding space", "  https://ocala.craigslist.org ", "https://ocala.craigslist.org/d/free-stuff/search/zip?sort=dist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FreeItemsURL(tt.endpoint))
		})
	}
}

func TestMarketplaceSearchURL(t *testing.T) {
	raw := MarketplaceSearchURL("https://www.ebay.com/sch/i.html", "Oak dresser & mirror")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "www.ebay.com", u.Host)
	assert.Equal(t, "/sch/i.html", u.Path)

	q := u.Query()
	assert.Equal(t, "Oak dresser & mirror", q.Get("_nkw"))
	assert.Equal(t, "Oak dresser & mirror", q.Get("_odkw"))
	assert.Equal(t, "0", q.Get("_sacat"))
	assert.Equal(t, "0", q.Get("LH_TitleDesc"))
	assert.Equal(t, "R40", q.Get("_from"))
}

func TestMarketplaceSearchURL_ExistingQuery(t *testing.T) {
	raw := MarketplaceSearchURL("http://127.0.0.1:9999/search?site=us", "lamp")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "us", u.Query().Get("site"))
	assert.Equal(t, "lamp", u.Query().Get("_nkw"))
}
