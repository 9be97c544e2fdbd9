package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashURL(t *testing.T) {
	a := HashURL("https://gainesville.craigslist.org")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashURL("https://gainesville.craigslist.org"))
	assert.NotEqual(t, a, HashURL("https://tampa.craigslist.org"))
}

func TestToAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://gainesville.craigslist.org/d/free-stuff/search/zip")
	require.NoError(t, err)

	got, err := ToAbsoluteURL(base, " /zip/d/desk/123.html ")
	require.NoError(t, err)
	assert.Equal(t, "https://gainesville.craigslist.org/zip/d/desk/123.html", got)

	got, err = ToAbsoluteURL(base, "https://other.example/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/x", got)
}

func TestHost(t *testing.T) {
	assert.Equal(t, "newyork.craigslist.org", Host("https://NewYork.craigslist.org/brk"))
	assert.Equal(t, "", Host("::not a url"))
}

func TestStripQuery(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://www.ebay.com/itm/123?hash=abc&_trkparms=x", "https://www.ebay.com/itm/123", true},
		{"https://www.ebay.com/itm/123#frag", "https://www.ebay.com/itm/123", true},
		{"http://gainesville.craigslist.org", "http://gainesville.craigslist.org", true},
		{"/itm/123", "", false},
		{"ftp://www.ebay.com/itm/123", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := StripQuery(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
