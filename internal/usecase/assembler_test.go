package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/shouldipickitup/internal/entity"
)

func accepted(titles ...string) []entity.AcceptedItem {
	items := make([]entity.AcceptedItem, len(titles))
	for i, title := range titles {
		items[i] = entity.AcceptedItem{
			Ordinal: (i + 1) * 10,
			Listing: entity.Listing{Title: title, DetailURL: "https://x.craigslist.org/" + title, Ordinal: (i + 1) * 3},
			Price:   entity.Price(100 * (i + 1)),
			Link:    "https://www.ebay.com/itm/" + title,
		}
	}
	return items
}

func TestAssembler_Assemble(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	a := NewAssembler(fixedClock(now))

	rec := a.Assemble("https://x.craigslist.org", accepted("a", "b", "c", "d"), 3)

	assert.Equal(t, "https://x.craigslist.org", rec.SourceURL)
	assert.Equal(t, now, rec.LastCrawled)
	require.Len(t, rec.Items, 3)
	for i, it := range rec.Items {
		assert.Equal(t, i+1, it.Ordinal)
	}
	assert.Equal(t, "a", rec.Items[0].Listing.Title)
	assert.Equal(t, "c", rec.Items[2].Listing.Title)
	// The listing keeps its position on the source page.
	assert.Equal(t, 3, rec.Items[0].Listing.Ordinal)
}

func TestAssembler_FewerThanHowMany(t *testing.T) {
	a := NewAssembler(nil)

	rec := a.Assemble("https://x.craigslist.org", accepted("a", "b"), 15)
	assert.Len(t, rec.Items, 2)
	assert.False(t, rec.LastCrawled.IsZero())

	rec = a.Assemble("https://x.craigslist.org", nil, 15)
	assert.Empty(t, rec.Items)

	rec = a.Assemble("https://x.craigslist.org", accepted("a"), -1)
	assert.Empty(t, rec.Items)
}

func TestAssembler_DoesNotMutateInput(t *testing.T) {
	in := accepted("a", "b")
	NewAssembler(nil).Assemble("https://x.craigslist.org", in, 2)

	assert.Equal(t, 10, in[0].Ordinal)
	assert.Equal(t, 20, in[1].Ordinal)
}

func TestAssembler_Deterministic(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	a := NewAssembler(fixedClock(now))

	first := a.Assemble("https://x.craigslist.org", accepted("a", "b", "c"), 2)
	second := a.Assemble("https://x.craigslist.org", accepted("a", "b", "c"), 2)
	assert.Equal(t, first, second)
	assert.Equal(t, first.Document(), second.Document())
}
