package entity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AcceptedItem is a listing that correlated to a price, in acceptance order.
type AcceptedItem struct {
	Ordinal int
	Listing Listing
	Price   Price
	Link    string
	Geo     *Geo
}

// SourceRecord is the persisted unit for one source, keyed by SourceURL.
// It is rebuilt on every crawl, never merged.
type SourceRecord struct {
	SourceURL   string
	CityState   string
	LastCrawled time.Time
	Items       []AcceptedItem
}

// SourceSummary is a source and when it was last crawled. LastCrawled is nil
// for sources that were registered but never crawled.
type SourceSummary struct {
	SourceURL   string     `json:"source_url"`
	LastCrawled *time.Time `json:"last_crawled,omitempty"`
}

// WriteStatus reports where an upserted record ended up.
type WriteStatus int

const (
	// WriteStored means the primary store accepted the record.
	WriteStored WriteStatus = iota
	// WriteDegraded means the primary store was unreachable and the record
	// was saved to the local snapshot store instead.
	WriteDegraded
	// WriteSnapshot means snapshot output was requested explicitly.
	WriteSnapshot
)

func (s WriteStatus) String() string {
	switch s {
	case WriteStored:
		return "stored"
	case WriteDegraded:
		return "degraded"
	case WriteSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// RecordDocument is the ordinal-field wire shape shared with the existing store
// schema: Items.Item1, Urls.Url1, Prices.Price1, EbayLinks.EbayLink1, and so on.
type RecordDocument struct {
	Items       map[string]string  `json:"Items"`
	Urls        map[string]string  `json:"Urls"`
	Prices      map[string]string  `json:"Prices"`
	EbayLinks   map[string]string  `json:"EbayLinks"`
	Latitudes   map[string]float64 `json:"Latitudes,omitempty"`
	Longitudes  map[string]float64 `json:"Longitudes,omitempty"`
	Miles       map[string]float64 `json:"Miles,omitempty"`
	DateCrawled time.Time          `json:"DateCrawled"`
}

// Document converts the record to its wire shape.
func (r SourceRecord) Document() RecordDocument {
	doc := RecordDocument{
		Items:       make(map[string]string, len(r.Items)),
		Urls:        make(map[string]string, len(r.Items)),
		Prices:      make(map[string]string, len(r.Items)),
		EbayLinks:   make(map[string]string, len(r.Items)),
		DateCrawled: r.LastCrawled,
	}
	for _, it := range r.Items {
		n := strconv.Itoa(it.Ordinal)
		doc.Items["Item"+n] = it.Listing.Title
		doc.Urls["Url"+n] = it.Listing.DetailURL
		doc.Prices["Price"+n] = it.Price.String()
		doc.EbayLinks["EbayLink"+n] = it.Link
		if it.Geo == nil {
			continue
		}
		if doc.Latitudes == nil {
			doc.Latitudes = make(map[string]float64)
			doc.Longitudes = make(map[string]float64)
			doc.Miles = make(map[string]float64)
		}
		doc.Latitudes["Latitude"+n] = it.Geo.Latitude
		doc.Longitudes["Longitude"+n] = it.Geo.Longitude
		doc.Miles["Miles"+n] = it.Geo.Miles
	}
	return doc
}

// RecordFromDocument rebuilds a record from its wire shape. Items are ordered by ordinal.
func RecordFromDocument(sourceURL string, doc RecordDocument) (SourceRecord, error) {
	rec := SourceRecord{SourceURL: sourceURL, LastCrawled: doc.DateCrawled}

	ordinals := make([]int, 0, len(doc.Items))
	for key := range doc.Items {
		n, err := strconv.Atoi(strings.TrimPrefix(key, "Item"))
		if err != nil || !strings.HasPrefix(key, "Item") {
			return SourceRecord{}, fmt.Errorf("bad item key %q", key)
		}
		ordinals = append(ordinals, n)
	}
	sort.Ints(ordinals)

	for _, n := range ordinals {
		suffix := strconv.Itoa(n)
		it := AcceptedItem{
			Ordinal: n,
			Listing: Listing{
				Title:     doc.Items["Item"+suffix],
				DetailURL: doc.Urls["Url"+suffix],
			},
			Link: doc.EbayLinks["EbayLink"+suffix],
		}
		if raw, ok := doc.Prices["Price"+suffix]; ok {
			p, err := ParsePrice(raw)
			if err != nil {
				return SourceRecord{}, err
			}
			it.Price = p
		}
		if lat, ok := doc.Latitudes["Latitude"+suffix]; ok {
			it.Geo = &Geo{
				Latitude:  lat,
				Longitude: doc.Longitudes["Longitude"+suffix],
				Miles:     doc.Miles["Miles"+suffix],
			}
		}
		rec.Items = append(rec.Items, it)
	}
	return rec, nil
}
