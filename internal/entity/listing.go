package entity

// Listing is one free item discovered on a source's listing page.
// Ordinal is the 1-based position in the fetched set.
type Listing struct {
	Title     string
	DetailURL string
	Ordinal   int
}

// Geo is the location of a listing and its distance from the configured origin.
type Geo struct {
	Latitude  float64
	Longitude float64
	Miles     float64
}

// EnrichedListing is a Listing plus optional geo fields. A nil Geo means
// enrichment did not find a location.
type EnrichedListing struct {
	Listing
	Geo *Geo
}
