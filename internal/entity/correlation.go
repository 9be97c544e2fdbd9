package entity

import (
	"fmt"
	"strconv"
)

// CorrelationKind is the outcome of matching a listing on the secondary marketplace.
type CorrelationKind int

const (
	NoMatch CorrelationKind = iota
	NoPrice
	MalformedLink
	Priced
)

func (k CorrelationKind) String() string {
	switch k {
	case NoMatch:
		return "no_match"
	case NoPrice:
		return "no_price"
	case MalformedLink:
		return "malformed_link"
	case Priced:
		return "priced"
	default:
		return "unknown"
	}
}

// Price is a marketplace price in cents.
type Price int64

// String formats the price as a plain decimal, e.g. "12.99".
func (p Price) String() string {
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}
	return fmt.Sprintf("%s%d.%02d", sign, p/100, p%100)
}

// ParsePrice reads a decimal string as written by Price.String.
func ParsePrice(s string) (Price, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	return PriceFromFloat(f), nil
}

// PriceFromFloat rounds a dollar amount to the nearest cent.
func PriceFromFloat(f float64) Price {
	if f < 0 {
		return Price(f*100 - 0.5)
	}
	return Price(f*100 + 0.5)
}

// CorrelationResult is a tagged variant. Price and Link are only set when Kind is Priced.
type CorrelationResult struct {
	Kind  CorrelationKind
	Price Price
	Link  string
}

func NoMatchResult() CorrelationResult       { return CorrelationResult{Kind: NoMatch} }
func NoPriceResult() CorrelationResult       { return CorrelationResult{Kind: NoPrice} }
func MalformedLinkResult() CorrelationResult { return CorrelationResult{Kind: MalformedLink} }

func PricedResult(price Price, link string) CorrelationResult {
	return CorrelationResult{Kind: Priced, Price: price, Link: link}
}

// Accepted reports whether the listing should be kept downstream.
func (r CorrelationResult) Accepted() bool {
	return r.Kind == Priced
}
