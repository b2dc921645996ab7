package domain

import "time"

// RateRecord is a raw provider rate before markup. BaseRate is always
// positive; non-positive values are rejected and never cached.
type RateRecord struct {
	Pair      Pair
	BaseRate  float64
	Provider  string
	FetchedAt time.Time
}

func (r RateRecord) Valid() bool { return r.BaseRate > 0 }

// FreshAt reports whether the record is still within the freshness
// window of its base currency's asset class.
func (r RateRecord) FreshAt(now time.Time) bool {
	return now.Sub(r.FetchedAt) < r.Pair.Base().Class().MaxRateAge()
}

// PricedRate is what callers see: a base rate that always carries the
// applied markup alongside it.
type PricedRate struct {
	Pair           Pair
	BaseRate       float64
	RateWithMarkup float64
	// Markup is the effective markup fraction actually applied.
	Markup   float64
	Provider string
	// Stale marks a last-resort quote served from an expired cache
	// entry after every provider failed.
	Stale     bool
	FetchedAt time.Time
}

// MarkupPercent returns the applied markup as a percentage.
func (p PricedRate) MarkupPercent() float64 { return p.Markup * 100 }
