package domain

import "math"

// ProfitSplit distributes gross markup profit between stakeholders.
// Fractions must sum to 1.0; Validate is enforced at update time, not
// during per-conversion computation.
type ProfitSplit struct {
	Platform float64
	Partner  float64
	Reserve  float64
}

func DefaultProfitSplit() ProfitSplit {
	return ProfitSplit{Platform: 0.70, Partner: 0.20, Reserve: 0.10}
}

const splitEpsilon = 1e-9

func (s ProfitSplit) Validate() error {
	if s.Platform < 0 || s.Partner < 0 || s.Reserve < 0 {
		return ErrInvalidProfitSplit
	}
	if math.Abs(s.Platform+s.Partner+s.Reserve-1.0) > splitEpsilon {
		return ErrInvalidProfitSplit
	}
	return nil
}

// ProfitBreakdown is the per-conversion revenue split, denominated in
// the conversion's target currency.
type ProfitBreakdown struct {
	Gross    float64
	Platform float64
	Partner  float64
	Reserve  float64
	Currency Currency
}

// PairProfit aggregates logged conversions for one pair inside a
// stats timeframe.
type PairProfit struct {
	Pair           Pair
	Conversions    int64
	VolumeFrom     float64
	VolumeTo       float64
	Profit         float64
	AvgMarkupPct   float64
	ProfitCurrency Currency
}

type ProfitStats struct {
	Timeframe        string
	TotalProfit      float64
	TotalConversions int64
	ByPair           []PairProfit
}
