package application

import (
	"sync"

	"fxcore-service/internal/domain"
)

// ProfitCalculator turns markup spreads into a revenue split. The
// split is validated when updated, never during computation.
type ProfitCalculator struct {
	mu    sync.RWMutex
	split domain.ProfitSplit
}

func NewProfitCalculator(split domain.ProfitSplit) (*ProfitCalculator, error) {
	if err := split.Validate(); err != nil {
		return nil, err
	}
	return &ProfitCalculator{split: split}, nil
}

// Calculate returns the profit breakdown for one conversion. Gross
// profit is amount × (rateWithMarkup − baseRate), denominated in the
// target currency.
func (c *ProfitCalculator) Calculate(amount, baseRate, rateWithMarkup float64, to domain.Currency) domain.ProfitBreakdown {
	c.mu.RLock()
	split := c.split
	c.mu.RUnlock()

	gross := amount * (rateWithMarkup - baseRate)
	return domain.ProfitBreakdown{
		Gross:    gross,
		Platform: gross * split.Platform,
		Partner:  gross * split.Partner,
		Reserve:  gross * split.Reserve,
		Currency: to,
	}
}

// CalculateBatch aggregates breakdowns across conversions, keyed by
// profit currency. Reporting only.
func (c *ProfitCalculator) CalculateBatch(recs []domain.ConversionRecord) map[domain.Currency]domain.ProfitBreakdown {
	totals := map[domain.Currency]domain.ProfitBreakdown{}
	for _, r := range recs {
		b := c.Calculate(r.OriginalAmount, r.BaseRate, r.RateWithMarkup, r.To)
		t := totals[b.Currency]
		t.Gross += b.Gross
		t.Platform += b.Platform
		t.Partner += b.Partner
		t.Reserve += b.Reserve
		t.Currency = b.Currency
		totals[b.Currency] = t
	}
	return totals
}

// UpdateSplit replaces the share configuration. Fractions that do not
// sum to 1.0 are rejected and the previous split stays in effect.
func (c *ProfitCalculator) UpdateSplit(split domain.ProfitSplit) error {
	if err := split.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.split = split
	c.mu.Unlock()
	return nil
}

func (c *ProfitCalculator) Split() domain.ProfitSplit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.split
}

// Margin returns the profit margin percentage of revenue over cost.
func Margin(cost, revenue float64) float64 {
	if cost == 0 {
		return 0
	}
	return (revenue - cost) / cost * 100
}

// ROI summarizes return on operating costs over a timeframe.
// Used for reporting, never for pricing decisions.
type ROI struct {
	NetProfit     float64
	Percent       float64
	DailyPercent  float64
	AnnualPercent float64
	TimeframeDays int
}

func CalculateROI(totalProfit, operatingCosts float64, timeframeDays int) ROI {
	if timeframeDays <= 0 {
		timeframeDays = 30
	}
	net := totalProfit - operatingCosts
	var pct float64
	if operatingCosts != 0 {
		pct = net / operatingCosts * 100
	}
	daily := pct / float64(timeframeDays)
	return ROI{
		NetProfit:     net,
		Percent:       pct,
		DailyPercent:  daily,
		AnnualPercent: daily * 365,
		TimeframeDays: timeframeDays,
	}
}
