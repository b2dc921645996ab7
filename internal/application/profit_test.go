package application

import (
	"testing"

	"fxcore-service/internal/domain"

	"github.com/stretchr/testify/require"
)

func Test_ProfitCalculator_Calculate(t *testing.T) {
	t.Parallel()
	calc, err := NewProfitCalculator(domain.DefaultProfitSplit())
	require.NoError(t, err)

	b := calc.Calculate(100, 1500, 1530, domain.NGN)
	require.InDelta(t, 3000, b.Gross, 1e-9)
	require.InDelta(t, 2100, b.Platform, 1e-9)
	require.InDelta(t, 600, b.Partner, 1e-9)
	require.InDelta(t, 300, b.Reserve, 1e-9)
	require.Equal(t, domain.NGN, b.Currency)
	require.InDelta(t, b.Gross, b.Platform+b.Partner+b.Reserve, 1e-9)
}

func Test_ProfitCalculator_RejectsInvalidSplit(t *testing.T) {
	t.Parallel()
	_, err := NewProfitCalculator(domain.ProfitSplit{Platform: 0.9, Partner: 0.2, Reserve: 0.1})
	require.ErrorIs(t, err, domain.ErrInvalidProfitSplit)

	calc, err := NewProfitCalculator(domain.DefaultProfitSplit())
	require.NoError(t, err)

	err = calc.UpdateSplit(domain.ProfitSplit{Platform: 1.2, Partner: -0.1, Reserve: -0.1})
	require.ErrorIs(t, err, domain.ErrInvalidProfitSplit)
	require.Equal(t, domain.DefaultProfitSplit(), calc.Split(), "rejected update keeps the previous split")

	err = calc.UpdateSplit(domain.ProfitSplit{Platform: 0.5, Partner: 0.3, Reserve: 0.2})
	require.NoError(t, err)
	require.InDelta(t, 0.5, calc.Split().Platform, 1e-12)
}

func Test_ProfitCalculator_CalculateBatch(t *testing.T) {
	t.Parallel()
	calc, err := NewProfitCalculator(domain.DefaultProfitSplit())
	require.NoError(t, err)

	recs := []domain.ConversionRecord{
		{OriginalAmount: 100, BaseRate: 1500, RateWithMarkup: 1530, To: domain.NGN},
		{OriginalAmount: 200, BaseRate: 1500, RateWithMarkup: 1530, To: domain.NGN},
		{OriginalAmount: 1, BaseRate: 3200, RateWithMarkup: 3280, To: domain.USD},
	}
	totals := calc.CalculateBatch(recs)
	require.Len(t, totals, 2)
	require.InDelta(t, 9000, totals[domain.NGN].Gross, 1e-9)
	require.InDelta(t, 80, totals[domain.USD].Gross, 1e-9)
	for _, b := range totals {
		require.InDelta(t, b.Gross, b.Platform+b.Partner+b.Reserve, 1e-9)
	}
}

func Test_Margin(t *testing.T) {
	t.Parallel()
	require.InDelta(t, 20, Margin(100, 120), 1e-9)
	require.InDelta(t, -10, Margin(100, 90), 1e-9)
	require.Zero(t, Margin(0, 120))
}

func Test_CalculateROI(t *testing.T) {
	t.Parallel()
	roi := CalculateROI(15_000, 10_000, 30)
	require.InDelta(t, 5000, roi.NetProfit, 1e-9)
	require.InDelta(t, 50, roi.Percent, 1e-9)
	require.InDelta(t, 50.0/30, roi.DailyPercent, 1e-9)
	require.InDelta(t, 50.0/30*365, roi.AnnualPercent, 1e-9)

	zeroCost := CalculateROI(5000, 0, 0)
	require.Equal(t, 30, zeroCost.TimeframeDays)
	require.Zero(t, zeroCost.Percent)
}
