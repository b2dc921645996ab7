package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Effective_StablecoinPair(t *testing.T) {
	t.Parallel()
	p := DefaultMarkupPolicy()
	require.InDelta(t, 0.02, p.Effective("USDC/NGN", 100), 1e-12)
}

func Test_Effective_VolatileAddOn(t *testing.T) {
	t.Parallel()
	p := DefaultMarkupPolicy()
	// 0.025 pair markup + 0.005 ETH add-on
	require.InDelta(t, 0.03, p.Effective("ETH/NGN", 100), 1e-12)
	// 0.025 + 0.004 BTC add-on
	require.InDelta(t, 0.029, p.Effective("BTC/NGN", 100), 1e-12)
}

func Test_Effective_VolumeDiscount(t *testing.T) {
	t.Parallel()
	p := DefaultMarkupPolicy()
	// >10k tier: 0.02 * 0.8
	require.InDelta(t, 0.016, p.Effective("USDC/NGN", 20_000), 1e-12)
	// >50k tier wins over >10k: 0.02 * 0.6
	require.InDelta(t, 0.012, p.Effective("USDC/NGN", 60_000), 1e-12)
}

func Test_Effective_ClampsToBounds(t *testing.T) {
	t.Parallel()
	p := DefaultMarkupPolicy()
	p.PairMarkup["USDC/NGN"] = 0.012
	// 0.012 * 0.6 = 0.0072, clamped up to min 0.01
	require.InDelta(t, 0.01, p.Effective("USDC/NGN", 60_000), 1e-12)

	p.PairMarkup["ETH/NGN"] = 0.05
	// 0.05 + add-on exceeds max, clamped down
	require.InDelta(t, 0.05, p.Effective("ETH/NGN", 100), 1e-12)
}

func Test_Effective_AlwaysWithinBounds(t *testing.T) {
	t.Parallel()
	p := DefaultMarkupPolicy()
	amounts := []float64{0, 1, 9_999, 10_001, 50_001, 1_000_000}
	for _, pair := range SupportedPairs {
		for _, amt := range amounts {
			m := p.Effective(pair, amt)
			require.GreaterOrEqual(t, m, p.Min, "pair=%s amount=%v", pair, amt)
			require.LessOrEqual(t, m, p.Max, "pair=%s amount=%v", pair, amt)
		}
	}
}

func Test_SetPairMarkup(t *testing.T) {
	t.Parallel()
	p := DefaultMarkupPolicy()

	require.NoError(t, p.SetPairMarkup("USDC/NGN", 0.03))
	require.InDelta(t, 0.03, p.PairMarkup["USDC/NGN"], 1e-12)

	err := p.SetPairMarkup("USDC/NGN", 0.2)
	require.ErrorIs(t, err, ErrMarkupOutOfBounds)
	require.InDelta(t, 0.03, p.PairMarkup["USDC/NGN"], 1e-12)

	err = p.SetPairMarkup("EUR/NGN", 0.02)
	require.ErrorIs(t, err, ErrUnsupportedPair)
}

func Test_ProfitSplit_Validate(t *testing.T) {
	t.Parallel()
	require.NoError(t, DefaultProfitSplit().Validate())
	require.Error(t, ProfitSplit{Platform: 0.5, Partner: 0.5, Reserve: 0.5}.Validate())
	require.Error(t, ProfitSplit{Platform: 1.5, Partner: -0.3, Reserve: -0.2}.Validate())
}
