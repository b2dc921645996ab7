package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"fxcore-service/internal/breaker"
	"fxcore-service/internal/domain"
	"fxcore-service/internal/ratecache"

	"github.com/stretchr/testify/require"
)

type testEngine struct {
	eng      *Engine
	clock    *fakeClock
	sink     *fakeSink
	store    *fakeStore
	breakers *breaker.Registry
}

func newTestEngine(t *testing.T, providers ...RateProvider) *testEngine {
	t.Helper()
	clk := newFakeClock()
	reg := breaker.NewRegistry(3, time.Minute).WithClock(clk.Now)
	cache, err := ratecache.New(100)
	require.NoError(t, err)
	profit, err := NewProfitCalculator(domain.DefaultProfitSplit())
	require.NoError(t, err)

	sink := &fakeSink{}
	store := &fakeStore{}
	eng := NewEngine(providers, cache, reg, profit, store, sink,
		WithClock(clk),
		WithIDGen(&fakeIDGen{}),
	)
	return &testEngine{eng: eng, clock: clk, sink: sink, store: store, breakers: reg}
}

func usdcNgnProvider(name string, rate float64) *fakeProvider {
	return &fakeProvider{name: name, rates: map[domain.Pair]float64{"USDC/NGN": rate}}
}

func Test_GetRate_UnsupportedPair(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t, usdcNgnProvider("primary", 1500))

	_, err := te.eng.GetRate(context.Background(), "EUR", "NGN", 0)
	require.ErrorIs(t, err, domain.ErrUnsupportedPair)
	require.Equal(t, 0, te.eng.Health().CacheSize, "no cache write for rejected pair")
}

func Test_GetRate_AppliesMarkup(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t, usdcNgnProvider("primary", 1500))

	priced, err := te.eng.GetRate(context.Background(), "USDC", "NGN", 100)
	require.NoError(t, err)
	require.InDelta(t, 1500, priced.BaseRate, 1e-9)
	require.InDelta(t, 1530, priced.RateWithMarkup, 1e-9)
	require.InDelta(t, 0.02, priced.Markup, 1e-12)
	require.Equal(t, "primary", priced.Provider)
	require.False(t, priced.Stale)
}

func Test_GetRate_VolumeDiscountTier(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t, usdcNgnProvider("primary", 1500))

	priced, err := te.eng.GetRate(context.Background(), "USDC", "NGN", 60_000)
	require.NoError(t, err)
	// 0.02 * 0.6 = 0.012, within bounds
	require.InDelta(t, 0.012, priced.Markup, 1e-12)
	require.InDelta(t, 1500*1.012, priced.RateWithMarkup, 1e-9)
}

func Test_GetRate_CacheHitShortCircuitsProviders(t *testing.T) {
	t.Parallel()
	p := usdcNgnProvider("primary", 1500)
	te := newTestEngine(t, p)

	first, err := te.eng.GetRate(context.Background(), "USDC", "NGN", 0)
	require.NoError(t, err)

	te.clock.Advance(time.Minute) // still within the 5m stablecoin window
	second, err := te.eng.GetRate(context.Background(), "USDC", "NGN", 0)
	require.NoError(t, err)

	require.Equal(t, 1, p.callCount(), "fresh hit must not call providers")
	require.InDelta(t, first.RateWithMarkup, second.RateWithMarkup, 1e-12)
}

func Test_GetRate_StaleHitRefetches(t *testing.T) {
	t.Parallel()
	p := usdcNgnProvider("primary", 1500)
	te := newTestEngine(t, p)

	_, err := te.eng.GetRate(context.Background(), "USDC", "NGN", 0)
	require.NoError(t, err)

	te.clock.Advance(6 * time.Minute) // past the stablecoin window
	p.mu.Lock()
	p.rates["USDC/NGN"] = 1550
	p.mu.Unlock()

	priced, err := te.eng.GetRate(context.Background(), "USDC", "NGN", 0)
	require.NoError(t, err)
	require.Equal(t, 2, p.callCount())
	require.InDelta(t, 1550, priced.BaseRate, 1e-9)
	require.False(t, priced.Stale)
}

func Test_GetRate_FallbackChainOrder(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "primary", err: errProviderDown}
	secondary := usdcNgnProvider("secondary", 1510)
	fallback := usdcNgnProvider("fallback", 1520)
	te := newTestEngine(t, primary, secondary, fallback)

	priced, err := te.eng.GetRate(context.Background(), "USDC", "NGN", 0)
	require.NoError(t, err)
	require.Equal(t, "secondary", priced.Provider)
	require.Equal(t, 0, fallback.callCount(), "chain stops at first valid rate")
}

func Test_GetRate_NonPositiveRateAdvancesChain(t *testing.T) {
	t.Parallel()
	primary := usdcNgnProvider("primary", 0)
	secondary := usdcNgnProvider("secondary", 1510)
	te := newTestEngine(t, primary, secondary)

	priced, err := te.eng.GetRate(context.Background(), "USDC", "NGN", 0)
	require.NoError(t, err)
	require.Equal(t, "secondary", priced.Provider)
	require.Equal(t, breaker.StateClosed, te.breakers.State("secondary"))
}

func Test_GetRate_AllProvidersFail(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t,
		&fakeProvider{name: "primary", err: errProviderDown},
		&fakeProvider{name: "secondary", err: errProviderDown},
		&fakeProvider{name: "fallback", err: errProviderDown},
	)

	_, err := te.eng.GetRate(context.Background(), "ETH", "NGN", 0)
	require.ErrorIs(t, err, domain.ErrNoProviderAvailable)
	require.Equal(t, 0, te.eng.Health().CacheSize, "nothing cached on total failure")
}

func Test_GetRate_StaleLastResort(t *testing.T) {
	t.Parallel()
	p := usdcNgnProvider("primary", 1500)
	te := newTestEngine(t, p)

	_, err := te.eng.GetRate(context.Background(), "USDC", "NGN", 0)
	require.NoError(t, err)

	// Expire the entry and kill the provider.
	te.clock.Advance(10 * time.Minute)
	p.mu.Lock()
	p.err = errProviderDown
	p.mu.Unlock()

	priced, err := te.eng.GetRate(context.Background(), "USDC", "NGN", 0)
	require.NoError(t, err, "stale entry serves as last resort")
	require.True(t, priced.Stale)
	require.InDelta(t, 1500, priced.BaseRate, 1e-9)
}

func Test_Breaker_SkipsOpenProviderAndProbesAfterTimeout(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "primary", err: errProviderDown}
	secondary := &fakeProvider{name: "secondary", rates: map[domain.Pair]float64{
		"ETH/NGN": 5_000_000, "BTC/NGN": 100_000_000, "USDC/NGN": 1500, "USDT/NGN": 1499,
	}}
	te := newTestEngine(t, primary, secondary)
	ctx := context.Background()

	// Three distinct cold pairs so each call reaches the provider chain
	// without moving the clock. Primary fails all three; its circuit opens.
	for _, pair := range []domain.Pair{"ETH/NGN", "BTC/NGN", "USDC/NGN"} {
		base, quote, _ := pair.Split()
		_, err := te.eng.GetRate(ctx, base, quote, 0)
		require.NoError(t, err)
	}
	require.Equal(t, 3, primary.callCount())
	require.Equal(t, breaker.StateOpen, te.breakers.State("primary"))

	// Open circuit: primary is skipped entirely.
	_, err := te.eng.GetRate(ctx, "USDT", "NGN", 0)
	require.NoError(t, err)
	require.Equal(t, 3, primary.callCount(), "open breaker must skip the provider")

	// After the reset timeout the next cold fetch probes primary again.
	te.clock.Advance(61 * time.Second)
	primary.mu.Lock()
	primary.err = nil
	primary.rates = map[domain.Pair]float64{"USDC/USD": 1.0}
	primary.mu.Unlock()

	priced, err := te.eng.GetRate(ctx, "USDC", "USD", 0)
	require.NoError(t, err)
	require.Equal(t, 4, primary.callCount())
	require.Equal(t, "primary", priced.Provider)
	require.Equal(t, breaker.StateClosed, te.breakers.State("primary"))
}

func Test_GetRate_CoalescesConcurrentFetches(t *testing.T) {
	t.Parallel()
	p := usdcNgnProvider("primary", 1500)
	p.block = make(chan struct{})
	te := newTestEngine(t, p)

	const n = 8
	var wg sync.WaitGroup
	results := make([]domain.PricedRate, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = te.eng.GetRate(context.Background(), "USDC", "NGN", 0)
		}(i)
	}

	// Let the callers pile up on the in-flight fetch, then release it.
	time.Sleep(50 * time.Millisecond)
	close(p.block)
	wg.Wait()

	require.Equal(t, 1, p.callCount(), "duplicate in-flight fetches must coalesce")
	for i := range results {
		require.NoError(t, errs[i])
		require.InDelta(t, 1530, results[i].RateWithMarkup, 1e-9)
	}
}

func Test_ConvertAmount_Scenario(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t, usdcNgnProvider("primary", 1500))

	rec, err := te.eng.ConvertAmount(context.Background(), 100, "USDC", "NGN", domain.ConversionMetadata{UserID: "u-1"})
	require.NoError(t, err)

	require.Equal(t, "CNV_TEST_1", rec.ID)
	require.InDelta(t, 1530, rec.RateWithMarkup, 1e-9)
	require.InDelta(t, 153_000, rec.ConvertedAmount, 1e-6)
	require.InDelta(t, 3000, rec.Profit.Gross, 1e-6)
	require.Equal(t, domain.NGN, rec.Profit.Currency)
	require.InDelta(t, rec.Profit.Gross, rec.Profit.Platform+rec.Profit.Partner+rec.Profit.Reserve, 1e-9)
	require.InDelta(t, 3000, rec.MarkupAmount, 1e-6)

	recs := te.sink.records()
	require.Len(t, recs, 1)
	require.Equal(t, rec.ID, recs[0].ID)
}

func Test_ConvertAmount_RejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()
	p := usdcNgnProvider("primary", 1500)
	te := newTestEngine(t, p)

	_, err := te.eng.ConvertAmount(context.Background(), 0, "USDC", "NGN", domain.ConversionMetadata{})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = te.eng.ConvertAmount(context.Background(), -5, "USDC", "NGN", domain.ConversionMetadata{})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	require.Equal(t, 0, p.callCount())
	require.Empty(t, te.sink.records())
}

func Test_ConvertAmount_DuplicateTransactionRef(t *testing.T) {
	t.Parallel()
	clkEngine := newTestEngine(t, usdcNgnProvider("primary", 1500))
	idem := &fakeIdem{}
	WithIdempotency(idem)(clkEngine.eng)

	meta := domain.ConversionMetadata{TransactionRef: "tx-42"}
	_, err := clkEngine.eng.ConvertAmount(context.Background(), 100, "USDC", "NGN", meta)
	require.NoError(t, err)

	_, err = clkEngine.eng.ConvertAmount(context.Background(), 100, "USDC", "NGN", meta)
	require.ErrorIs(t, err, ErrConflict)
	require.Len(t, clkEngine.sink.records(), 1)
}

func Test_ConvertAmount_IdempotencyStoreDownIsBestEffort(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t, usdcNgnProvider("primary", 1500))
	WithIdempotency(&fakeIdem{err: errProviderDown})(te.eng)

	_, err := te.eng.ConvertAmount(context.Background(), 100, "USDC", "NGN",
		domain.ConversionMetadata{TransactionRef: "tx-1"})
	require.NoError(t, err, "unreachable dedup store must not block conversions")
}

func Test_ConvertAmount_RetryAfterProviderOutage(t *testing.T) {
	t.Parallel()
	p := usdcNgnProvider("primary", 1500)
	p.err = errProviderDown
	te := newTestEngine(t, p)
	idem := &fakeIdem{}
	WithIdempotency(idem)(te.eng)

	meta := domain.ConversionMetadata{TransactionRef: "tx-retry"}
	_, err := te.eng.ConvertAmount(context.Background(), 100, "USDC", "NGN", meta)
	require.ErrorIs(t, err, domain.ErrNoProviderAvailable)
	require.Equal(t, []string{"fx:conversion:tx-retry"}, idem.releasedKeys(),
		"failed conversion must free its reservation")

	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()

	// Provider is back; the same transaction ref must go through now.
	rec, err := te.eng.ConvertAmount(context.Background(), 100, "USDC", "NGN", meta)
	require.NoError(t, err)
	require.InDelta(t, 153_000, rec.ConvertedAmount, 1e-6)

	// A completed conversion is still deduplicated.
	_, err = te.eng.ConvertAmount(context.Background(), 100, "USDC", "NGN", meta)
	require.ErrorIs(t, err, ErrConflict)
	require.Len(t, te.sink.records(), 1)
}

func Test_GetAllRates_PartialFailure(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{name: "primary", rates: map[domain.Pair]float64{
		"USDC/NGN": 1500, "USDT/NGN": 1499, "BTC/NGN": 100_000_000,
		"USDC/USD": 1, "BTC/USD": 65_000,
		"NGN/USD": 0.00065, "USD/NGN": 1540,
		// ETH pairs missing: provider errors for them
	}}
	te := newTestEngine(t, p)

	all := te.eng.GetAllRates(context.Background())
	require.Len(t, all.Rates, 7)
	require.Len(t, all.Errors, 2)
	require.Contains(t, all.Errors, domain.Pair("ETH/NGN"))
	require.Contains(t, all.Errors, domain.Pair("ETH/USD"))
	for pair, priced := range all.Rates {
		require.Greater(t, priced.RateWithMarkup, priced.BaseRate, "pair %s", pair)
	}
}

func Test_GetAllRates_DeterministicWithinFreshnessWindow(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{name: "primary", rates: map[domain.Pair]float64{
		"USDC/NGN": 1500, "USDT/NGN": 1499, "ETH/NGN": 5_000_000, "BTC/NGN": 100_000_000,
		"USDC/USD": 1, "ETH/USD": 3200, "BTC/USD": 65_000,
		"NGN/USD": 0.00065, "USD/NGN": 1540,
	}}
	te := newTestEngine(t, p)

	first := te.eng.GetAllRates(context.Background())
	require.Empty(t, first.Errors)
	calls := p.callCount()

	second := te.eng.GetAllRates(context.Background())
	require.Equal(t, calls, p.callCount(), "second pass must be all cache hits")
	for pair, r1 := range first.Rates {
		require.InDelta(t, r1.RateWithMarkup, second.Rates[pair].RateWithMarkup, 1e-12, "pair %s", pair)
	}
}

func Test_RefreshPair_CachesInverseFiat(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{name: "primary", rates: map[domain.Pair]float64{"USD/NGN": 1540}}
	te := newTestEngine(t, p)

	require.NoError(t, te.eng.RefreshPair(context.Background(), "USD/NGN"))
	require.Equal(t, 1, p.callCount())

	// The inverse pair must now be a cache hit.
	priced, err := te.eng.GetRate(context.Background(), "NGN", "USD", 0)
	require.NoError(t, err)
	require.Equal(t, 1, p.callCount())
	require.InDelta(t, 1.0/1540, priced.BaseRate, 1e-12)
}

func Test_UpdateMarkup_Validation(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t, usdcNgnProvider("primary", 1500))

	require.NoError(t, te.eng.UpdateMarkup("USDC/NGN", 0.03))
	require.InDelta(t, 0.03, te.eng.MarkupTable()["USDC/NGN"], 1e-12)

	require.ErrorIs(t, te.eng.UpdateMarkup("USDC/NGN", 0.5), domain.ErrMarkupOutOfBounds)
	require.ErrorIs(t, te.eng.UpdateMarkup("EUR/NGN", 0.02), domain.ErrUnsupportedPair)
	require.InDelta(t, 0.03, te.eng.MarkupTable()["USDC/NGN"], 1e-12, "rejected update must not mutate the table")
}

func Test_ProfitStats_TimeframeValidation(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t, usdcNgnProvider("primary", 1500))
	te.store.stats = domain.ProfitStats{Timeframe: "24h", TotalProfit: 9000}

	got, err := te.eng.ProfitStats(context.Background(), "24h")
	require.NoError(t, err)
	require.InDelta(t, 9000, got.TotalProfit, 1e-9)

	_, err = te.eng.ProfitStats(context.Background(), "5m")
	require.ErrorIs(t, err, ErrInvalidTimeframe)
}

func Test_UserHistory_Validation(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t, usdcNgnProvider("primary", 1500))
	te.store.history = []domain.ConversionRecord{{ID: "CNV_1"}, {ID: "CNV_2"}}

	_, err := te.eng.UserHistory(context.Background(), "", 0)
	require.ErrorIs(t, err, ErrBadRequest)

	recs, err := te.eng.UserHistory(context.Background(), "u-1", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func Test_Health_UnhealthyWhenBreakerOpen(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "primary", err: errProviderDown}
	secondary := &fakeProvider{name: "secondary", rates: map[domain.Pair]float64{
		"ETH/NGN": 5_000_000, "BTC/NGN": 100_000_000, "USDC/NGN": 1500,
	}}
	te := newTestEngine(t, primary, secondary)

	require.False(t, te.eng.Health().Unhealthy())
	for _, pair := range []domain.Pair{"ETH/NGN", "BTC/NGN", "USDC/NGN"} {
		base, quote, _ := pair.Split()
		_, _ = te.eng.GetRate(context.Background(), base, quote, 0)
	}
	require.True(t, te.eng.Health().Unhealthy())
}

func Test_PairsOfClass(t *testing.T) {
	t.Parallel()
	stable := PairsOfClass(domain.ClassStablecoin)
	require.ElementsMatch(t, []domain.Pair{"USDC/NGN", "USDT/NGN", "USDC/USD"}, stable)

	fiat := PairsOfClass(domain.ClassFiat)
	require.ElementsMatch(t, []domain.Pair{"NGN/USD", "USD/NGN"}, fiat)
}
