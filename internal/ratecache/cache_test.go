package ratecache

import (
	"testing"
	"time"

	"fxcore-service/internal/domain"

	"github.com/stretchr/testify/require"
)

func rec(pair domain.Pair, rate float64) domain.RateRecord {
	return domain.RateRecord{Pair: pair, BaseRate: rate, Provider: "test", FetchedAt: time.Now()}
}

func Test_GetSet(t *testing.T) {
	t.Parallel()
	c, err := New(10)
	require.NoError(t, err)

	_, ok := c.Get("USDC/NGN")
	require.False(t, ok)

	c.Set("USDC/NGN", rec("USDC/NGN", 1500))
	got, ok := c.Get("USDC/NGN")
	require.True(t, ok)
	require.InDelta(t, 1500, got.BaseRate, 1e-9)
}

func Test_RejectsInvalidRecords(t *testing.T) {
	t.Parallel()
	c, err := New(10)
	require.NoError(t, err)

	c.Set("USDC/NGN", domain.RateRecord{Pair: "USDC/NGN", BaseRate: 0})
	c.Set("ETH/NGN", domain.RateRecord{Pair: "ETH/NGN", BaseRate: -5})
	require.Equal(t, 0, c.Len())
}

func Test_LRUEviction(t *testing.T) {
	t.Parallel()
	c, err := New(2)
	require.NoError(t, err)

	c.Set("USDC/NGN", rec("USDC/NGN", 1500))
	c.Set("ETH/NGN", rec("ETH/NGN", 5_000_000))

	// Touch USDC so ETH becomes least recently used.
	_, ok := c.Get("USDC/NGN")
	require.True(t, ok)

	c.Set("BTC/NGN", rec("BTC/NGN", 100_000_000))
	require.Equal(t, 2, c.Len())

	_, ok = c.Get("ETH/NGN")
	require.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("USDC/NGN")
	require.True(t, ok)
	_, ok = c.Get("BTC/NGN")
	require.True(t, ok)
}

func Test_DefaultCapacity(t *testing.T) {
	t.Parallel()
	c, err := New(0)
	require.NoError(t, err)
	c.Set("USDC/NGN", rec("USDC/NGN", 1500))
	require.Equal(t, 1, c.Len())
}
