package provider

import (
	"context"

	"fxcore-service/internal/infrastructure/httpx"

	"go.uber.org/zap"
)

// FallbackUSDNGNRate is used when every fiat rate source is
// unreachable. Deliberately conservative; refreshed quotes replace it
// as soon as the upstream recovers.
const FallbackUSDNGNRate = 1550.0

// fiatSource resolves the USD to NGN leg that crypto providers do not
// quote themselves. Both upstreams used here return the same
// {"rates": {...}} shape.
type fiatSource struct {
	client   *httpx.Client
	url      string
	fallback float64
	log      *zap.Logger
}

func newFiatSource(client *httpx.Client, url string, fallback float64, log *zap.Logger) *fiatSource {
	if client == nil {
		client = &httpx.Client{}
	}
	if fallback <= 0 {
		fallback = FallbackUSDNGNRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &fiatSource{client: client, url: url, fallback: fallback, log: log}
}

// usdToNGN never fails: an unreachable upstream degrades to the
// configured fallback rate.
func (f *fiatSource) usdToNGN(ctx context.Context) float64 {
	var out struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := f.client.GetJSON(ctx, f.url, &out); err != nil {
		f.log.Warn("provider.fiat_rate_fallback", zap.String("url", f.url), zap.Error(err))
		return f.fallback
	}
	ngn := out.Rates["NGN"]
	if ngn <= 0 {
		f.log.Warn("provider.fiat_rate_missing_ngn", zap.String("url", f.url))
		return f.fallback
	}
	return ngn
}
