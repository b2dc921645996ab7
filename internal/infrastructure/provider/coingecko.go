package provider

import (
	"context"
	"fmt"
	"strings"

	"fxcore-service/internal/application"
	"fxcore-service/internal/domain"
	"fxcore-service/internal/infrastructure/httpx"

	"go.uber.org/zap"
)

var _ application.RateProvider = (*CoinGecko)(nil)

const DefaultCoinGeckoURL = "https://api.coingecko.com"

// DefaultCoinGeckoFiatURL is the fiat bridge used alongside CoinGecko;
// a different upstream than the primary's, so one fiat outage does not
// take out the whole chain.
const DefaultCoinGeckoFiatURL = "https://api.exchangerate-api.com/v4/latest/USD"

var geckoID = map[domain.Currency]string{
	domain.BTC:  "bitcoin",
	domain.ETH:  "ethereum",
	domain.USDC: "usd-coin",
	domain.USDT: "tether",
}

// CoinGecko is the last-resort rate source. Unlike the others it
// quotes NGN directly as a vs_currency, so only fiat/fiat pairs need
// the bridge.
type CoinGecko struct {
	client  *httpx.Client
	baseURL string
	fiat    *fiatSource
}

func NewCoinGecko(client *httpx.Client, baseURL, fiatURL string, fallbackNGN float64, log *zap.Logger) *CoinGecko {
	if client == nil {
		client = &httpx.Client{}
	}
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if fiatURL == "" {
		fiatURL = DefaultCoinGeckoFiatURL
	}
	return &CoinGecko{
		client:  client,
		baseURL: baseURL,
		fiat:    newFiatSource(client, fiatURL, fallbackNGN, log),
	}
}

func (g *CoinGecko) Name() string { return "coingecko" }

func (g *CoinGecko) Quote(ctx context.Context, base, quote domain.Currency) (float64, error) {
	if base.IsFiat() && quote.IsFiat() {
		usdNGN := g.fiat.usdToNGN(ctx)
		switch {
		case base == domain.USD && quote == domain.NGN:
			return usdNGN, nil
		case base == domain.NGN && quote == domain.USD:
			return 1 / usdNGN, nil
		default:
			return 0, fmt.Errorf("%w: %s/%s", domain.ErrUnsupportedPair, base, quote)
		}
	}

	id, ok := geckoID[base]
	if !ok {
		return 0, fmt.Errorf("%w: no coingecko id for %s", domain.ErrUnsupportedPair, base)
	}
	vs := strings.ToLower(string(quote))

	var out map[string]map[string]float64
	url := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=%s", g.baseURL, id, vs)
	if err := g.client.GetJSON(ctx, url, &out); err != nil {
		return 0, fmt.Errorf("coingecko: %s/%s: %w", base, quote, err)
	}
	price := out[id][vs]
	if price <= 0 {
		return 0, fmt.Errorf("coingecko: %s/%s: %w", base, quote, domain.ErrInvalidRate)
	}
	return price, nil
}
