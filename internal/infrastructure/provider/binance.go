package provider

import (
	"context"
	"fmt"
	"strconv"

	"fxcore-service/internal/application"
	"fxcore-service/internal/domain"
	"fxcore-service/internal/infrastructure/httpx"

	"go.uber.org/zap"
)

var _ application.RateProvider = (*Binance)(nil)

const DefaultBinanceURL = "https://api.binance.com"

// DefaultFiatURL quotes USD against world currencies, NGN included.
const DefaultFiatURL = "https://open.er-api.com/v6/latest/USD"

var binanceSymbol = map[domain.Currency]string{
	domain.ETH: "ETHUSDT",
	domain.BTC: "BTCUSDT",
}

// Binance is the primary rate source. Crypto legs come from spot
// tickers; the NGN leg is bridged through a fiat rate API since
// Binance does not quote NGN pairs directly.
type Binance struct {
	client  *httpx.Client
	baseURL string
	fiat    *fiatSource
}

func NewBinance(client *httpx.Client, baseURL, fiatURL string, fallbackNGN float64, log *zap.Logger) *Binance {
	if client == nil {
		client = &httpx.Client{}
	}
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	if fiatURL == "" {
		fiatURL = DefaultFiatURL
	}
	return &Binance{
		client:  client,
		baseURL: baseURL,
		fiat:    newFiatSource(client, fiatURL, fallbackNGN, log),
	}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) Quote(ctx context.Context, base, quote domain.Currency) (float64, error) {
	bu, err := b.usdValue(ctx, base)
	if err != nil {
		return 0, err
	}
	qu, err := b.usdValue(ctx, quote)
	if err != nil {
		return 0, err
	}
	if qu <= 0 {
		return 0, fmt.Errorf("binance: zero usd value for %s", quote)
	}
	return bu / qu, nil
}

// usdValue returns the USD price of one unit of c. Stablecoins are
// treated as pegged; drifting off peg is absorbed by the markup.
func (b *Binance) usdValue(ctx context.Context, c domain.Currency) (float64, error) {
	switch {
	case c == domain.USD:
		return 1, nil
	case c.IsStablecoin():
		return 1, nil
	case c == domain.NGN:
		return 1 / b.fiat.usdToNGN(ctx), nil
	case c.IsCrypto():
		return b.tickerPrice(ctx, binanceSymbol[c])
	default:
		return 0, fmt.Errorf("%w: %s", domain.ErrUnsupportedPair, c)
	}
}

func (b *Binance) tickerPrice(ctx context.Context, symbol string) (float64, error) {
	var out struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", b.baseURL, symbol)
	if err := b.client.GetJSON(ctx, url, &out); err != nil {
		return 0, fmt.Errorf("binance: ticker %s: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(out.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: ticker %s: bad price %q", symbol, out.Price)
	}
	if price <= 0 {
		return 0, fmt.Errorf("binance: ticker %s: %w", symbol, domain.ErrInvalidRate)
	}
	return price, nil
}
