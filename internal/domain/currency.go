package domain

import "time"

type Currency string

const (
	USDC Currency = "USDC"
	USDT Currency = "USDT"
	ETH  Currency = "ETH"
	BTC  Currency = "BTC"
	NGN  Currency = "NGN"
	USD  Currency = "USD"
)

// AssetClass drives freshness windows and volatility add-ons.
type AssetClass int

const (
	ClassStablecoin AssetClass = iota
	ClassCrypto
	ClassFiat
)

var SupportedCurrency = map[Currency]AssetClass{
	USDC: ClassStablecoin,
	USDT: ClassStablecoin,
	ETH:  ClassCrypto,
	BTC:  ClassCrypto,
	NGN:  ClassFiat,
	USD:  ClassFiat,
}

func (c Currency) Supported() bool {
	_, ok := SupportedCurrency[c]
	return ok
}

func (c Currency) Class() AssetClass {
	return SupportedCurrency[c]
}

func (c Currency) IsStablecoin() bool { return c.Supported() && c.Class() == ClassStablecoin }
func (c Currency) IsCrypto() bool     { return c.Supported() && c.Class() == ClassCrypto }
func (c Currency) IsFiat() bool       { return c.Supported() && c.Class() == ClassFiat }

// MaxRateAge is the freshness window for rates whose base currency
// belongs to this class. Stale rates are re-fetched before quoting.
func (a AssetClass) MaxRateAge() time.Duration {
	switch a {
	case ClassStablecoin:
		return 5 * time.Minute
	case ClassCrypto:
		return 2 * time.Minute
	default:
		return 10 * time.Minute
	}
}
