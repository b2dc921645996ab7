package domain

import "strings"

type Pair string

func NewPair(base, quote Currency) Pair {
	return Pair(string(base) + "/" + string(quote))
}

// SupportedPairs is the fixed set of pairs the engine will price.
// Anything outside this list is rejected before any provider call.
var SupportedPairs = []Pair{
	"USDC/NGN", "USDT/NGN", "ETH/NGN", "BTC/NGN",
	"USDC/USD", "ETH/USD", "BTC/USD",
	"NGN/USD", "USD/NGN",
}

var supportedPairSet = func() map[Pair]bool {
	m := make(map[Pair]bool, len(SupportedPairs))
	for _, p := range SupportedPairs {
		m[p] = true
	}
	return m
}()

func (p Pair) Supported() bool { return supportedPairSet[p] }

// Split returns the base and quote currencies. ok is false when the
// pair is malformed or either side is not a supported currency.
func (p Pair) Split() (base, quote Currency, ok bool) {
	i := strings.IndexByte(string(p), '/')
	if i <= 0 || i == len(p)-1 {
		return "", "", false
	}
	base, quote = Currency(p[:i]), Currency(p[i+1:])
	if !base.Supported() || !quote.Supported() {
		return "", "", false
	}
	return base, quote, true
}

func (p Pair) Base() Currency {
	b, _, _ := p.Split()
	return b
}

// Inverse returns the reversed pair (quote/base).
func (p Pair) Inverse() Pair {
	b, q, ok := p.Split()
	if !ok {
		return ""
	}
	return NewPair(q, b)
}
