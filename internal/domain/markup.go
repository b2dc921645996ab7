package domain

// VolumeTier discounts the pair markup for large transactions.
// Factor multiplies the base markup (0.8 = 20% discount).
type VolumeTier struct {
	MinAmount float64
	Factor    float64
}

// MarkupPolicy holds the platform's spread configuration. The effective
// markup is always clamped into [Min, Max] no matter what the per-pair
// value, volume discount, and volatility add-on produce.
type MarkupPolicy struct {
	PairMarkup    map[Pair]float64
	DefaultMarkup float64
	Min           float64
	Max           float64
	// VolatilityAddOn applies per base currency; stablecoins and fiat
	// carry no add-on.
	VolatilityAddOn map[Currency]float64
	CryptoDefault   float64
	VolumeTiers     []VolumeTier
}

// DefaultMarkupPolicy mirrors the production configuration: 2% on
// stablecoin pairs, 2.5% on volatile pairs, bounds 1%..5%.
func DefaultMarkupPolicy() *MarkupPolicy {
	return &MarkupPolicy{
		PairMarkup: map[Pair]float64{
			"USDC/NGN": 0.02,
			"USDT/NGN": 0.02,
			"ETH/NGN":  0.025,
			"BTC/NGN":  0.025,
		},
		DefaultMarkup: 0.02,
		Min:           0.01,
		Max:           0.05,
		VolatilityAddOn: map[Currency]float64{
			ETH: 0.005,
			BTC: 0.004,
		},
		CryptoDefault: 0.003,
		VolumeTiers: []VolumeTier{
			{MinAmount: 50_000, Factor: 0.6},
			{MinAmount: 10_000, Factor: 0.8},
		},
	}
}

// Effective computes the markup fraction for a pair and transaction
// amount: pair markup, volume discount (largest matching tier wins),
// volatility add-on for the base currency, then clamp.
func (m *MarkupPolicy) Effective(pair Pair, amount float64) float64 {
	markup, ok := m.PairMarkup[pair]
	if !ok {
		markup = m.DefaultMarkup
	}

	if amount > 0 {
		var best VolumeTier
		for _, t := range m.VolumeTiers {
			if amount > t.MinAmount && t.MinAmount >= best.MinAmount && t.Factor > 0 {
				best = t
			}
		}
		if best.Factor > 0 {
			markup *= best.Factor
		}
	}

	markup += m.volatilityAddOn(pair.Base())

	if markup < m.Min {
		markup = m.Min
	}
	if markup > m.Max {
		markup = m.Max
	}
	return markup
}

func (m *MarkupPolicy) volatilityAddOn(c Currency) float64 {
	if !c.IsCrypto() {
		return 0
	}
	if v, ok := m.VolatilityAddOn[c]; ok {
		return v
	}
	return m.CryptoDefault
}

// SetPairMarkup validates and applies an admin markup update. Updates
// outside [Min, Max] are rejected and leave the table untouched.
func (m *MarkupPolicy) SetPairMarkup(pair Pair, markup float64) error {
	if !pair.Supported() {
		return ErrUnsupportedPair
	}
	if markup < m.Min || markup > m.Max {
		return ErrMarkupOutOfBounds
	}
	if m.PairMarkup == nil {
		m.PairMarkup = map[Pair]float64{}
	}
	m.PairMarkup[pair] = markup
	return nil
}
