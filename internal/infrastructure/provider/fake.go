package provider

import (
	"context"
	"fmt"
	"sync"

	"fxcore-service/internal/application"
	"fxcore-service/internal/domain"
)

var _ application.RateProvider = (*Fake)(nil)

// Fake serves scripted rates. Used in dev mode when no upstream is
// configured.
type Fake struct {
	name string

	mu    sync.RWMutex
	rates map[domain.Pair]float64
}

func NewFake(name string, rates map[domain.Pair]float64) *Fake {
	cp := make(map[domain.Pair]float64, len(rates))
	for p, r := range rates {
		cp[p] = r
	}
	return &Fake{name: name, rates: cp}
}

func (f *Fake) Name() string { return f.name }

func (f *Fake) Quote(_ context.Context, base, quote domain.Currency) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.rates[domain.NewPair(base, quote)]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", domain.ErrUnsupportedPair, base, quote)
	}
	return r, nil
}

// SetRate scripts or reprices one pair.
func (f *Fake) SetRate(pair domain.Pair, rate float64) {
	f.mu.Lock()
	f.rates[pair] = rate
	f.mu.Unlock()
}
