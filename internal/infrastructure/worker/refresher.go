// Package worker holds the background loops run next to the API:
// proactive rate refresh and audit retention cleanup.
package worker

import (
	"context"
	"time"

	"fxcore-service/internal/application"
	"fxcore-service/internal/domain"

	"go.uber.org/zap"
)

var _ application.Worker = (*Refresher)(nil)

// Refresh cadence per asset class; crypto moves fastest.
const (
	DefaultStableInterval = 3 * time.Minute
	DefaultCryptoInterval = 1 * time.Minute
	DefaultFiatInterval   = 5 * time.Minute
	DefaultHealthInterval = 30 * time.Second
)

// Refresher keeps the rate cache warm so user-facing quotes rarely pay
// the provider round trip, and periodically logs a health summary when
// any provider circuit is not closed.
type Refresher struct {
	eng *application.Engine
	log *zap.Logger

	stable, crypto, fiat, health time.Duration
}

type RefresherOption func(*Refresher)

func WithIntervals(stable, crypto, fiat time.Duration) RefresherOption {
	return func(r *Refresher) {
		if stable > 0 {
			r.stable = stable
		}
		if crypto > 0 {
			r.crypto = crypto
		}
		if fiat > 0 {
			r.fiat = fiat
		}
	}
}

func WithHealthInterval(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.health = d
		}
	}
}

func NewRefresher(eng *application.Engine, log *zap.Logger, opts ...RefresherOption) *Refresher {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Refresher{
		eng:    eng,
		log:    log,
		stable: DefaultStableInterval,
		crypto: DefaultCryptoInterval,
		fiat:   DefaultFiatInterval,
		health: DefaultHealthInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Refresher) Start(ctx context.Context) {
	// Warm the cache once up front; first requests should not all miss.
	r.refreshClass(ctx, domain.ClassStablecoin)
	r.refreshClass(ctx, domain.ClassCrypto)
	r.refreshClass(ctx, domain.ClassFiat)

	stable := time.NewTicker(r.stable)
	crypto := time.NewTicker(r.crypto)
	fiat := time.NewTicker(r.fiat)
	health := time.NewTicker(r.health)
	defer stable.Stop()
	defer crypto.Stop()
	defer fiat.Stop()
	defer health.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stable.C:
			r.refreshClass(ctx, domain.ClassStablecoin)
		case <-crypto.C:
			r.refreshClass(ctx, domain.ClassCrypto)
		case <-fiat.C:
			r.refreshClass(ctx, domain.ClassFiat)
		case <-health.C:
			r.logHealth()
		}
	}
}

func (r *Refresher) refreshClass(ctx context.Context, class domain.AssetClass) {
	for _, pair := range application.PairsOfClass(class) {
		if ctx.Err() != nil {
			return
		}
		if err := r.eng.RefreshPair(ctx, pair); err != nil {
			r.log.Warn("refresher.refresh_failed", zap.String("pair", string(pair)), zap.Error(err))
		}
	}
}

// logHealth is quiet while everything is closed; a healthy system
// should not fill the logs every 30 seconds.
func (r *Refresher) logHealth() {
	h := r.eng.Health()
	if !h.Unhealthy() {
		return
	}
	fields := []zap.Field{zap.Int("cached_pairs", h.CacheSize)}
	for _, p := range h.Providers {
		fields = append(fields, zap.String("provider_"+p.Provider, p.State.String()))
	}
	r.log.Warn("refresher.providers_degraded", fields...)
}
