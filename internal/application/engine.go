package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"fxcore-service/internal/breaker"
	"fxcore-service/internal/domain"
	"fxcore-service/internal/infrastructure/metrics"
	"fxcore-service/internal/ratecache"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Timeframes accepted by ProfitStats.
var ValidTimeframes = []string{"1h", "24h", "7d", "30d"}

const (
	defaultProviderTimeout = 10 * time.Second
	defaultHistoryLimit    = 20
	maxHistoryLimit        = 100
)

// Engine is the pricing core: cache lookup, provider fallback chain
// behind per-provider breakers, markup application, profit accounting,
// and fire-and-forget conversion logging.
type Engine struct {
	providers []RateProvider
	cache     *ratecache.Cache
	breakers  *breaker.Registry
	profit    *ProfitCalculator
	store     ConversionStore
	sink      ConversionSink
	idem      IdempotencyStore

	policyMu sync.RWMutex
	policy   *domain.MarkupPolicy

	// Coalesces duplicate in-flight fetches per pair.
	sf singleflight.Group

	providerTimeout time.Duration
	clock           Clock
	idgen           IDGen
	log             *zap.Logger
}

type Option func(*Engine)

func WithClock(c Clock) Option                  { return func(e *Engine) { e.clock = c } }
func WithIDGen(g IDGen) Option                  { return func(e *Engine) { e.idgen = g } }
func WithLogger(l *zap.Logger) Option           { return func(e *Engine) { e.log = l } }
func WithIdempotency(s IdempotencyStore) Option { return func(e *Engine) { e.idem = s } }
func WithPolicy(p *domain.MarkupPolicy) Option  { return func(e *Engine) { e.policy = p } }
func WithProviderTimeout(d time.Duration) Option {
	return func(e *Engine) { e.providerTimeout = d }
}

// NewEngine wires the pricing core. Providers are attempted in the
// given priority order.
func NewEngine(
	providers []RateProvider,
	cache *ratecache.Cache,
	breakers *breaker.Registry,
	profit *ProfitCalculator,
	store ConversionStore,
	sink ConversionSink,
	opts ...Option,
) *Engine {
	e := &Engine{
		providers:       providers,
		cache:           cache,
		breakers:        breakers,
		profit:          profit,
		store:           store,
		sink:            sink,
		providerTimeout: defaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy == nil {
		e.policy = domain.DefaultMarkupPolicy()
	}
	if e.clock == nil {
		e.clock = realClock{}
	}
	if e.idgen == nil {
		e.idgen = defaultIDGen{}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	return e
}

// GetRate returns the marked-up rate for one pair. A fresh cache hit
// short-circuits providers entirely; on total provider failure a stale
// cache entry, when present, is served flagged as Stale.
func (e *Engine) GetRate(ctx context.Context, from, to domain.Currency, amount float64) (domain.PricedRate, error) {
	pair := domain.NewPair(from, to)
	if !pair.Supported() {
		return domain.PricedRate{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedPair, pair)
	}

	now := e.clock.Now()
	if rec, ok := e.cache.Get(pair); ok && rec.FreshAt(now) {
		metrics.CacheLookups.WithLabelValues("fresh").Inc()
		return e.price(rec, amount, false), nil
	} else if ok {
		metrics.CacheLookups.WithLabelValues("stale").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	rec, err := e.fetchBaseRate(ctx, pair)
	if err != nil {
		if stale, ok := e.cache.Get(pair); ok {
			metrics.StaleRateServed.Inc()
			e.log.Warn("engine.stale_rate_served",
				zap.String("pair", string(pair)),
				zap.Time("fetched_at", stale.FetchedAt),
			)
			return e.price(stale, amount, true), nil
		}
		return domain.PricedRate{}, err
	}
	return e.price(rec, amount, false), nil
}

// fetchBaseRate coalesces concurrent fetches for the same pair into a
// single provider chain walk.
func (e *Engine) fetchBaseRate(ctx context.Context, pair domain.Pair) (domain.RateRecord, error) {
	v, err, _ := e.sf.Do(string(pair), func() (any, error) {
		rec, err := e.fetchFromProviders(ctx, pair)
		if err != nil {
			return nil, err
		}
		e.cache.Set(pair, rec)
		return rec, nil
	})
	if err != nil {
		return domain.RateRecord{}, err
	}
	return v.(domain.RateRecord), nil
}

// fetchFromProviders walks the fallback chain in priority order,
// skipping providers with an open breaker, stopping at the first valid
// positive rate.
func (e *Engine) fetchFromProviders(ctx context.Context, pair domain.Pair) (domain.RateRecord, error) {
	base, quote, ok := pair.Split()
	if !ok {
		return domain.RateRecord{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedPair, pair)
	}

	for _, p := range e.providers {
		name := p.Name()
		if !e.breakers.Allow(name) {
			metrics.ProviderRequests.WithLabelValues(name, "skipped").Inc()
			e.log.Debug("engine.breaker_open_skip", zap.String("provider", name), zap.String("pair", string(pair)))
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, e.providerTimeout)
		rate, err := p.Quote(cctx, base, quote)
		cancel()

		if err != nil || rate <= 0 {
			if err == nil {
				err = domain.ErrInvalidRate
			}
			e.breakers.Failure(name)
			e.setBreakerGauge(name)
			metrics.ProviderRequests.WithLabelValues(name, "error").Inc()
			e.log.Warn("engine.provider_failed",
				zap.String("provider", name),
				zap.String("pair", string(pair)),
				zap.Error(err),
			)
			continue
		}

		e.breakers.Success(name)
		e.setBreakerGauge(name)
		metrics.ProviderRequests.WithLabelValues(name, "success").Inc()
		return domain.RateRecord{
			Pair:      pair,
			BaseRate:  rate,
			Provider:  name,
			FetchedAt: e.clock.Now(),
		}, nil
	}

	return domain.RateRecord{}, fmt.Errorf("%w: %s", domain.ErrNoProviderAvailable, pair)
}

func (e *Engine) setBreakerGauge(name string) {
	var v float64
	if e.breakers.State(name) == breaker.StateOpen {
		v = 1
	}
	metrics.BreakerOpen.WithLabelValues(name).Set(v)
}

func (e *Engine) price(rec domain.RateRecord, amount float64, stale bool) domain.PricedRate {
	e.policyMu.RLock()
	markup := e.policy.Effective(rec.Pair, amount)
	e.policyMu.RUnlock()

	return domain.PricedRate{
		Pair:           rec.Pair,
		BaseRate:       rec.BaseRate,
		RateWithMarkup: rec.BaseRate * (1 + markup),
		Markup:         markup,
		Provider:       rec.Provider,
		Stale:          stale,
		FetchedAt:      rec.FetchedAt,
	}
}

// ConvertAmount prices and converts amount, computes the profit split,
// and hands the record to the conversion logger. Logging failures
// never surface here.
func (e *Engine) ConvertAmount(ctx context.Context, amount float64, from, to domain.Currency, meta domain.ConversionMetadata) (domain.ConversionRecord, error) {
	if amount <= 0 {
		return domain.ConversionRecord{}, domain.ErrInvalidAmount
	}

	var reservedKey string
	if meta.TransactionRef != "" && e.idem != nil {
		key := "fx:conversion:" + meta.TransactionRef
		reserved, err := e.idem.TryReserve(ctx, key)
		switch {
		case err != nil:
			// Dedup is best effort: an unreachable store must not
			// block conversions.
			e.log.Warn("engine.idempotency_unavailable", zap.Error(err))
		case !reserved:
			return domain.ConversionRecord{}, fmt.Errorf("%w: transaction %s already converted", ErrConflict, meta.TransactionRef)
		default:
			reservedKey = key
		}
	}

	priced, err := e.GetRate(ctx, from, to, amount)
	if err != nil {
		// The conversion did not happen; free the reservation so a
		// retry of the same transaction is not a false duplicate.
		e.releaseReservation(ctx, reservedKey)
		return domain.ConversionRecord{}, err
	}

	converted := amount * priced.RateWithMarkup
	rec := domain.ConversionRecord{
		ID:              e.idgen.NewConversionID(),
		Pair:            priced.Pair,
		From:            from,
		To:              to,
		OriginalAmount:  amount,
		ConvertedAmount: converted,
		BaseRate:        priced.BaseRate,
		RateWithMarkup:  priced.RateWithMarkup,
		MarkupPercent:   priced.MarkupPercent(),
		MarkupAmount:    converted - amount*priced.BaseRate,
		Profit:          e.profit.Calculate(amount, priced.BaseRate, priced.RateWithMarkup, to),
		Provider:        priced.Provider,
		Metadata:        meta,
		CreatedAt:       e.clock.Now(),
	}

	if e.sink != nil {
		e.sink.Enqueue(rec)
	}
	metrics.Conversions.WithLabelValues(string(rec.Pair)).Inc()
	e.log.Info("engine.conversion_completed",
		zap.String("conversion_id", rec.ID),
		zap.String("pair", string(rec.Pair)),
		zap.Float64("amount", amount),
		zap.Float64("profit", rec.Profit.Gross),
	)
	return rec, nil
}

func (e *Engine) releaseReservation(ctx context.Context, key string) {
	if key == "" || e.idem == nil {
		return
	}
	if err := e.idem.Release(ctx, key); err != nil {
		e.log.Warn("engine.idempotency_release_failed", zap.String("key", key), zap.Error(err))
	}
}

// AllRates evaluates every supported pair independently; a failing
// pair becomes an error entry and does not abort the rest.
type AllRates struct {
	Rates  map[domain.Pair]domain.PricedRate
	Errors map[domain.Pair]string
	At     time.Time
}

func (e *Engine) GetAllRates(ctx context.Context) AllRates {
	out := AllRates{
		Rates:  make(map[domain.Pair]domain.PricedRate, len(domain.SupportedPairs)),
		Errors: map[domain.Pair]string{},
		At:     e.clock.Now(),
	}
	for _, pair := range domain.SupportedPairs {
		base, quote, _ := pair.Split()
		priced, err := e.GetRate(ctx, base, quote, 0)
		if err != nil {
			out.Errors[pair] = err.Error()
			continue
		}
		out.Rates[pair] = priced
	}
	return out
}

// RefreshPair proactively re-fetches and re-caches one pair, bypassing
// freshness checks. Refreshing USD/NGN also caches the NGN/USD inverse.
func (e *Engine) RefreshPair(ctx context.Context, pair domain.Pair) error {
	if !pair.Supported() {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedPair, pair)
	}
	rec, err := e.fetchBaseRate(ctx, pair)
	if err != nil {
		return err
	}
	if inv := pair.Inverse(); inv.Supported() && pair.Base().IsFiat() {
		e.cache.Set(inv, domain.RateRecord{
			Pair:      inv,
			BaseRate:  1 / rec.BaseRate,
			Provider:  rec.Provider,
			FetchedAt: rec.FetchedAt,
		})
	}
	return nil
}

// PairsOfClass lists supported pairs whose base currency belongs to
// the given asset class; used by the tiered background refresher.
func PairsOfClass(class domain.AssetClass) []domain.Pair {
	var out []domain.Pair
	for _, p := range domain.SupportedPairs {
		if p.Base().Class() == class {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) ProfitStats(ctx context.Context, timeframe string) (domain.ProfitStats, error) {
	if !validTimeframe(timeframe) {
		return domain.ProfitStats{}, fmt.Errorf("%w: %s (want one of %s)", ErrInvalidTimeframe, timeframe, strings.Join(ValidTimeframes, ", "))
	}
	return e.store.ProfitStats(ctx, timeframe)
}

func (e *Engine) UserHistory(ctx context.Context, userID string, limit int) ([]domain.ConversionRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrBadRequest)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return e.store.UserHistory(ctx, userID, limit)
}

func validTimeframe(tf string) bool {
	for _, v := range ValidTimeframes {
		if tf == v {
			return true
		}
	}
	return false
}

// MarkupTable returns a copy of the per-pair markup configuration.
func (e *Engine) MarkupTable() map[domain.Pair]float64 {
	e.policyMu.RLock()
	defer e.policyMu.RUnlock()
	out := make(map[domain.Pair]float64, len(e.policy.PairMarkup))
	for p, m := range e.policy.PairMarkup {
		out[p] = m
	}
	return out
}

// UpdateMarkup applies a bounds-checked admin markup update.
func (e *Engine) UpdateMarkup(pair domain.Pair, markup float64) error {
	e.policyMu.Lock()
	defer e.policyMu.Unlock()
	return e.policy.SetPairMarkup(pair, markup)
}

func (e *Engine) UpdateProfitSplit(split domain.ProfitSplit) error { return e.profit.UpdateSplit(split) }
func (e *Engine) CurrentProfitSplit() domain.ProfitSplit           { return e.profit.Split() }

// Health is the operational snapshot exposed on the health endpoint
// and logged by the periodic health summary task.
type Health struct {
	CacheSize   int
	CachedPairs []domain.Pair
	Providers   []breaker.Snapshot
}

func (e *Engine) Health() Health {
	return Health{
		CacheSize:   e.cache.Len(),
		CachedPairs: e.cache.Keys(),
		Providers:   e.breakers.Snapshots(),
	}
}

// Unhealthy reports whether any provider's circuit is not closed.
func (h Health) Unhealthy() bool {
	for _, p := range h.Providers {
		if p.State != breaker.StateClosed {
			return true
		}
	}
	return false
}

type defaultIDGen struct{}

// NewConversionID mints IDs like CNV_MB3K2J_4F7A21BC.
func (defaultIDGen) NewConversionID() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return strings.ToUpper("CNV_" + ts + "_" + suffix)
}
