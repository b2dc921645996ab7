// Package bootstrap wires configuration into runnable components for
// the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"fxcore-service/internal/application"
	"fxcore-service/internal/breaker"
	"fxcore-service/internal/config"
	"fxcore-service/internal/domain"
	"fxcore-service/internal/infrastructure/convlog"
	"fxcore-service/internal/infrastructure/httpx"
	"fxcore-service/internal/infrastructure/logx"
	"fxcore-service/internal/infrastructure/pg"
	"fxcore-service/internal/infrastructure/provider"
	redisstore "fxcore-service/internal/infrastructure/redis"
	"fxcore-service/internal/infrastructure/worker"
	"fxcore-service/internal/ratecache"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BuildStore connects to Postgres and runs migrations.
func BuildStore(ctx context.Context, cfg config.Config) (*pg.DB, application.ConversionStore, func(), error) {
	log := logx.L()
	if cfg.DatabaseURL == "" {
		return nil, nil, func() {}, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, func() {}, err
	}
	if err := pg.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, func() {}, err
	}
	cleanup := func() {
		log.Info("closing pg")
		db.Close()
	}
	return db, pg.NewConversionRepo(db), cleanup, nil
}

// BuildIdempotency returns the Redis-backed dedup store, or a noop
// when REDIS_ADDR is unset.
func BuildIdempotency(cfg config.Config) (application.IdempotencyStore, func()) {
	if cfg.RedisAddr == "" {
		return application.NoopIdempotency{}, func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return redisstore.New(rdb, cfg.RedisTTL), func() { _ = rdb.Close() }
}

// BuildProviders assembles the fallback chain in priority order:
// binance, chainlink, coingecko. PROVIDER_MODE=fake swaps in a
// scripted provider for local development.
func BuildProviders(cfg config.Config) []application.RateProvider {
	log := logx.L()
	if cfg.ProviderMode == "fake" {
		return []application.RateProvider{provider.NewFake("fake", fakeRates())}
	}

	client := &httpx.Client{HTTP: &http.Client{Timeout: cfg.ProviderTimeout}}
	providers := []application.RateProvider{
		provider.NewBinance(client, cfg.BinanceAPIBase, cfg.FiatAPIBase, cfg.FallbackUSDNGN, log),
	}
	if cl, err := provider.NewChainlink(cfg.BaseRPCURL, cfg.FiatAPIBase, cfg.FallbackUSDNGN, log); err != nil {
		log.Warn("bootstrap.chainlink_unavailable", zap.String("rpc", cfg.BaseRPCURL), zap.Error(err))
	} else {
		providers = append(providers, cl)
	}
	providers = append(providers,
		provider.NewCoinGecko(client, cfg.CoinGeckoAPIBase, "", cfg.FallbackUSDNGN, log),
	)
	return providers
}

// BuildEngine wires the pricing core with its cache, breakers, and
// profit accounting.
func BuildEngine(
	cfg config.Config,
	providers []application.RateProvider,
	store application.ConversionStore,
	sink application.ConversionSink,
	idem application.IdempotencyStore,
) (*application.Engine, error) {
	cache, err := ratecache.New(cfg.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("rate cache: %w", err)
	}
	profit, err := application.NewProfitCalculator(domain.DefaultProfitSplit())
	if err != nil {
		return nil, err
	}
	breakers := breaker.NewRegistry(cfg.BreakerThreshold, cfg.BreakerReset)

	return application.NewEngine(providers, cache, breakers, profit, store, sink,
		application.WithIdempotency(idem),
		application.WithLogger(logx.L()),
		application.WithProviderTimeout(cfg.ProviderTimeout),
	), nil
}

// BuildConvlog returns the batching conversion logger; the caller owns
// its Run loop.
func BuildConvlog(cfg config.Config, store application.ConversionStore) *convlog.Logger {
	return convlog.New(store,
		convlog.WithBatchSize(cfg.ConvlogBatchSize),
		convlog.WithFlushInterval(cfg.ConvlogFlushInterval),
		convlog.WithLogger(logx.L()),
	)
}

// BuildRefresher returns the cache warm-up loop.
func BuildRefresher(cfg config.Config, eng *application.Engine) *worker.Refresher {
	return worker.NewRefresher(eng, logx.L(),
		worker.WithIntervals(cfg.StableRefresh, cfg.CryptoRefresh, cfg.FiatRefresh),
		worker.WithHealthInterval(cfg.HealthInterval),
	)
}

// BuildCleanup returns the retention cron worker.
func BuildCleanup(cfg config.Config, store application.ConversionStore) *worker.Cleanup {
	return worker.NewCleanup(store, logx.L(), cfg.CleanupSchedule, cfg.RetentionDays)
}

func fakeRates() map[domain.Pair]float64 {
	return map[domain.Pair]float64{
		"USDC/NGN": 1500, "USDT/NGN": 1499, "ETH/NGN": 5_000_000, "BTC/NGN": 100_000_000,
		"USDC/USD": 1, "ETH/USD": 3200, "BTC/USD": 65_000,
		"NGN/USD": 0.00065, "USD/NGN": 1540,
	}
}
