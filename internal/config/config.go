package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Common
	Env      string
	LogLevel string
	// API
	Port        string
	DatabaseURL string
	// Providers
	ProviderMode     string // "live" or "fake"
	BinanceAPIBase   string
	CoinGeckoAPIBase string
	BaseRPCURL       string
	FiatAPIBase      string
	FallbackUSDNGN   float64
	ProviderTimeout  time.Duration
	// Circuit breakers
	BreakerThreshold int
	BreakerReset     time.Duration
	// Rate cache
	CacheCapacity int
	// Conversion logger
	ConvlogBatchSize     int
	ConvlogFlushInterval time.Duration
	// Retention
	RetentionDays   int
	CleanupSchedule string
	// Background refresh
	StableRefresh  time.Duration
	CryptoRefresh  time.Duration
	FiatRefresh    time.Duration
	HealthInterval time.Duration
	// Redis (conversion dedup)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func floatDef(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func secondsDef(key string, def time.Duration) time.Duration {
	return time.Duration(atoiDef(getEnv(key, ""), int(def.Seconds()))) * time.Second
}

// Load reads environment variables and applies defaults.
func Load() Config {
	return Config{
		Env:                  getEnv("ENV", "local"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		Port:                 getEnv("PORT", "8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		ProviderMode:         getEnv("PROVIDER_MODE", "live"),
		BinanceAPIBase:       getEnv("BINANCE_API_BASE", "https://api.binance.com"),
		CoinGeckoAPIBase:     getEnv("COINGECKO_API_BASE", "https://api.coingecko.com"),
		BaseRPCURL:           getEnv("BASE_RPC_URL", "https://mainnet.base.org"),
		FiatAPIBase:          getEnv("FIAT_API_BASE", "https://open.er-api.com/v6/latest/USD"),
		FallbackUSDNGN:       floatDef(getEnv("FALLBACK_USD_NGN_RATE", ""), 1550),
		ProviderTimeout:      secondsDef("PROVIDER_TIMEOUT_S", 10*time.Second),
		BreakerThreshold:     atoiDef(getEnv("BREAKER_FAILURE_THRESHOLD", ""), 3),
		BreakerReset:         secondsDef("BREAKER_RESET_TIMEOUT_S", time.Minute),
		CacheCapacity:        atoiDef(getEnv("RATE_CACHE_CAPACITY", ""), 100),
		ConvlogBatchSize:     atoiDef(getEnv("CONVLOG_BATCH_SIZE", ""), 50),
		ConvlogFlushInterval: secondsDef("CONVLOG_FLUSH_INTERVAL_S", 30*time.Second),
		RetentionDays:        atoiDef(getEnv("CONVERSION_RETENTION_DAYS", ""), 90),
		CleanupSchedule:      getEnv("CLEANUP_CRON", "0 3 * * *"),
		StableRefresh:        secondsDef("REFRESH_STABLE_S", 3*time.Minute),
		CryptoRefresh:        secondsDef("REFRESH_CRYPTO_S", time.Minute),
		FiatRefresh:          secondsDef("REFRESH_FIAT_S", 5*time.Minute),
		HealthInterval:       secondsDef("HEALTH_SUMMARY_S", 30*time.Second),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              atoiDef(getEnv("REDIS_DB", "0"), 0),
		RedisTTL:             time.Duration(atoiDef(getEnv("IDEMPOTENCY_TTL_MS", "86400000"), 86400000)) * time.Millisecond,
	}
}
