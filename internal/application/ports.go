package application

import (
	"context"
	"time"

	"fxcore-service/internal/domain"
)

// RateProvider is the single contract all upstream price sources
// implement. Quote fails on unsupported pairs, transport errors, and
// non-positive rates; bridging (crypto→USD→fiat) is each provider's
// own concern.
type RateProvider interface {
	Name() string
	Quote(ctx context.Context, base, quote domain.Currency) (float64, error)
}

// ConversionSink accepts conversion records for asynchronous durable
// logging. Enqueue must not block and must not fail the conversion path.
type ConversionSink interface {
	Enqueue(rec domain.ConversionRecord)
}

// ConversionStore is the append-only persistence boundary of the
// conversion audit trail.
type ConversionStore interface {
	InsertBatch(ctx context.Context, recs []domain.ConversionRecord) error
	ProfitStats(ctx context.Context, timeframe string) (domain.ProfitStats, error)
	UserHistory(ctx context.Context, userID string, limit int) ([]domain.ConversionRecord, error)
	DeleteOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// IdempotencyStore handles short-lived request deduplication.
type IdempotencyStore interface {
	// TryReserve returns true if key was absent and is now reserved.
	// Returns false if the key already exists (duplicate).
	TryReserve(ctx context.Context, key string) (bool, error)
	// Release frees a reservation whose guarded operation did not
	// complete, so a retry is not treated as a duplicate.
	Release(ctx context.Context, key string) error
}

// NoopIdempotency always succeeds; useful for tests/dev when Redis is disabled.
type NoopIdempotency struct{}

func (NoopIdempotency) TryReserve(context.Context, string) (bool, error) { return true, nil }
func (NoopIdempotency) Release(context.Context, string) error            { return nil }

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface {
	NewConversionID() string
}
