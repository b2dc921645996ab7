// Package convlog batches conversion records and flushes them to the
// durable store in the background. A conversion never waits on, and
// never fails because of, the audit trail.
package convlog

import (
	"context"
	"sync"
	"time"

	"fxcore-service/internal/application"
	"fxcore-service/internal/domain"
	"fxcore-service/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

var _ application.ConversionSink = (*Logger)(nil)

const (
	DefaultBatchSize     = 50
	DefaultFlushInterval = 30 * time.Second
)

type Logger struct {
	store         application.ConversionStore
	log           *zap.Logger
	batchSize     int
	flushInterval time.Duration

	mu    sync.Mutex
	queue []domain.ConversionRecord

	// notify wakes the run loop when the queue reaches batchSize.
	notify chan struct{}
}

type Option func(*Logger)

func WithBatchSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.flushInterval = d
		}
	}
}

func WithLogger(log *zap.Logger) Option { return func(l *Logger) { l.log = log } }

func New(store application.ConversionStore, opts ...Option) *Logger {
	l := &Logger{
		store:         store,
		log:           zap.NewNop(),
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		notify:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enqueue accepts one record without blocking. The batch is flushed by
// the run loop when it reaches batchSize or when the flush interval
// fires, whichever comes first.
func (l *Logger) Enqueue(rec domain.ConversionRecord) {
	l.mu.Lock()
	l.queue = append(l.queue, rec)
	full := len(l.queue) >= l.batchSize
	metrics.ConvlogQueueDepth.Set(float64(len(l.queue)))
	l.mu.Unlock()

	if full {
		select {
		case l.notify <- struct{}{}:
		default:
		}
	}
}

// Run flushes until ctx is canceled, then drains what is left on a
// short grace window.
func (l *Logger) Run(ctx context.Context) {
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := l.Drain(drainCtx); err != nil {
				l.log.Error("convlog.final_drain_failed", zap.Error(err), zap.Int("pending", l.Pending()))
			}
			cancel()
			return
		case <-l.notify:
			l.flushOnce(ctx)
		case <-ticker.C:
			l.flushOnce(ctx)
		}
	}
}

func (l *Logger) flushOnce(ctx context.Context) {
	if err := l.Flush(ctx); err != nil {
		l.log.Warn("convlog.flush_failed", zap.Error(err), zap.Int("pending", l.Pending()))
	}
}

// Flush writes every queued record in one batch. On failure the batch
// is put back at the front of the queue, order intact; InsertBatch is
// conflict-safe so a partial write is fine to replay.
func (l *Logger) Flush(ctx context.Context) error {
	l.mu.Lock()
	if len(l.queue) == 0 {
		l.mu.Unlock()
		return nil
	}
	batch := l.queue
	l.queue = nil
	metrics.ConvlogQueueDepth.Set(0)
	l.mu.Unlock()

	if err := l.store.InsertBatch(ctx, batch); err != nil {
		l.mu.Lock()
		l.queue = append(batch, l.queue...)
		metrics.ConvlogQueueDepth.Set(float64(len(l.queue)))
		l.mu.Unlock()
		metrics.ConvlogFlushes.WithLabelValues("error").Inc()
		return err
	}
	metrics.ConvlogFlushes.WithLabelValues("success").Inc()
	l.log.Debug("convlog.flushed", zap.Int("records", len(batch)))
	return nil
}

// Drain flushes repeatedly until the queue is empty. Used on shutdown
// and in tests that need deterministic persistence.
func (l *Logger) Drain(ctx context.Context) error {
	for l.Pending() > 0 {
		if err := l.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (l *Logger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
