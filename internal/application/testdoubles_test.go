package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fxcore-service/internal/domain"
)

var errProviderDown = errors.New("provider down")

// fakeProvider returns scripted rates per pair and counts calls.
type fakeProvider struct {
	mu    sync.Mutex
	name  string
	rates map[domain.Pair]float64
	err   error
	calls int
	// block, when set, is closed by the test to release in-flight calls.
	block chan struct{}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Quote(ctx context.Context, base, quote domain.Currency) (float64, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if f.err != nil {
		return 0, f.err
	}
	r, ok := f.rates[domain.NewPair(base, quote)]
	if !ok {
		return 0, fmt.Errorf("no rate for %s/%s", base, quote)
	}
	return r, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu   sync.Mutex
	recs []domain.ConversionRecord
}

func (f *fakeSink) Enqueue(rec domain.ConversionRecord) {
	f.mu.Lock()
	f.recs = append(f.recs, rec)
	f.mu.Unlock()
}

func (f *fakeSink) records() []domain.ConversionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ConversionRecord(nil), f.recs...)
}

type fakeStore struct {
	mu       sync.Mutex
	inserted []domain.ConversionRecord
	insErr   error
	stats    domain.ProfitStats
	history  []domain.ConversionRecord
	deleted  int64
}

func (f *fakeStore) InsertBatch(_ context.Context, recs []domain.ConversionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insErr != nil {
		return f.insErr
	}
	f.inserted = append(f.inserted, recs...)
	return nil
}

func (f *fakeStore) ProfitStats(context.Context, string) (domain.ProfitStats, error) {
	return f.stats, nil
}

func (f *fakeStore) UserHistory(_ context.Context, _ string, limit int) ([]domain.ConversionRecord, error) {
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeStore) DeleteOlderThan(context.Context, int) (int64, error) {
	return f.deleted, nil
}

type fakeIdem struct {
	mu       sync.Mutex
	seen     map[string]bool
	err      error
	released []string
}

func (f *fakeIdem) TryReserve(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeIdem) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.seen, key)
	f.released = append(f.released, key)
	return nil
}

func (f *fakeIdem) releasedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *fakeIDGen) NewConversionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("CNV_TEST_%d", g.n)
}
