// Package ratecache holds the last fetched base rate per pair in a
// bounded LRU store. Freshness is the caller's concern: an expired
// entry stays in the cache and may still serve as a last resort when
// every provider is down.
package ratecache

import (
	"fxcore-service/internal/domain"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCapacity = 100

type Cache struct {
	lru *lru.Cache[domain.Pair, domain.RateRecord]
}

func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l, err := lru.New[domain.Pair, domain.RateRecord](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Get returns the cached record and marks it most recently used.
func (c *Cache) Get(pair domain.Pair) (domain.RateRecord, bool) {
	return c.lru.Get(pair)
}

// Set stores a record, evicting the least recently used entry when
// capacity is exceeded. Invalid records are ignored.
func (c *Cache) Set(pair domain.Pair, rec domain.RateRecord) {
	if !rec.Valid() {
		return
	}
	c.lru.Add(pair, rec)
}

func (c *Cache) Len() int { return c.lru.Len() }

func (c *Cache) Keys() []domain.Pair { return c.lru.Keys() }

func (c *Cache) Purge() { c.lru.Purge() }
