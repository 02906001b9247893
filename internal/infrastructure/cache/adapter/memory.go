package adapter

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"go-directchat/internal/infrastructure/cache/port"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means the cache-wide TTL only
}

// MemoryCache is a process-local port.Cache used when REDIS_URL is unset.
// It holds at most size entries, evicting the least recently used, and the
// LRU drops every entry after maxTTL whether or not it is read again. A
// shorter per-key TTL passed to Set is checked on read.
type MemoryCache struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryCache builds a cache bounded to size entries. maxTTL caps every
// entry's lifetime; zero or negative means entries only leave by eviction.
func NewMemoryCache(size int, maxTTL time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

var _ port.Cache = (*MemoryCache)(nil)

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return "", port.ErrMiss
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return "", port.ErrMiss
	}
	return e.value, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.lru.Add(key, e)
	return nil
}

func (m *MemoryCache) Del(_ context.Context, keys ...string) (int64, error) {
	var n int64
	for _, k := range keys {
		if m.lru.Remove(k) {
			n++
		}
	}
	return n, nil
}

// Len reports the number of entries held, expired or not yet purged.
func (m *MemoryCache) Len() int { return m.lru.Len() }

func (m *MemoryCache) Ping(context.Context) error { return nil }

func (m *MemoryCache) Close() error {
	m.lru.Purge()
	return nil
}
