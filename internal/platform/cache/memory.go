package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache is the single-process fallback used when REDIS_URL is unset.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	done  chan struct{}
	once  sync.Once
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache(sweepEvery time.Duration) *MemoryCache {
	m := &MemoryCache{
		items: make(map[string]memoryItem),
		done:  make(chan struct{}),
	}
	go m.sweepLoop(sweepEvery)
	return m
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || item.expired(time.Now()) {
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	cp := make([]byte, len(value))
	copy(cp, value)

	m.mu.Lock()
	m.items[key] = memoryItem{value: cp, expiresAt: exp}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	return err == nil, nil
}

func (m *MemoryCache) Clear(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.items {
		if matchPattern(key, pattern) {
			delete(m.items, key)
		}
	}
	return nil
}

func (m *MemoryCache) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryCache) sweepLoop(every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

func (m *MemoryCache) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, item := range m.items {
		if item.expired(now) {
			delete(m.items, key)
		}
	}
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// matchPattern supports "*" and a single trailing wildcard.
func matchPattern(s, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(s, prefix)
	}
	return s == pattern
}
