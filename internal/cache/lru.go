package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

// LRU is an in-process Store bounded by entry count. Expired entries are
// dropped lazily when read or when they reach the cold end of the list.
type LRU struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	recency  *list.List // front is most recently used
	now      func() time.Time

	hits, misses, evictions uint64
}

type lruEntry struct {
	key     string
	value   []byte
	expires time.Time // zero means no expiry
}

// LRUStats is a point-in-time view of an LRU store.
type LRUStats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// NewLRU returns an LRU holding at most capacity entries (10000 when
// capacity is not positive).
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LRU{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		recency:  list.New(),
		now:      time.Now,
	}
}

func (l *LRU) Load(_ context.Context, key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.entries[key]
	if !ok {
		l.misses++
		return nil, nil
	}
	e := el.Value.(*lruEntry)
	if l.expired(e) {
		l.unlink(el)
		l.misses++
		return nil, nil
	}
	l.recency.MoveToFront(el)
	l.hits++
	return e.value, nil
}

// Store upserts key. A non-positive ttl keeps the entry until it is evicted.
func (l *LRU) Store(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = l.now().Add(ttl)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.entries[key]; ok {
		e := el.Value.(*lruEntry)
		e.value, e.expires = value, expires
		l.recency.MoveToFront(el)
		return nil
	}

	l.entries[key] = l.recency.PushFront(&lruEntry{key: key, value: value, expires: expires})
	for l.recency.Len() > l.capacity {
		l.unlink(l.recency.Back())
		l.evictions++
	}
	return nil
}

func (l *LRU) Remove(_ context.Context, keys ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		if el, ok := l.entries[k]; ok {
			l.unlink(el)
		}
	}
	return nil
}

func (l *LRU) Purge(_ context.Context, prefix string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for k, el := range l.entries {
		if strings.HasPrefix(k, prefix) {
			l.unlink(el)
			n++
		}
	}
	return n, nil
}

func (l *LRU) Ping(context.Context) error { return nil }

// Close empties the store. It stays usable afterwards.
func (l *LRU) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.entries)
	l.recency.Init()
	return nil
}

func (l *LRU) Stats() LRUStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LRUStats{
		Len:       l.recency.Len(),
		Capacity:  l.capacity,
		Hits:      l.hits,
		Misses:    l.misses,
		Evictions: l.evictions,
	}
}

func (l *LRU) expired(e *lruEntry) bool {
	return !e.expires.IsZero() && !l.now().Before(e.expires)
}

func (l *LRU) unlink(el *list.Element) {
	l.recency.Remove(el)
	delete(l.entries, el.Value.(*lruEntry).key)
}
