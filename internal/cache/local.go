package cache

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// entryOverhead approximates the bookkeeping bytes of one local entry.
const entryOverhead = 64

// localItem is what the Local Tier keeps in go-cache. The envelope fields are
// fixed at write time; hits and lastAccess change on every read.
type localItem struct {
	entry      Entry
	size       int64
	hits       atomic.Int64
	lastAccess atomic.Int64
}

func (i *localItem) snapshot() Entry {
	e := i.entry
	e.Hits = i.hits.Load()
	return e
}

// LocalTier is the in-process tier backed by patrickmn/go-cache.
type LocalTier struct {
	items      *gocache.Cache
	maxEntries int
	evictions  atomic.Int64
	evictMu    sync.Mutex
	// writeMu orders Set against the delete of an expired entry so a reader
	// never removes a value written after its own lookup.
	writeMu sync.Mutex
}

// NewLocalTier creates a local tier. maxEntries <= 0 leaves it unbounded.
// Expired entries are removed on read and by Cleanup; go-cache's own janitor
// stays off.
func NewLocalTier(maxEntries int) *LocalTier {
	return &LocalTier{
		items:      gocache.New(gocache.NoExpiration, 0),
		maxEntries: maxEntries,
	}
}

// Get returns the payload stored at key. Expired entries are removed.
func (l *LocalTier) Get(key string) (any, bool) {
	item, ok := l.lookup(key)
	if !ok {
		return nil, false
	}
	item.hits.Add(1)
	item.lastAccess.Store(time.Now().UnixNano())
	return item.entry.Data, true
}

// Entry returns the envelope at key without counting a hit.
func (l *LocalTier) Entry(key string) (Entry, bool) {
	item, ok := l.lookup(key)
	if !ok {
		return Entry{}, false
	}
	return item.snapshot(), true
}

func (l *LocalTier) lookup(key string) (*localItem, bool) {
	v, found := l.items.Get(key)
	if !found {
		// go-cache hides expired items from Get but keeps them until deleted.
		l.dropExpired(key, nil)
		return nil, false
	}

	item := v.(*localItem)
	if !item.entry.Valid(time.Now()) {
		l.dropExpired(key, item)
		return nil, false
	}
	return item, true
}

// dropExpired deletes key only if it still holds stale, or nothing go-cache
// considers live when stale is nil.
func (l *LocalTier) dropExpired(key string, stale *localItem) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	v, found := l.items.Get(key)
	if !found || v.(*localItem) == stale {
		l.items.Delete(key)
	}
}

// Set stores value under key, replacing any previous entry and its counters.
func (l *LocalTier) Set(key string, value any, ttl time.Duration) {
	item := &localItem{
		entry: NewEntry(value, ttl),
		size:  int64(len(key)) + payloadSize(value) + entryOverhead,
	}
	item.lastAccess.Store(item.entry.CreatedAt.UnixNano())

	expiration := ttl
	if ttl <= 0 {
		expiration = gocache.NoExpiration
	}
	l.writeMu.Lock()
	l.items.Set(key, item, expiration)
	l.writeMu.Unlock()

	if l.maxEntries > 0 && l.items.ItemCount() > l.maxEntries {
		l.evict(key)
	}
}

// evict drops expired entries, then the least recently used ones, until the
// tier is back within maxEntries. keep is never evicted.
func (l *LocalTier) evict(keep string) {
	l.evictMu.Lock()
	defer l.evictMu.Unlock()

	l.items.DeleteExpired()
	overflow := l.items.ItemCount() - l.maxEntries
	if overflow <= 0 {
		return
	}

	type candidate struct {
		key        string
		lastAccess int64
	}
	candidates := make([]candidate, 0, l.items.ItemCount())
	for k, it := range l.items.Items() {
		if k == keep {
			continue
		}
		candidates = append(candidates, candidate{k, it.Object.(*localItem).lastAccess.Load()})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccess < candidates[j].lastAccess
	})

	for i := 0; i < overflow && i < len(candidates); i++ {
		l.items.Delete(candidates[i].key)
		l.evictions.Add(1)
	}
}

// Delete removes key.
func (l *LocalTier) Delete(key string) {
	l.items.Delete(key)
}

// Clear removes every entry.
func (l *LocalTier) Clear() {
	l.items.Flush()
}

// Keys returns the sorted live keys containing pattern.
func (l *LocalTier) Keys(pattern string) []string {
	keys := make([]string, 0)
	for k := range l.items.Items() {
		if strings.Contains(k, pattern) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Cleanup removes expired entries and returns how many were dropped.
func (l *LocalTier) Cleanup() int {
	l.evictMu.Lock()
	defer l.evictMu.Unlock()

	before := l.items.ItemCount()
	l.items.DeleteExpired()
	removed := before - l.items.ItemCount()
	if removed < 0 {
		return 0
	}
	return removed
}

// Usage returns the live key count and their approximate byte footprint.
func (l *LocalTier) Usage() (keys int, bytes int64) {
	items := l.items.Items()
	for _, it := range items {
		bytes += it.Object.(*localItem).size
	}
	return len(items), bytes
}

// Evictions returns how many entries were dropped to respect maxEntries.
func (l *LocalTier) Evictions() int64 {
	return l.evictions.Load()
}

func payloadSize(value any) int64 {
	switch v := value.(type) {
	case json.RawMessage:
		return int64(len(v))
	case []byte:
		return int64(len(v))
	case string:
		return int64(len(v)) + 2
	}
	data, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return int64(len(data))
}
