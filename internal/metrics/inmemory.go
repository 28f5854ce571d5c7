package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	BookmarksCreated    uint64
	BookmarkCacheHits   uint64
	BookmarkCacheMisses uint64
	RequestCount        uint64
	AuthAttempts        map[string]uint64 // "method/outcome"
	EventsPublished     map[string]uint64
	EventsProcessed     map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	bookmarksCreated    uint64
	bookmarkCacheHits   uint64
	bookmarkCacheMisses uint64
	requestCount        uint64

	mu              sync.Mutex
	authAttempts    map[string]uint64
	eventsPublished map[string]uint64
	eventsProcessed map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		authAttempts:    make(map[string]uint64),
		eventsPublished: make(map[string]uint64),
		eventsProcessed: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		BookmarksCreated:    atomic.LoadUint64(&m.bookmarksCreated),
		BookmarkCacheHits:   atomic.LoadUint64(&m.bookmarkCacheHits),
		BookmarkCacheMisses: atomic.LoadUint64(&m.bookmarkCacheMisses),
		RequestCount:        atomic.LoadUint64(&m.requestCount),
		AuthAttempts:        copyCounts(m.authAttempts),
		EventsPublished:     copyCounts(m.eventsPublished),
		EventsProcessed:     copyCounts(m.eventsProcessed),
	}
}

// IncBookmarkCreated increments the bookmark created counter.
func (m *InMemoryRecorder) IncBookmarkCreated() {
	atomic.AddUint64(&m.bookmarksCreated, 1)
}

// IncBookmarkCacheHit increments the cache hit counter.
func (m *InMemoryRecorder) IncBookmarkCacheHit() {
	atomic.AddUint64(&m.bookmarkCacheHits, 1)
}

// IncBookmarkCacheMiss increments the cache miss counter.
func (m *InMemoryRecorder) IncBookmarkCacheMiss() {
	atomic.AddUint64(&m.bookmarkCacheMisses, 1)
}

// IncAuthAttempt counts an authentication attempt.
func (m *InMemoryRecorder) IncAuthAttempt(method, outcome string) {
	m.inc(m.authAttempts, method+"/"+outcome)
}

// ObserveRequest counts a served request.
func (m *InMemoryRecorder) ObserveRequest(string, string, int, time.Duration) {
	atomic.AddUint64(&m.requestCount, 1)
}

// IncEventPublished counts a publish attempt by status.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	m.inc(m.eventsPublished, status)
}

// IncEventProcessed counts a consumed event by status.
func (m *InMemoryRecorder) IncEventProcessed(status string) {
	m.inc(m.eventsProcessed, status)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
