// Package memory provides the request-scoped shared memory used during
// multi-agent runs. A SharedMemory instance lives for exactly one request;
// it is never reused across requests.
package memory

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// DefaultCacheSize bounds the Cypher query cache when no capacity is given.
const DefaultCacheSize = 100

// SharedMemory caches per-(db,query) Cypher results with LRU eviction and
// collects per-agent answer fragments for supervisor synthesis. All methods
// are safe for concurrent use by debate workers.
type SharedMemory struct {
	mu       sync.Mutex
	capacity int
	order    *list.List               // front = most recently used
	entries  map[string]*list.Element // fingerprint → element
	results  map[string]string        // db → answer fragment
}

type cacheEntry struct {
	key    string
	result string
}

// New creates a SharedMemory with the given query cache capacity.
// Capacities below 1 fall back to DefaultCacheSize.
func New(capacity int) *SharedMemory {
	if capacity < 1 {
		capacity = DefaultCacheSize
	}
	return &SharedMemory{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		results:  make(map[string]string),
	}
}

// GetCached returns a previously cached query result. A hit refreshes the
// entry's LRU position.
func (m *SharedMemory) GetCached(db, cypher string) (string, bool) {
	key := Fingerprint(db, cypher)

	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return "", false
	}
	m.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).result, true
}

// PutCached stores a query result, evicting the least recently used entry
// when the cache is full.
func (m *SharedMemory) PutCached(db, cypher, result string) {
	key := Fingerprint(db, cypher)

	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		elem.Value.(*cacheEntry).result = result
		m.order.MoveToFront(elem)
		return
	}
	m.entries[key] = m.order.PushFront(&cacheEntry{key: key, result: result})
	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*cacheEntry).key)
	}
}

// PutResult records an agent's answer fragment for the given database.
func (m *SharedMemory) PutResult(db, answer string) {
	m.mu.Lock()
	m.results[db] = answer
	m.mu.Unlock()
}

// Results returns a copy of all recorded answer fragments. The snapshot
// contains every entry written before the call.
func (m *SharedMemory) Results() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.results))
	for db, answer := range m.results {
		out[db] = answer
	}
	return out
}

// Len reports the current query cache size.
func (m *SharedMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Fingerprint derives the cache key for a (db, cypher) pair. The query is
// normalized so that formatting-only differences share one entry.
func Fingerprint(db, cypher string) string {
	sum := sha256.Sum256([]byte(db + ":" + Normalize(cypher)))
	return hex.EncodeToString(sum[:])
}

// Normalize lowercases the query and strips line comments, block comments,
// and trailing whitespace.
func Normalize(cypher string) string {
	stripped := stripBlockComments(cypher)
	lines := strings.Split(stripped, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.ToLower(strings.TrimSpace(strings.Join(out, "\n")))
}

func stripBlockComments(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "/*")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:start])
		end := strings.Index(s[start+2:], "*/")
		if end < 0 {
			return b.String()
		}
		s = s[start+2+end+2:]
	}
}
