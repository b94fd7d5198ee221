package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetCached(t *testing.T) {
	m := New(10)

	m.PutCached("kgnormal", "MATCH (n) RETURN n LIMIT 5", "[{...}]")

	result, hit := m.GetCached("kgnormal", "MATCH (n) RETURN n LIMIT 5")
	require.True(t, hit)
	assert.Equal(t, "[{...}]", result)

	_, hit = m.GetCached("kgfibo", "MATCH (n) RETURN n LIMIT 5")
	assert.False(t, hit, "cache keys are database-scoped")
}

func TestNormalizationSharesEntries(t *testing.T) {
	m := New(10)

	m.PutCached("kgnormal", "MATCH (n) RETURN n   \n", "rows")

	tests := []struct {
		name  string
		query string
	}{
		{"trailing whitespace", "MATCH (n) RETURN n"},
		{"case", "match (n) return n"},
		{"line comment", "MATCH (n) RETURN n // fetch all"},
		{"block comment", "MATCH (n) /* all nodes */ RETURN n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, hit := m.GetCached("kgnormal", tt.query)
			require.True(t, hit)
			assert.Equal(t, "rows", result)
		})
	}
}

func TestLRUEviction(t *testing.T) {
	m := New(3)

	for i := 0; i < 3; i++ {
		m.PutCached("db", fmt.Sprintf("QUERY %d", i), fmt.Sprintf("r%d", i))
	}

	// Touch QUERY 0 so QUERY 1 becomes the eviction candidate.
	_, hit := m.GetCached("db", "QUERY 0")
	require.True(t, hit)

	m.PutCached("db", "QUERY 3", "r3")

	_, hit = m.GetCached("db", "QUERY 1")
	assert.False(t, hit, "least recently used entry should be evicted")
	_, hit = m.GetCached("db", "QUERY 0")
	assert.True(t, hit)
	_, hit = m.GetCached("db", "QUERY 3")
	assert.True(t, hit)
	assert.Equal(t, 3, m.Len())
}

func TestPutCachedOverwrites(t *testing.T) {
	m := New(2)
	m.PutCached("db", "Q", "old")
	m.PutCached("db", "Q", "new")

	result, hit := m.GetCached("db", "Q")
	require.True(t, hit)
	assert.Equal(t, "new", result)
	assert.Equal(t, 1, m.Len())
}

func TestResultsSnapshot(t *testing.T) {
	m := New(10)
	m.PutResult("kgnormal", "answer a")
	m.PutResult("kgfibo", "answer b")

	results := m.Results()
	assert.Equal(t, map[string]string{
		"kgnormal": "answer a",
		"kgfibo":   "answer b",
	}, results)

	// The snapshot is a copy.
	results["kgnormal"] = "mutated"
	fresh := m.Results()
	assert.Equal(t, "answer a", fresh["kgnormal"])
}

func TestConcurrentAccess(t *testing.T) {
	m := New(50)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q := fmt.Sprintf("QUERY %d", n)
			m.PutCached("db", q, "r")
			m.GetCached("db", q)
			m.PutResult(fmt.Sprintf("db%d", n), "fragment")
			m.Results()
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.Results(), 20)
}

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint("db", "MATCH (n) RETURN n")
	b := Fingerprint("db", "match (n) return n  ")
	c := Fingerprint("other", "MATCH (n) RETURN n")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
