package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCypherCachedServesRepeatsFromMemory(t *testing.T) {
	q := &fakeQuerier{contains: map[string][]map[string]any{
		"kgnormal": {{"label": "Company", "count": float64(3)}},
	}}
	rc := newRunContext()

	const cypher = "MATCH (n) RETURN labels(n)[0] AS label, count(*) AS count"
	first, err := runCypherCached(context.Background(), q, rc, "kgnormal", cypher, nil)
	require.NoError(t, err)
	second, err := runCypherCached(context.Background(), q, rc, "kgnormal", cypher, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, q.cypherLog, 1, "repeated query must be served from shared memory")
}

func TestRunCypherCachedKeyIncludesParams(t *testing.T) {
	q := &fakeQuerier{contains: map[string][]map[string]any{
		"kgnormal": {{"entity": "Acme"}},
	}}
	rc := newRunContext()

	const cypher = "MATCH (n) WHERE elementId(n) = $node_id RETURN n"
	_, err := runCypherCached(context.Background(), q, rc, "kgnormal", cypher, map[string]any{"node_id": "4:a:1"})
	require.NoError(t, err)
	_, err = runCypherCached(context.Background(), q, rc, "kgnormal", cypher, map[string]any{"node_id": "4:a:2"})
	require.NoError(t, err)

	assert.Len(t, q.cypherLog, 2, "the same statement pinned to another node is a different query")
}

func TestRunCypherCachedWithoutMemoryPassesThrough(t *testing.T) {
	q := &fakeQuerier{contains: map[string][]map[string]any{
		"kgnormal": {{"entity": "Acme"}},
	}}

	for i := 0; i < 2; i++ {
		_, err := runCypherCached(context.Background(), q, nil, "kgnormal", "MATCH (n) RETURN n LIMIT 1", nil)
		require.NoError(t, err)
	}
	assert.Len(t, q.cypherLog, 2)
}

func TestSpecialistRepeatQueriesHitGatewayOnce(t *testing.T) {
	q := &fakeQuerier{contains: map[string][]map[string]any{
		"kgnormal": {{"label": "Resource", "count": float64(5)}},
	}}
	rc := newRunContext()

	lpg := NewLPGSpecialist(q, 0, nil)
	res := &Resolution{}
	lpg.Run(context.Background(), []string{"kgnormal"}, res, rc)
	lpg.Run(context.Background(), []string{"kgnormal"}, res, rc)
	assert.Len(t, q.cypherLog, 1, "second identical run must reuse the cached rows")

	rdf := NewRDFSpecialist(q, 0, nil)
	rdf.Run(context.Background(), []string{"kgnormal"}, res, rc)
	rdf.Run(context.Background(), []string{"kgnormal"}, res, rc)
	assert.Len(t, q.cypherLog, 2, "the overview query runs once across both passes")
}
