package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seocho-project/graphqa/pkg/semantic"
)

func TestEnsureIndexDefaults(t *testing.T) {
	f := newTestServer(t)
	rec := f.do(t, http.MethodPost, "/indexes/fulltext/ensure", map[string]any{
		"create_if_missing": true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[ensureIndexResponse](t, rec)

	// No databases given: every registered user database is ensured.
	assert.Equal(t, []string{"kgfibo", "kgnormal"}, f.indexes.lastDBs)
	require.Len(t, body.Results, 2)
	assert.Equal(t, semantic.DefaultIndexHint, body.Results[0].IndexName)
	assert.Equal(t, defaultIndexLabels, body.Results[0].Labels)
	assert.Equal(t, defaultIndexProperties, body.Results[0].Properties)
	assert.NotEmpty(t, body.RequestID)
}

func TestEnsureIndexExplicitTarget(t *testing.T) {
	f := newTestServer(t)
	rec := f.do(t, http.MethodPost, "/indexes/fulltext/ensure", map[string]any{
		"databases":  []string{"kgnormal"},
		"index_name": "company_names",
		"labels":     []string{"Company"},
		"properties": []string{"name"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[ensureIndexResponse](t, rec)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "company_names", body.Results[0].IndexName)
	assert.Equal(t, "kgnormal", body.Results[0].Database)
}

func TestEnsureIndexRejectsViewer(t *testing.T) {
	f := newTestServer(t)
	rec := f.do(t, http.MethodPost, "/indexes/fulltext/ensure", map[string]any{
		"role": "viewer",
	})

	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeJSON[errorResponse](t, rec)
	assert.Equal(t, codePolicyDenied, body.ErrorCode)
	assert.Empty(t, f.indexes.lastDBs)
}

func TestEnsureIndexUnknownDatabase(t *testing.T) {
	f := newTestServer(t)
	rec := f.do(t, http.MethodPost, "/indexes/fulltext/ensure", map[string]any{
		"databases": []string{"nosuchdb"},
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeJSON[errorResponse](t, rec)
	assert.Equal(t, codeNotRegistered, body.ErrorCode)
}
