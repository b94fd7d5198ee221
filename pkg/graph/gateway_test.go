package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardReadOnly(t *testing.T) {
	allowed := []struct {
		name   string
		cypher string
	}{
		{"match return", "MATCH (n:Company) RETURN n LIMIT 5"},
		{"unwind", "UNWIND $ids AS id MATCH (n) WHERE elementId(n) = id RETURN n"},
		{"procedure call", "CALL db.labels() YIELD label RETURN label"},
		{"fulltext", `CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score RETURN node`},
		{"mutation in comment", "MATCH (n) RETURN n // CREATE (m) would mutate"},
		{"show indexes", `SHOW INDEXES YIELD name, type WHERE type = "FULLTEXT" RETURN name`},
	}
	for _, tt := range allowed {
		t.Run("allows "+tt.name, func(t *testing.T) {
			assert.NoError(t, GuardReadOnly("kgnormal", tt.cypher))
		})
	}

	rejected := []struct {
		name   string
		cypher string
	}{
		{"create", "CREATE (n:Company {name: 'x'})"},
		{"merge", "MERGE (n:Company {name: 'x'}) RETURN n"},
		{"prefixed delete", "MATCH (n) DETACH DELETE n"},
		{"set", "MATCH (n) SET n.flag = true RETURN n"},
		{"remove", "MATCH (n) REMOVE n.flag RETURN n"},
		{"drop", "DROP INDEX entity_fulltext"},
		{"load csv", "LOAD CSV FROM 'file:///x.csv' AS row RETURN row"},
		{"batched transactions", "CALL { MATCH (n) RETURN n } IN TRANSACTIONS OF 100 ROWS RETURN 1"},
		{"lowercase", "match (n) delete n"},
		{"empty", "   "},
	}
	for _, tt := range rejected {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			err := GuardReadOnly("kgnormal", tt.cypher)
			require.Error(t, err)
			assert.Equal(t, KindForbidden, KindOf(err))
		})
	}
}

func TestFulltextIndexDDL(t *testing.T) {
	ddl := FulltextIndexDDL("entity_fulltext", []string{"Company", "Person"}, []string{"name", "alias"})
	assert.Equal(t,
		"CREATE FULLTEXT INDEX entity_fulltext IF NOT EXISTS FOR (n:Company|Person) ON EACH [n.name, n.alias]",
		ddl)
}

func TestLuceneQuery(t *testing.T) {
	assert.Equal(t, `Acme OR Globex`, luceneQuery([]string{"Acme", "Globex"}))
	assert.Equal(t, `a\:b\*`, luceneQuery([]string{"a:b*"}))
	assert.Equal(t, "", luceneQuery([]string{"  ", ""}))
}

func TestSchemaString(t *testing.T) {
	s := Schema{
		Database:          "kgnormal",
		Labels:            []string{"Company", "Person"},
		RelationshipTypes: []string{"OWNS"},
	}
	rendered := s.String()
	assert.Contains(t, rendered, "Database: kgnormal")
	assert.Contains(t, rendered, "Node labels: Company, Person")
	assert.Contains(t, rendered, "Relationship types: OWNS")
	assert.Contains(t, rendered, "Property keys: (none)")
}

func TestKindOf(t *testing.T) {
	err := &Error{Kind: KindUnreachable, Database: "kgnormal", Err: assert.AnError}
	assert.Equal(t, KindUnreachable, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
}
