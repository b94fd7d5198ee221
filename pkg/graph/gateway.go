// Package graph is the only component that talks to Neo4j. Every call opens
// one session bound to exactly one database; sessions are never reused
// across calls, which keeps failures contained to the call that hit them.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/registry"
)

// DefaultQueryTimeout bounds a single gateway call when no timeout is
// configured.
const DefaultQueryTimeout = 10 * time.Second

// CandidateHit is one fulltext match. NodeID is the driver's elementId —
// legacy integer ids are never exposed.
type CandidateHit struct {
	NodeID      string
	Score       float64
	Labels      []string
	DisplayName string
}

// Gateway executes read-only Cypher, fulltext lookups, and schema probes
// against a Neo4j deployment.
type Gateway struct {
	driver  neo4j.DriverWithContext
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Gateway. A timeout below 1ms falls back to
// DefaultQueryTimeout.
func New(driver neo4j.DriverWithContext, timeout time.Duration, logger *slog.Logger) *Gateway {
	if timeout < time.Millisecond {
		timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{driver: driver, timeout: timeout, logger: logger.With("component", "graph")}
}

// RunCypher executes a read-only statement and returns one map per record.
// Mutating statements are rejected before any I/O.
func (g *Gateway) RunCypher(ctx context.Context, db, cypher string, params map[string]any) ([]map[string]any, error) {
	if err := GuardReadOnly(db, cypher); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: db,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer func() {
		if err := session.Close(ctx); err != nil {
			g.logger.Warn("failed to close session", "db", db, "error", err)
		}
	}()

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(records))
		for _, record := range records {
			out = append(out, record.AsMap())
		}
		return out, nil
	})
	if err != nil {
		ge := classify(db, err)
		g.logger.Warn("cypher query failed", "db", db, "kind", string(ge.Kind), "error", err)
		return nil, ge
	}
	return rows.([]map[string]any), nil
}

// FulltextSearch queries a fulltext index and returns scored hits.
func (g *Gateway) FulltextSearch(ctx context.Context, db, index string, terms []string, limit int) ([]CandidateHit, error) {
	if err := registry.ValidateLabel(index); err != nil {
		return nil, &Error{Kind: KindForbidden, Database: db, Err: err}
	}
	if limit < 1 {
		limit = 10
	}
	query := luceneQuery(terms)
	if query == "" {
		return nil, nil
	}

	rows, err := g.RunCypher(ctx, db,
		`CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score
		 RETURN elementId(node) AS node_id, score, labels(node) AS labels,
		        coalesce(node.name, node.title, node.id, node.uri, toString(score)) AS display_name
		 LIMIT $limit`,
		map[string]any{"index": index, "query": query, "limit": limit})
	if err != nil {
		return nil, err
	}

	hits := make([]CandidateHit, 0, len(rows))
	for _, row := range rows {
		hit := CandidateHit{}
		hit.NodeID, _ = row["node_id"].(string)
		hit.Score, _ = row["score"].(float64)
		hit.DisplayName, _ = row["display_name"].(string)
		if raw, ok := row["labels"].([]any); ok {
			for _, l := range raw {
				if s, ok := l.(string); ok {
					hit.Labels = append(hit.Labels, s)
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// ListFulltextIndexes returns the names of fulltext indexes in the database.
func (g *Gateway) ListFulltextIndexes(ctx context.Context, db string) ([]string, error) {
	rows, err := g.RunCypher(ctx, db,
		`SHOW INDEXES YIELD name, type WHERE type = "FULLTEXT" RETURN name`, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// EnsureFulltextIndex checks for the named index and optionally creates it.
// This is the one sanctioned DDL path in the system; identifiers are
// validated before being interpolated into the statement.
func (g *Gateway) EnsureFulltextIndex(ctx context.Context, db, index string, labels, properties []string, createIfMissing bool) (models.EnsureResult, error) {
	res := models.EnsureResult{IndexName: index, Database: db}

	if err := registry.ValidateLabel(index); err != nil {
		return res, &Error{Kind: KindForbidden, Database: db, Err: err}
	}
	labels, err := registry.ValidateIdentifiers(labels, "labels")
	if err != nil {
		return res, &Error{Kind: KindForbidden, Database: db, Err: err}
	}
	properties, err = registry.ValidateIdentifiers(properties, "properties")
	if err != nil {
		return res, &Error{Kind: KindForbidden, Database: db, Err: err}
	}
	res.Labels, res.Properties = labels, properties

	existing, err := g.ListFulltextIndexes(ctx, db)
	if err != nil {
		return res, err
	}
	for _, name := range existing {
		if name == index {
			res.Exists = true
			return res, nil
		}
	}
	if !createIfMissing {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: db,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() {
		if err := session.Close(ctx); err != nil {
			g.logger.Warn("failed to close session", "db", db, "error", err)
		}
	}()

	ddl := FulltextIndexDDL(index, labels, properties)
	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, ddl, nil)
		if err != nil {
			return nil, err
		}
		_, err = result.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return res, classify(db, err)
	}
	g.logger.Info("fulltext index created", "db", db, "index", index, "labels", labels)
	res.Exists = true
	res.Created = true
	return res, nil
}

// FulltextIndexDDL renders the CREATE FULLTEXT INDEX statement. Inputs must
// already be validated identifiers.
func FulltextIndexDDL(index string, labels, properties []string) string {
	props := make([]string, len(properties))
	for i, p := range properties {
		props[i] = "n." + p
	}
	return fmt.Sprintf(
		"CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (n:%s) ON EACH [%s]",
		index, strings.Join(labels, "|"), strings.Join(props, ", "))
}

// Ping verifies the database answers a trivial query.
func (g *Gateway) Ping(ctx context.Context, db string) error {
	_, err := g.RunCypher(ctx, db, "RETURN 1 AS ok", nil)
	return err
}

// luceneQuery joins terms into an OR query with Lucene metacharacters
// escaped, so user text cannot change the query structure.
func luceneQuery(terms []string) string {
	escaped := make([]string, 0, len(terms))
	for _, term := range terms {
		term = escapeLucene(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		escaped = append(escaped, term)
	}
	return strings.Join(escaped, " OR ")
}

var luceneSpecials = `+-&|!(){}[]^"~*?:\/`

func escapeLucene(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(luceneSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
