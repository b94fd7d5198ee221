package semantic

import (
	"context"
	"log/slog"

	"github.com/seocho-project/graphqa/pkg/agent"
)

// RDFSpecialist answers over RDF-shaped data stored in the property graph:
// nodes carrying Resource/Class/Ontology labels or a uri property.
type RDFSpecialist struct {
	querier GraphQuerier
	limit   int
	logger  *slog.Logger
}

// NewRDFSpecialist creates the RDF-oriented specialist.
func NewRDFSpecialist(querier GraphQuerier, limit int, logger *slog.Logger) *RDFSpecialist {
	if limit < 1 {
		limit = DefaultSpecialistLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RDFSpecialist{querier: querier, limit: limit, logger: logger.With("component", "rdf")}
}

// Run matches the first extracted mention against RDF-like resources,
// falling back to a label overview when nothing matches. Queries go
// through the request's shared memory like the LPG specialist's.
func (s *RDFSpecialist) Run(ctx context.Context, dbs []string, res *Resolution, rc *agent.RunContext) *SpecialistResult {
	if len(res.Mentions) > 0 {
		records := s.resourceMatches(ctx, dbs, res.Mentions[0], rc)
		if len(records) > 0 {
			return &SpecialistResult{
				Mode:    RouteRDF,
				Summary: "Matched RDF-like resources using URI/name signals.",
				Records: records,
			}
		}
	}
	return &SpecialistResult{
		Mode:    RouteRDF,
		Summary: "No RDF resource match found. Returned RDF label overview.",
		Records: s.labelOverview(ctx, dbs, rc),
	}
}

func (s *RDFSpecialist) resourceMatches(ctx context.Context, dbs []string, mention string, rc *agent.RunContext) []map[string]any {
	var records []map[string]any
	for _, db := range dbs {
		rows, err := runCypherCached(ctx, s.querier, rc, db,
			`MATCH (n)
			 WHERE (
			     any(lbl IN labels(n) WHERE toLower(lbl) IN ["resource", "class", "ontology", "individual"])
			     OR n.uri IS NOT NULL
			 )
			   AND any(key IN ["uri", "name", "title", "id"]
			       WHERE n[key] IS NOT NULL
			         AND toLower(toString(n[key])) CONTAINS toLower($query))
			 RETURN labels(n) AS labels,
			        coalesce(n.uri, n.name, n.title, n.id, elementId(n)) AS resource,
			        n.name AS name
			 LIMIT $limit`,
			map[string]any{"query": mention, "limit": s.limit})
		if err != nil {
			s.logger.Debug("resource match failed", "db", db, "error", err)
			continue
		}
		for _, row := range rows {
			row["database"] = db
			records = append(records, row)
		}
	}
	return records
}

func (s *RDFSpecialist) labelOverview(ctx context.Context, dbs []string, rc *agent.RunContext) []map[string]any {
	var records []map[string]any
	for _, db := range dbs {
		rows, err := runCypherCached(ctx, s.querier, rc, db,
			`MATCH (n)
			 WHERE any(lbl IN labels(n) WHERE toLower(lbl) IN ["resource", "class", "ontology", "individual"])
			    OR n.uri IS NOT NULL
			 RETURN labels(n)[0] AS label, count(*) AS count
			 ORDER BY count DESC
			 LIMIT 10`, nil)
		if err != nil {
			s.logger.Debug("label overview failed", "db", db, "error", err)
			continue
		}
		for _, row := range rows {
			row["database"] = db
			records = append(records, row)
		}
	}
	return records
}
