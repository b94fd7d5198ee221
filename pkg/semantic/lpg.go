package semantic

import (
	"context"
	"log/slog"
	"sort"

	"github.com/seocho-project/graphqa/pkg/agent"
	"github.com/seocho-project/graphqa/pkg/models"
)

// DefaultSpecialistLimit bounds rows per specialist query.
const DefaultSpecialistLimit = 20

// SpecialistResult is one specialist's contribution to the answer.
type SpecialistResult struct {
	Mode    string           `json:"mode"`
	Summary string           `json:"summary"`
	Records []map[string]any `json:"records"`
}

// LPGSpecialist expands resolved entities through their graph
// neighborhoods. All node references are parameter-bound elementIds.
type LPGSpecialist struct {
	querier GraphQuerier
	limit   int
	logger  *slog.Logger
}

// NewLPGSpecialist creates the property-graph specialist.
func NewLPGSpecialist(querier GraphQuerier, limit int, logger *slog.Logger) *LPGSpecialist {
	if limit < 1 {
		limit = DefaultSpecialistLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LPGSpecialist{querier: querier, limit: limit, logger: logger.With("component", "lpg")}
}

// Run expands the top resolved entities; with nothing resolved it reports
// the label distribution instead so the answer still says something about
// the graphs. Queries go through the request's shared memory, so repeated
// lookups within one request hit the gateway once.
func (s *LPGSpecialist) Run(ctx context.Context, dbs []string, res *Resolution, rc *agent.RunContext) *SpecialistResult {
	top := topMatches(res, 3)
	if len(top) == 0 {
		return &SpecialistResult{
			Mode:    RouteLPG,
			Summary: "No resolved entity. Returned graph label distribution.",
			Records: s.labelDistribution(ctx, dbs, rc),
		}
	}

	var records []map[string]any
	for _, match := range top {
		rows, err := runCypherCached(ctx, s.querier, rc, match.Database,
			`MATCH (n)
			 WHERE elementId(n) = $node_id
			 OPTIONAL MATCH (n)-[r]-(m)
			 RETURN coalesce(n.name, n.title, n.id, n.uri, elementId(n)) AS entity,
			        labels(n) AS labels,
			        collect(
			          DISTINCT {
			            type: type(r),
			            target: coalesce(m.name, m.title, m.id, m.uri, elementId(m)),
			            target_labels: labels(m)
			          }
			        )[0..$limit] AS neighbors
			 LIMIT 1`,
			map[string]any{"node_id": match.ElementID, "limit": s.limit})
		if err != nil {
			s.logger.Debug("neighborhood lookup failed", "db", match.Database, "error", err)
			continue
		}
		for _, row := range rows {
			row["database"] = match.Database
			records = append(records, row)
		}
	}
	return &SpecialistResult{
		Mode:    RouteLPG,
		Summary: "Resolved entities were expanded through graph neighborhoods.",
		Records: records,
	}
}

func (s *LPGSpecialist) labelDistribution(ctx context.Context, dbs []string, rc *agent.RunContext) []map[string]any {
	var records []map[string]any
	for _, db := range dbs {
		rows, err := runCypherCached(ctx, s.querier, rc, db,
			`MATCH (n)
			 RETURN labels(n)[0] AS label, count(*) AS count
			 ORDER BY count DESC
			 LIMIT 10`, nil)
		if err != nil {
			s.logger.Debug("label distribution failed", "db", db, "error", err)
			continue
		}
		for _, row := range rows {
			row["database"] = db
			records = append(records, row)
		}
	}
	return records
}

// topMatches returns the best candidate per mention, highest scores first.
func topMatches(res *Resolution, limit int) []models.CandidateEntity {
	var best []models.CandidateEntity
	for _, candidates := range res.Matches {
		if len(candidates) > 0 {
			best = append(best, candidates[0])
		}
	}
	sort.SliceStable(best, func(i, j int) bool {
		if best[i].Score != best[j].Score {
			return best[i].Score > best[j].Score
		}
		return best[i].DisplayName < best[j].DisplayName
	})
	if len(best) > limit {
		best = best[:limit]
	}
	return best
}
