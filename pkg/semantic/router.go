package semantic

import (
	"math"
	"strings"
)

// Route names.
const (
	RouteLPG    = "lpg"
	RouteRDF    = "rdf"
	RouteHybrid = "hybrid"
)

// DefaultRouterMargin is the score margin below which both paths run.
const DefaultRouterMargin = 0.2

// Hints cover both vocabulary ("ontology", "cypher") and question shapes:
// definition and is-a questions lean RDF, count and connectivity questions
// lean LPG. Multi-word hints match on word boundaries after normalization.
var rdfHints = []string{
	"rdf", "rdfs", "owl", "shacl", "sparql", "triple", "ontology", "uri",
	"class", "instance",
	"define", "definition", "what is a", "what is an", "meaning of",
	"subclass", "subclasses", "superclass", "type of", "kind of",
}

var lpgHints = []string{
	"cypher", "node", "edge", "path", "neighbor", "graph", "community",
	"relationship",
	"how many", "count", "number of", "connected", "connection",
	"attribute", "value of", "linked",
}

// RouteFallback decides a route when no keyword fires, typically a single
// bounded LLM call. Nil disables the fallback.
type RouteFallback func(question string) string

// Router picks lpg, rdf, or hybrid from question vocabulary. Deterministic
// and idempotent: the same question (modulo whitespace) always yields the
// same route.
type Router struct {
	margin   float64
	fallback RouteFallback
}

// NewRouter creates a Router. A margin outside (0,1] falls back to
// DefaultRouterMargin.
func NewRouter(margin float64, fallback RouteFallback) *Router {
	if margin <= 0 || margin > 1 {
		margin = DefaultRouterMargin
	}
	return &Router{margin: margin, fallback: fallback}
}

// Route returns the chosen route and the per-path signal scores.
func (r *Router) Route(question string) (string, map[string]float64) {
	q := " " + NormalizeAlias(question) + " "

	rdfCount := countHints(q, rdfHints)
	lpgCount := countHints(q, lpgHints)
	scores := map[string]float64{RouteRDF: 0, RouteLPG: 0}
	if total := rdfCount + lpgCount; total > 0 {
		scores[RouteRDF] = float64(rdfCount) / float64(total)
		scores[RouteLPG] = float64(lpgCount) / float64(total)
	}

	switch {
	case rdfCount == 0 && lpgCount == 0:
		if r.fallback != nil {
			if route := r.fallback(question); route == RouteLPG || route == RouteRDF || route == RouteHybrid {
				return route, scores
			}
		}
		return RouteLPG, scores
	case rdfCount > 0 && lpgCount > 0,
		math.Abs(scores[RouteRDF]-scores[RouteLPG]) < r.margin:
		return RouteHybrid, scores
	case rdfCount > 0:
		return RouteRDF, scores
	default:
		return RouteLPG, scores
	}
}

func countHints(q string, hints []string) int {
	count := 0
	for _, hint := range hints {
		if strings.Contains(q, " "+hint+" ") {
			count++
		}
	}
	return count
}
