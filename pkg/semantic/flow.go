package semantic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seocho-project/graphqa/pkg/agent"
	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/trace"
)

// FlowRequest is one semantic run. ParentNode chains the flow's trace steps
// under an existing step (used when the flow runs as a debate fallback);
// empty means the RESOLVE step is the request's root.
type FlowRequest struct {
	Question   string
	Databases  []string
	Overrides  []models.Override
	ParentNode string
}

// FlowResult is the semantic flow's outcome.
type FlowResult struct {
	Answer  string
	Route   string
	Context *models.SemanticContext
	LPG     *SpecialistResult
	RDF     *SpecialistResult
}

// Flow wires resolver, router, specialists, and answer generation into the
// linear RESOLVE -> ROUTE -> SPECIALIST -> ANSWER chain.
type Flow struct {
	resolver *Resolver
	router   *Router
	lpg      *LPGSpecialist
	rdf      *RDFSpecialist
	answer   *AnswerGenerator
	logger   *slog.Logger
}

// NewFlow assembles the semantic flow.
func NewFlow(resolver *Resolver, router *Router, lpg *LPGSpecialist, rdf *RDFSpecialist, answer *AnswerGenerator, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		resolver: resolver,
		router:   router,
		lpg:      lpg,
		rdf:      rdf,
		answer:   answer,
		logger:   logger.With("component", "flow"),
	}
}

// Run executes the flow. Hybrid routes run both specialists sequentially,
// LPG first; each emits its own SPECIALIST step extending the chain.
func (f *Flow) Run(ctx context.Context, req FlowRequest, rc *agent.RunContext) (*FlowResult, error) {
	res, err := f.resolver.Resolve(ctx, req.Question, req.Databases)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	if err := f.resolver.ApplyOverrides(res, req.Overrides, req.Databases); err != nil {
		return nil, err
	}

	prev, err := rc.Recorder.Append(trace.Step{
		Type:     trace.StepResolve,
		Agent:    "semantic_layer",
		Content:  "Entity extraction and disambiguation completed.",
		ParentID: req.ParentNode,
		Metadata: map[string]any{
			"entities":   res.Mentions,
			"unresolved": res.Unresolved,
			"overrides":  res.Overrides,
		},
	})
	if err != nil {
		return nil, err
	}

	route, scores := f.router.Route(req.Question)
	prev, err = rc.Recorder.Append(trace.Step{
		Type:     trace.StepRoute,
		Agent:    "router",
		Content:  fmt.Sprintf("Question routed to %s.", route),
		ParentID: prev,
		Metadata: map[string]any{"route": route, "scores": scores},
	})
	if err != nil {
		return nil, err
	}

	var lpgResult, rdfResult *SpecialistResult
	if route == RouteLPG || route == RouteHybrid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lpgResult = f.lpg.Run(ctx, req.Databases, res, rc)
		prev, err = rc.Recorder.Append(trace.Step{
			Type:     trace.StepSpecialist,
			Agent:    "lpg_specialist",
			Content:  lpgResult.Summary,
			ParentID: prev,
			Metadata: map[string]any{"records": len(lpgResult.Records)},
		})
		if err != nil {
			return nil, err
		}
	}
	if route == RouteRDF || route == RouteHybrid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rdfResult = f.rdf.Run(ctx, req.Databases, res, rc)
		prev, err = rc.Recorder.Append(trace.Step{
			Type:     trace.StepSpecialist,
			Agent:    "rdf_specialist",
			Content:  rdfResult.Summary,
			ParentID: prev,
			Metadata: map[string]any{"records": len(rdfResult.Records)},
		})
		if err != nil {
			return nil, err
		}
	}

	answer := f.answer.Generate(ctx, req.Question, route, res, lpgResult, rdfResult, rc)
	if _, err = rc.Recorder.Append(trace.Step{
		Type:     trace.StepAnswer,
		Agent:    "answer_generation",
		Content:  answer,
		ParentID: prev,
	}); err != nil {
		return nil, err
	}

	return &FlowResult{
		Answer:  answer,
		Route:   route,
		Context: buildContext(res, route, scores),
		LPG:     lpgResult,
		RDF:     rdfResult,
	}, nil
}

// buildContext flattens a Resolution into the API-facing context payload.
func buildContext(res *Resolution, route string, scores map[string]float64) *models.SemanticContext {
	sc := &models.SemanticContext{
		Mentions:   res.Mentions,
		Route:      route,
		RouteScore: scores,
	}
	for _, mention := range res.Mentions {
		candidates := res.Matches[mention]
		sc.Candidates = append(sc.Candidates, candidates...)
		if len(candidates) > 0 && res.Confident[mention] {
			sc.Resolved = append(sc.Resolved, candidates[0])
		} else if len(candidates) > 0 {
			sc.Ambiguous = append(sc.Ambiguous, mention)
		}
	}
	sc.Ambiguous = append(sc.Ambiguous, res.Unresolved...)
	return sc
}
