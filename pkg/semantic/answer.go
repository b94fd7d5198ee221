package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/seocho-project/graphqa/pkg/agent"
)

// maxRecordsInPrompt bounds how many specialist records reach the model.
const maxRecordsInPrompt = 10

// AnswerGenerator composes the final answer from the route's specialist
// outputs. With no runner configured, or when the model call fails, it falls
// back to a deterministic summary so the flow always answers.
type AnswerGenerator struct {
	runner   agent.Runner
	answerer *agent.Agent
	logger   *slog.Logger
}

// NewAnswerGenerator creates the answer stage. runner may be nil.
func NewAnswerGenerator(runner agent.Runner, logger *slog.Logger) *AnswerGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerGenerator{
		runner: runner,
		answerer: &agent.Agent{
			ID: "answer_generation",
			Instructions: "You compose final answers for a graph question-answering system.\n" +
				"You receive the question, the chosen route, resolved entities, and\n" +
				"specialist findings. Answer the question directly from the findings.\n" +
				"Do not invent facts that are not in the findings; say when the graphs\n" +
				"hold no answer.",
		},
		logger: logger.With("component", "answer"),
	}
}

// Generate produces the answer text.
func (g *AnswerGenerator) Generate(ctx context.Context, question, route string, res *Resolution, lpg, rdf *SpecialistResult, rc *agent.RunContext) string {
	if g.runner == nil {
		return composeFallback(route, res, lpg, rdf)
	}

	out, err := g.runner.Run(ctx, g.answerer, g.prompt(question, route, res, lpg, rdf), rc)
	if err != nil || strings.TrimSpace(out.Text) == "" {
		g.logger.Warn("answer generation fell back to deterministic summary", "error", err)
		return composeFallback(route, res, lpg, rdf)
	}
	return out.Text
}

func (g *AnswerGenerator) prompt(question, route string, res *Resolution, lpg, rdf *SpecialistResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\nRoute: %s\n", question, route)

	if len(res.Mentions) > 0 {
		fmt.Fprintf(&b, "Extracted entities: %s\n", strings.Join(res.Mentions, ", "))
	}
	for _, mention := range res.Mentions {
		candidates := res.Matches[mention]
		if len(candidates) == 0 {
			continue
		}
		top := candidates[0]
		fmt.Fprintf(&b, "Resolved %q -> %s (%s, db=%s, source=%s)\n",
			mention, top.DisplayName, strings.Join(top.Labels, "/"), top.Database, top.Source)
	}
	if len(res.Unresolved) > 0 {
		fmt.Fprintf(&b, "Unresolved entities: %s\n", strings.Join(res.Unresolved, ", "))
	}

	appendResult := func(result *SpecialistResult) {
		if result == nil {
			return
		}
		fmt.Fprintf(&b, "\n%s findings: %s\n", strings.ToUpper(result.Mode), result.Summary)
		records := result.Records
		if len(records) > maxRecordsInPrompt {
			records = records[:maxRecordsInPrompt]
		}
		if encoded, err := json.Marshal(records); err == nil {
			b.WriteString(string(encoded))
			b.WriteString("\n")
		}
	}
	appendResult(lpg)
	appendResult(rdf)
	return b.String()
}

// composeFallback is the deterministic answer used without a model.
func composeFallback(route string, res *Resolution, lpg, rdf *SpecialistResult) string {
	lines := []string{fmt.Sprintf("Route selected: %s.", strings.ToUpper(route))}
	if len(res.Mentions) > 0 {
		lines = append(lines, fmt.Sprintf("Extracted entities: %s.", strings.Join(res.Mentions, ", ")))
	}
	if len(res.Unresolved) > 0 {
		lines = append(lines, fmt.Sprintf("Unresolved entities: %s.", strings.Join(res.Unresolved, ", ")))
	}

	found := false
	if lpg != nil && len(lpg.Records) > 0 {
		lines = append(lines, fmt.Sprintf("LPG records: %d.", len(lpg.Records)))
		found = true
	}
	if rdf != nil && len(rdf.Records) > 0 {
		lines = append(lines, fmt.Sprintf("RDF records: %d.", len(rdf.Records)))
		found = true
	}
	if !found {
		lines = append(lines, "No matching graph records were found for this question.")
	}
	return strings.Join(lines, " ")
}
