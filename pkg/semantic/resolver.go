package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/seocho-project/graphqa/pkg/graph"
	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/registry"
)

// Resolution defaults.
const (
	DefaultIndexHint      = "entity_fulltext"
	DefaultCandidateLimit = 5
	DefaultConfidenceGap  = 0.15
	DefaultDedupThreshold = 0.92
)

// entityProperties are the name-like properties the contains fallback scans.
var entityProperties = []string{"name", "title", "id", "uri", "code", "symbol", "alias"}

// questionLabelHints maps question vocabulary to label hints, independent of
// the offline hint store.
var questionLabelHints = map[string][]string{
	"company":  {"company", "organization", "org", "enterprise", "firm"},
	"person":   {"person", "human", "individual", "employee", "ceo", "founder"},
	"product":  {"product", "service", "offering"},
	"event":    {"event", "incident", "meeting"},
	"document": {"document", "section", "chunk"},
	"ontology": {"ontology", "class", "property", "concept"},
}

// GraphQuerier is the slice of the graph gateway the resolver needs.
type GraphQuerier interface {
	RunCypher(ctx context.Context, db, cypher string, params map[string]any) ([]map[string]any, error)
	FulltextSearch(ctx context.Context, db, index string, terms []string, limit int) ([]graph.CandidateHit, error)
	ListFulltextIndexes(ctx context.Context, db string) ([]string, error)
}

// Weights are the rerank term weights. They should sum to 1 but the
// resolver does not enforce it.
type Weights struct {
	Lexical   float64
	Fulltext  float64
	LabelHint float64
}

// DefaultWeights per the rerank contract.
var DefaultWeights = Weights{Lexical: 0.5, Fulltext: 0.4, LabelHint: 0.1}

// ResolverConfig tunes candidate retrieval and reranking.
type ResolverConfig struct {
	IndexHint      string
	CandidateLimit int
	ConfidenceGap  float64
	DedupThreshold float64
	Weights        Weights
}

func (c ResolverConfig) withDefaults() ResolverConfig {
	if c.IndexHint == "" {
		c.IndexHint = DefaultIndexHint
	}
	if c.CandidateLimit < 1 {
		c.CandidateLimit = DefaultCandidateLimit
	}
	if c.ConfidenceGap <= 0 {
		c.ConfidenceGap = DefaultConfidenceGap
	}
	if c.DedupThreshold <= 0 {
		c.DedupThreshold = DefaultDedupThreshold
	}
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights
	}
	return c
}

// Resolution is the resolver's full output for one question.
type Resolution struct {
	Mentions      []string
	LabelHints    []string
	AliasResolved map[string]string
	// Matches holds ranked candidates per mention. Rank 0 is the best.
	Matches    map[string][]models.CandidateEntity
	Unresolved []string
	// Confident marks mentions whose top candidate cleared the confidence
	// gate (gap, single candidate, or override).
	Confident map[string]bool
	Overrides []string
}

// Resolver resolves question mentions to graph nodes.
type Resolver struct {
	querier GraphQuerier
	hints   *OntologyHintStore
	cfg     ResolverConfig
	logger  *slog.Logger
}

// NewResolver creates a Resolver. A nil hint store behaves as empty.
func NewResolver(querier GraphQuerier, hints *OntologyHintStore, cfg ResolverConfig, logger *slog.Logger) *Resolver {
	if hints == nil {
		hints = &OntologyHintStore{aliases: map[string]string{}, labelKeywords: map[string][]string{}}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		querier: querier,
		hints:   hints,
		cfg:     cfg.withDefaults(),
		logger:  logger.With("component", "resolver"),
	}
}

// Resolve extracts mentions and resolves each against every database.
// Per-database lookup failures degrade that database's contribution; they
// never fail the resolution.
func (r *Resolver) Resolve(ctx context.Context, question string, dbs []string) (*Resolution, error) {
	res := &Resolution{
		Mentions:      ExtractMentions(question),
		LabelHints:    r.labelHints(question),
		AliasResolved: map[string]string{},
		Matches:       map[string][]models.CandidateEntity{},
		Confident:     map[string]bool{},
	}

	indexesByDB := r.discoverIndexes(ctx, dbs)

	for _, mention := range res.Mentions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resolved := r.hints.ResolveAlias(mention)
		res.AliasResolved[mention] = resolved

		var candidates []models.CandidateEntity
		for _, db := range dbs {
			dbCandidates := r.fulltextCandidates(ctx, db, mention, resolved, indexesByDB[db])
			if len(dbCandidates) == 0 {
				dbCandidates = r.containsCandidates(ctx, db, mention, resolved)
			}
			candidates = append(candidates, dbCandidates...)
		}

		ranked := r.rank(mention, candidates, res.LabelHints)
		if len(ranked) == 0 {
			res.Unresolved = append(res.Unresolved, mention)
			continue
		}
		res.Matches[mention] = ranked
		res.Confident[mention] = r.isConfident(ranked)
	}
	return res, nil
}

// ApplyOverrides pins mentions to caller-chosen nodes at rank 0. An
// override naming a database outside the request's set is rejected.
func (r *Resolver) ApplyOverrides(res *Resolution, overrides []models.Override, dbs []string) error {
	allowed := map[string]bool{}
	for _, db := range dbs {
		allowed[db] = true
	}

	for _, o := range overrides {
		if o.Mention == "" || o.ElementID == "" {
			continue
		}
		if !allowed[o.Database] {
			return fmt.Errorf("%w: override database %q is not part of this request", registry.ErrInvalidIdentifier, o.Database)
		}

		name := o.Name
		if name == "" {
			name = o.Mention
		}
		pinned := models.CandidateEntity{
			Mention:     o.Mention,
			ElementID:   o.ElementID,
			DisplayName: name,
			Score:       10.0,
			Source:      "override",
			Database:    o.Database,
		}
		if o.Label != "" {
			pinned.Labels = []string{o.Label}
		}

		rest := make([]models.CandidateEntity, 0, len(res.Matches[o.Mention]))
		for _, c := range res.Matches[o.Mention] {
			if c.Database == pinned.Database && c.ElementID == pinned.ElementID {
				continue
			}
			rest = append(rest, c)
		}
		res.Matches[o.Mention] = append([]models.CandidateEntity{pinned}, rest...)
		res.Confident[o.Mention] = true
		res.Overrides = append(res.Overrides, o.Mention)
		res.Unresolved = dropString(res.Unresolved, o.Mention)

		if !containsString(res.Mentions, o.Mention) {
			res.Mentions = append(res.Mentions, o.Mention)
		}
	}
	sort.Strings(res.Overrides)
	return nil
}

func (r *Resolver) labelHints(question string) []string {
	q := strings.ToLower(question)
	set := map[string]bool{}
	for _, tokens := range questionLabelHints {
		for _, token := range tokens {
			if strings.Contains(q, token) {
				for _, t := range tokens {
					set[t] = true
				}
				break
			}
		}
	}
	for _, label := range r.hints.InferLabelHints(question) {
		set[NormalizeAlias(label)] = true
	}
	hints := make([]string, 0, len(set))
	for h := range set {
		hints = append(hints, h)
	}
	sort.Strings(hints)
	return hints
}

func (r *Resolver) discoverIndexes(ctx context.Context, dbs []string) map[string][]string {
	byDB := map[string][]string{}
	for _, db := range dbs {
		names, err := r.querier.ListFulltextIndexes(ctx, db)
		if err != nil {
			r.logger.Debug("fulltext index discovery failed", "db", db, "error", err)
			names = nil
		}
		if !containsString(names, r.cfg.IndexHint) {
			names = append([]string{r.cfg.IndexHint}, names...)
		}
		byDB[db] = names
	}
	return byDB
}

func (r *Resolver) fulltextCandidates(ctx context.Context, db, mention, resolved string, indexes []string) []models.CandidateEntity {
	for _, index := range indexes {
		hits, err := r.querier.FulltextSearch(ctx, db, index, []string{resolved}, r.cfg.CandidateLimit)
		if err != nil {
			r.logger.Debug("fulltext lookup failed", "db", db, "index", index, "error", err)
			continue
		}
		if len(hits) == 0 {
			continue
		}
		candidates := make([]models.CandidateEntity, 0, len(hits))
		for _, hit := range hits {
			candidates = append(candidates, models.CandidateEntity{
				Mention:     mention,
				ElementID:   hit.NodeID,
				DisplayName: hit.DisplayName,
				Labels:      hit.Labels,
				Score:       hit.Score,
				Source:      "fulltext",
				Database:    db,
			})
		}
		return candidates
	}
	return nil
}

func (r *Resolver) containsCandidates(ctx context.Context, db, mention, resolved string) []models.CandidateEntity {
	rows, err := r.querier.RunCypher(ctx, db,
		`MATCH (n)
		 WHERE any(key IN $properties
		       WHERE n[key] IS NOT NULL
		         AND toLower(toString(n[key])) CONTAINS toLower($query))
		 RETURN elementId(n) AS node_id,
		        labels(n) AS labels,
		        coalesce(n.name, n.title, n.id, n.uri, elementId(n)) AS display_name
		 LIMIT $limit`,
		map[string]any{"properties": entityProperties, "query": resolved, "limit": r.cfg.CandidateLimit})
	if err != nil {
		r.logger.Debug("contains lookup failed", "db", db, "error", err)
		return nil
	}

	candidates := make([]models.CandidateEntity, 0, len(rows))
	for _, row := range rows {
		c := models.CandidateEntity{Mention: mention, Source: "contains", Database: db}
		c.ElementID, _ = row["node_id"].(string)
		c.DisplayName, _ = row["display_name"].(string)
		if raw, ok := row["labels"].([]any); ok {
			for _, l := range raw {
				if s, ok := l.(string); ok {
					c.Labels = append(c.Labels, s)
				}
			}
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// rank scores, deduplicates, and orders candidates for one mention.
// Deterministic: equal scores break on source priority then display name.
func (r *Resolver) rank(mention string, candidates []models.CandidateEntity, labelHints []string) []models.CandidateEntity {
	scored := make([]models.CandidateEntity, 0, len(candidates))
	for _, c := range candidates {
		w := r.cfg.Weights
		score := w.Lexical * LexicalSim(mention, c.DisplayName)
		if c.Source == "fulltext" {
			// Raw Lucene scores are unbounded; squash to [0,1).
			score += w.Fulltext * (c.Score / (c.Score + 1))
		}
		if labelMatches(c.Labels, labelHints) {
			score += w.LabelHint
		}
		c.Score = score
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		pi, pj := sourcePriority(scored[i].Source), sourcePriority(scored[j].Source)
		if pi != pj {
			return pi < pj
		}
		return scored[i].DisplayName < scored[j].DisplayName
	})

	deduped := r.dedup(scored)
	if len(deduped) > r.cfg.CandidateLimit {
		deduped = deduped[:r.cfg.CandidateLimit]
	}
	return deduped
}

// dedup collapses candidates that name the same entity across databases:
// identical label sets plus identical or near-identical display names. The
// list is score-ordered, so the first occurrence wins.
func (r *Resolver) dedup(ranked []models.CandidateEntity) []models.CandidateEntity {
	var out []models.CandidateEntity
	for _, c := range ranked {
		dup := false
		for _, kept := range out {
			if labelKey(kept.Labels) != labelKey(c.Labels) {
				continue
			}
			if NormalizeAlias(kept.DisplayName) == NormalizeAlias(c.DisplayName) ||
				LexicalSim(kept.DisplayName, c.DisplayName) >= r.cfg.DedupThreshold {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

func (r *Resolver) isConfident(ranked []models.CandidateEntity) bool {
	if len(ranked) == 0 {
		return false
	}
	if ranked[0].Source == "override" || len(ranked) == 1 {
		return true
	}
	return ranked[0].Score-ranked[1].Score >= r.cfg.ConfidenceGap
}

func sourcePriority(source string) int {
	switch source {
	case "override":
		return 0
	case "fulltext":
		return 1
	default:
		return 2
	}
}

func labelMatches(labels, hints []string) bool {
	for _, label := range labels {
		n := NormalizeAlias(label)
		for _, hint := range hints {
			if n == NormalizeAlias(hint) {
				return true
			}
		}
	}
	return false
}

func labelKey(labels []string) string {
	normalized := make([]string, 0, len(labels))
	for _, l := range labels {
		normalized = append(normalized, NormalizeAlias(l))
	}
	sort.Strings(normalized)
	return strings.Join(normalized, "|")
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func dropString(values []string, target string) []string {
	out := values[:0]
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
