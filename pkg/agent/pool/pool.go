// Package pool creates and caches per-database specialist agents. Each
// agent's tools are closures bound to one database at construction time, so
// an agent cannot be steered at another database regardless of what the
// model asks for.
package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/seocho-project/graphqa/pkg/agent"
	"github.com/seocho-project/graphqa/pkg/graph"
	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/registry"
	"github.com/seocho-project/graphqa/pkg/semantic"
)

// DefaultProbeTTL is how long a successful schema probe keeps an agent
// ready before it is re-probed.
const DefaultProbeTTL = 30 * time.Second

// Gateway is the slice of the graph gateway the pool needs.
type Gateway interface {
	RunCypher(ctx context.Context, db, cypher string, params map[string]any) ([]map[string]any, error)
	SchemaSnapshot(ctx context.Context, db string) (graph.Schema, error)
}

type poolEntry struct {
	agent    *agent.Agent
	schema   graph.Schema
	probedAt time.Time
}

// Pool maintains the one-agent-per-database invariant. Agents are replaced,
// never mutated: a schema change produces a fresh agent and the entries map
// is swapped copy-on-write.
type Pool struct {
	gateway  Gateway
	registry *registry.Registry
	probeTTL time.Duration
	logger   *slog.Logger

	mu         sync.RWMutex
	entries    map[string]*poolEntry
	supervisor *agent.Agent
}

// New creates a Pool. probeTTL below 1ms falls back to DefaultProbeTTL.
func New(gateway Gateway, reg *registry.Registry, probeTTL time.Duration, logger *slog.Logger) *Pool {
	if probeTTL < time.Millisecond {
		probeTTL = DefaultProbeTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		gateway:  gateway,
		registry: reg,
		probeTTL: probeTTL,
		logger:   logger.With("component", "pool"),
		entries:  make(map[string]*poolEntry),
	}
}

// CreateForAll ensures an agent exists for every given database (all
// registered user databases when dbs is empty). An unreachable database
// yields a degraded status and no agent.
func (p *Pool) CreateForAll(ctx context.Context, dbs []string) []models.DBReadiness {
	if len(dbs) == 0 {
		dbs = p.registry.ListUserDBs()
	}
	statuses := make([]models.DBReadiness, 0, len(dbs))
	for _, db := range dbs {
		statuses = append(statuses, p.ensure(ctx, db))
	}
	return statuses
}

// ensure probes and (re)builds the agent for one database.
func (p *Pool) ensure(ctx context.Context, db string) models.DBReadiness {
	if err := p.registry.Require(db); err != nil {
		return models.DBReadiness{Database: db, Status: models.ReadinessDegraded, Reason: err.Error()}
	}

	p.mu.RLock()
	entry, ok := p.entries[db]
	p.mu.RUnlock()
	if ok && time.Since(entry.probedAt) < p.probeTTL {
		return models.DBReadiness{Database: db, Status: models.ReadinessReady, Reason: "cached"}
	}

	schema, err := p.gateway.SchemaSnapshot(ctx, db)
	if err != nil {
		p.logger.Warn("schema probe failed", "db", db, "error", err)
		p.remove(db)
		return models.DBReadiness{Database: db, Status: models.ReadinessDegraded, Reason: err.Error()}
	}

	p.replace(db, &poolEntry{agent: p.buildAgent(db, schema), schema: schema, probedAt: time.Now()})
	reason := "created"
	if ok {
		reason = "refreshed"
	}
	p.logger.Info("agent ready", "db", db, "reason", reason)
	return models.DBReadiness{Database: db, Status: models.ReadinessReady, Reason: reason}
}

func (p *Pool) replace(db string, entry *poolEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make(map[string]*poolEntry, len(p.entries)+1)
	for k, v := range p.entries {
		next[k] = v
	}
	next[db] = entry
	p.entries = next
}

func (p *Pool) remove(db string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[db]; !ok {
		return
	}
	next := make(map[string]*poolEntry, len(p.entries))
	for k, v := range p.entries {
		if k != db {
			next[k] = v
		}
	}
	p.entries = next
}

// Get returns the agent for a database, if one is ready.
func (p *Pool) Get(db string) (*agent.Agent, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.entries[db]
	if !ok {
		return nil, false
	}
	return entry.agent, true
}

// List returns the databases that currently have agents, sorted.
func (p *Pool) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	dbs := make([]string, 0, len(p.entries))
	for db := range p.entries {
		dbs = append(dbs, db)
	}
	sort.Strings(dbs)
	return dbs
}

// Readiness probes the given databases (stale probes re-run) and folds the
// outcomes into the debate gate.
func (p *Pool) Readiness(ctx context.Context, dbs []string) models.ReadinessSummary {
	return models.SummarizeReadiness(p.CreateForAll(ctx, dbs))
}

// Supervisor returns the synthesis agent. It has no tools: it only composes
// what the specialists produced.
func (p *Pool) Supervisor() *agent.Agent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.supervisor == nil {
		p.supervisor = &agent.Agent{
			ID: "supervisor",
			Instructions: "You are the supervisor of a team of knowledge graph specialists.\n" +
				"You receive each specialist's findings for its own database.\n" +
				"Synthesize them into one coherent answer. Attribute facts to their\n" +
				"source database when specialists disagree, and say plainly when no\n" +
				"specialist could answer.",
		}
	}
	return p.supervisor
}

func (p *Pool) buildAgent(db string, schema graph.Schema) *agent.Agent {
	return &agent.Agent{
		ID:       "agent_" + db,
		Database: db,
		Instructions: fmt.Sprintf(
			"You are a knowledge graph specialist for the '%s' database.\n\n"+
				"Schema:\n%s\n"+
				"When answering questions:\n"+
				"1. Use get_schema to verify available node labels and relationships.\n"+
				"2. Use query_db to execute read-only Cypher against your database.\n"+
				"3. Use put_shared_result to record your final finding for the team.\n"+
				"4. Provide factual answers based on query results.\n"+
				"5. You can only query '%s'. If the question concerns another database,\n"+
				"   state that clearly and do not attempt to answer it.",
			db, schema.String(), db),
		Tools: p.buildTools(db, schema),
	}
}

func (p *Pool) buildTools(db string, schema graph.Schema) []agent.Tool {
	gateway := p.gateway
	schemaText := schema.String()

	return []agent.Tool{
		{
			Name:             "query_db",
			Description:      fmt.Sprintf("Execute a read-only Cypher query against the '%s' database.", db),
			ParametersSchema: json.RawMessage(`{"type":"object","properties":{"cypher":{"type":"string","description":"Read-only Cypher statement"}},"required":["cypher"]}`),
			Handler: func(ctx context.Context, rc *agent.RunContext, args map[string]any) (string, error) {
				cypher, _ := args["cypher"].(string)
				if cypher == "" {
					return "", fmt.Errorf("query_db: missing cypher argument")
				}
				if rc != nil && rc.Memory != nil {
					if cached, hit := rc.Memory.GetCached(db, cypher); hit {
						return "[CACHED] " + cached, nil
					}
				}
				rows, err := gateway.RunCypher(ctx, db, cypher, nil)
				if err != nil {
					return "", err
				}
				encoded, err := json.Marshal(rows)
				if err != nil {
					return "", fmt.Errorf("query_db: encode rows: %w", err)
				}
				result := string(encoded)
				if rc != nil && rc.Memory != nil {
					rc.Memory.PutCached(db, cypher, result)
				}
				return result, nil
			},
		},
		{
			Name:             "get_schema",
			Description:      fmt.Sprintf("Return the schema snapshot for the '%s' database.", db),
			ParametersSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler: func(ctx context.Context, rc *agent.RunContext, args map[string]any) (string, error) {
				return schemaText, nil
			},
		},
		{
			Name:             "rerank_candidates",
			Description:      "Reorder candidate entity names by similarity to a mention.",
			ParametersSchema: json.RawMessage(`{"type":"object","properties":{"mention":{"type":"string"},"candidates":{"type":"array","items":{"type":"string"}}},"required":["mention","candidates"]}`),
			Handler: func(ctx context.Context, rc *agent.RunContext, args map[string]any) (string, error) {
				mention, _ := args["mention"].(string)
				raw, _ := args["candidates"].([]any)
				if mention == "" || len(raw) == 0 {
					return "", fmt.Errorf("rerank_candidates: mention and candidates required")
				}
				type scored struct {
					Name  string  `json:"name"`
					Score float64 `json:"score"`
				}
				items := make([]scored, 0, len(raw))
				for _, c := range raw {
					name, ok := c.(string)
					if !ok {
						continue
					}
					items = append(items, scored{Name: name, Score: semantic.LexicalSim(mention, name)})
				}
				sort.SliceStable(items, func(i, j int) bool {
					if items[i].Score != items[j].Score {
						return items[i].Score > items[j].Score
					}
					return items[i].Name < items[j].Name
				})
				encoded, err := json.Marshal(items)
				if err != nil {
					return "", err
				}
				return string(encoded), nil
			},
		},
		{
			Name:             "put_shared_result",
			Description:      "Record this agent's final finding for supervisor synthesis.",
			ParametersSchema: json.RawMessage(`{"type":"object","properties":{"answer":{"type":"string"}},"required":["answer"]}`),
			Handler: func(ctx context.Context, rc *agent.RunContext, args map[string]any) (string, error) {
				answer, _ := args["answer"].(string)
				if answer == "" {
					return "", fmt.Errorf("put_shared_result: missing answer argument")
				}
				if rc == nil || rc.Memory == nil {
					return "", fmt.Errorf("put_shared_result: no shared memory in this run")
				}
				rc.Memory.PutResult(db, answer)
				return "recorded", nil
			},
		},
	}
}
