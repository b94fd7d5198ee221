package semantic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/seocho-project/graphqa/pkg/agent"
)

// runCypherCached serves a specialist query from the request's shared
// memory when an identical query already ran, boarding fresh rows for the
// next caller. The cache key folds in the bound parameters: the same
// statement pinned to a different node is a different query.
func runCypherCached(ctx context.Context, querier GraphQuerier, rc *agent.RunContext, db, cypher string, params map[string]any) ([]map[string]any, error) {
	if rc == nil || rc.Memory == nil {
		return querier.RunCypher(ctx, db, cypher, params)
	}

	key := cypher
	if len(params) > 0 {
		if encoded, err := json.Marshal(params); err == nil {
			key = fmt.Sprintf("%s\n%s", cypher, encoded)
		}
	}

	if cached, hit := rc.Memory.GetCached(db, key); hit {
		var rows []map[string]any
		if err := json.Unmarshal([]byte(cached), &rows); err == nil {
			return rows, nil
		}
	}

	rows, err := querier.RunCypher(ctx, db, cypher, params)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(rows); err == nil {
		rc.Memory.PutCached(db, key, string(encoded))
	}
	return rows, nil
}
