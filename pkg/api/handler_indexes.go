package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/policy"
	"github.com/seocho-project/graphqa/pkg/semantic"
)

// Index defaults when the request leaves labels or properties unset. The
// properties mirror what the resolver matches candidates on.
var (
	defaultIndexLabels     = []string{"Entity"}
	defaultIndexProperties = []string{"name", "title", "id", "uri", "code", "symbol", "alias"}
)

// ensureIndexHandler handles POST /indexes/fulltext/ensure. The call is
// idempotent per database: an existing index is reported, a missing one is
// created only when create_if_missing is set.
func (s *Server) ensureIndexHandler(c *echo.Context) error {
	var req ensureIndexRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	role := req.Role
	if role == "" {
		role = "user"
	}
	workspace := req.WorkspaceID
	if workspace == "" {
		workspace = s.workspace
	}
	if err := s.policy.Require(role, policy.ActionManageIndexes, workspace); err != nil {
		return s.writeError(c, err, nil)
	}

	index := req.IndexName
	if index == "" {
		index = semantic.DefaultIndexHint
	}
	labels := req.Labels
	if len(labels) == 0 {
		labels = defaultIndexLabels
	}
	properties := req.Properties
	if len(properties) == 0 {
		properties = defaultIndexProperties
	}
	dbs := req.Databases
	if len(dbs) == 0 {
		dbs = s.registry.ListUserDBs()
	}

	results := make([]models.EnsureResult, 0, len(dbs))
	for _, db := range dbs {
		if err := s.registry.Require(db); err != nil {
			return s.writeError(c, err, nil)
		}
		res, err := s.indexes.EnsureFulltextIndex(c.Request().Context(), db, index, labels, properties, req.CreateIfMissing)
		if err != nil {
			return s.writeError(c, err, nil)
		}
		results = append(results, res)
	}

	return c.JSON(http.StatusOK, &ensureIndexResponse{
		RequestID: requestIDFrom(c),
		Results:   results,
	})
}
