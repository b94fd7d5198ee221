package api

import "github.com/seocho-project/graphqa/pkg/models"

// runRequest is the body of the three run endpoints.
type runRequest struct {
	Query           string           `json:"query"`
	WorkspaceID     string           `json:"workspace_id"`
	Role            string           `json:"role"`
	Databases       []string         `json:"databases"`
	EntityOverrides []entityOverride `json:"entity_overrides"`
}

// entityOverride pins a question entity to a specific graph node.
type entityOverride struct {
	QuestionEntity string `json:"question_entity"`
	Database       string `json:"database"`
	NodeID         string `json:"node_id"`
	Label          string `json:"label"`
	DisplayName    string `json:"display_name"`
}

func toOverrides(in []entityOverride) []models.Override {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Override, 0, len(in))
	for _, o := range in {
		out = append(out, models.Override{
			Mention:   o.QuestionEntity,
			ElementID: o.NodeID,
			Database:  o.Database,
			Label:     o.Label,
			Name:      o.DisplayName,
		})
	}
	return out
}

// chatSendRequest is the body of POST /platform/chat/send.
type chatSendRequest struct {
	SessionID   string   `json:"session_id"`
	Message     string   `json:"message"`
	Mode        string   `json:"mode"`
	WorkspaceID string   `json:"workspace_id"`
	Role        string   `json:"role"`
	Databases   []string `json:"databases"`
}

// ensureIndexRequest is the body of POST /indexes/fulltext/ensure.
type ensureIndexRequest struct {
	WorkspaceID     string   `json:"workspace_id"`
	Role            string   `json:"role"`
	Databases       []string `json:"databases"`
	IndexName       string   `json:"index_name"`
	Labels          []string `json:"labels"`
	Properties      []string `json:"properties"`
	CreateIfMissing bool     `json:"create_if_missing"`
}
