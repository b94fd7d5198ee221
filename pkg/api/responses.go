package api

import (
	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/platform"
	"github.com/seocho-project/graphqa/pkg/trace"
)

// chatSendResponse is the platform chat adapter's reply: the assistant
// message plus everything the UI renders around it.
type chatSendResponse struct {
	AssistantMessage string                   `json:"assistant_message"`
	TraceSteps       []trace.Step             `json:"trace_steps"`
	UIPayload        *platform.UIPayload      `json:"ui_payload"`
	RuntimePayload   *models.RunResult        `json:"runtime_payload"`
	RuntimeControl   *platform.RuntimeControl `json:"runtime_control,omitempty"`
	FallbackFrom     *platform.FallbackInfo   `json:"fallback_from,omitempty"`
}

type ensureIndexResponse struct {
	RequestID string                `json:"request_id"`
	Results   []models.EnsureResult `json:"results"`
}

type databasesResponse struct {
	Databases []string `json:"databases"`
}

type agentsResponse struct {
	DebateState string               `json:"debate_state"`
	Agents      []models.DBReadiness `json:"agents"`
}

// Health response types, shared by both probes.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]HealthCheck `json:"checks"`
}

type batchHealthResponse struct {
	Status      string               `json:"status"`
	DebateState string               `json:"debate_state"`
	Databases   []models.DBReadiness `json:"databases"`
}
