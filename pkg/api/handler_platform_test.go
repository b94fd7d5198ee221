package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seocho-project/graphqa/pkg/dispatch"
	"github.com/seocho-project/graphqa/pkg/models"
)

func TestChatSend(t *testing.T) {
	f := newTestServer(t)
	f.executor.result = &models.RunResult{
		Answer:    "42 companies",
		RequestID: "req-7",
		Route:     "lpg",
	}

	rec := f.do(t, http.MethodPost, "/platform/chat/send", map[string]any{
		"session_id": "sess-1",
		"message":    "How many companies?",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dispatch.ModeSemantic, f.executor.lastReq.Mode, "mode defaults to semantic")

	body := decodeJSON[chatSendResponse](t, rec)
	assert.Equal(t, "42 companies", body.AssistantMessage)
	require.NotNil(t, body.UIPayload)
	assert.Equal(t, "Mode: semantic", body.UIPayload.Cards[0].Title)
	assert.Nil(t, body.RuntimeControl)

	history := f.sessions.History("sess-1")
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "How many companies?", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "req-7", history[1].Metadata["request_id"])
}

func TestChatSendValidation(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/platform/chat/send", map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/platform/chat/send", map[string]any{"session_id": "sess-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, f.sessions.History("sess-1"), "invalid requests record no turns")
}

func TestChatSendRejectsViewer(t *testing.T) {
	f := newTestServer(t)
	rec := f.do(t, http.MethodPost, "/platform/chat/send", map[string]any{
		"session_id": "sess-1",
		"message":    "q",
		"role":       "viewer",
	})

	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeJSON[errorResponse](t, rec)
	assert.Equal(t, codePolicyDenied, body.ErrorCode)
	assert.Empty(t, f.sessions.History("sess-1"))
}

func TestChatSendDebateFallback(t *testing.T) {
	f := newTestServer(t)
	f.executor.result = &models.RunResult{
		Answer:       "fallback answer",
		RequestID:    "req-9",
		FallbackFrom: dispatch.ModeDebate,
		DebateState:  models.ReadinessBlocked,
		AgentStatuses: []models.AgentStatus{
			{Database: "kgnormal", Status: models.StatusFailed, Error: "unreachable"},
		},
	}

	rec := f.do(t, http.MethodPost, "/platform/chat/send", map[string]any{
		"session_id": "sess-1",
		"message":    "q",
		"mode":       dispatch.ModeDebate,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[chatSendResponse](t, rec)

	require.NotNil(t, body.RuntimeControl)
	assert.Equal(t, dispatch.ModeDebate, body.RuntimeControl.RequestedMode)
	assert.Equal(t, dispatch.ModeSemantic, body.RuntimeControl.ExecutedMode)
	assert.Equal(t, "debate_blocked", body.RuntimeControl.Reason)

	require.NotNil(t, body.FallbackFrom)
	assert.Equal(t, dispatch.ModeDebate, body.FallbackFrom.Mode)
}
