package platform

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seocho-project/graphqa/pkg/models"
	"github.com/seocho-project/graphqa/pkg/trace"
)

func TestSessionStoreAppendAndHistory(t *testing.T) {
	s := NewSessionStore(0)

	s.Append("sess-1", "user", "hello", nil)
	s.Append("sess-1", "assistant", "hi", map[string]any{"mode": "semantic"})
	s.Append("sess-2", "user", "other session", nil)

	history := s.History("sess-1")
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "hi", history[1].Content)
	assert.Len(t, s.History("sess-2"), 1)
	assert.Empty(t, s.History("missing"))
}

func TestSessionStoreEvictsOldestTurns(t *testing.T) {
	s := NewSessionStore(3)
	for i := 0; i < 5; i++ {
		s.Append("sess", "user", fmt.Sprintf("turn %d", i), nil)
	}

	history := s.History("sess")
	require.Len(t, history, 3)
	assert.Equal(t, "turn 2", history[0].Content)
	assert.Equal(t, "turn 4", history[2].Content)
}

func TestSessionStoreClear(t *testing.T) {
	s := NewSessionStore(0)
	s.Append("sess", "user", "hello", nil)
	s.Clear("sess")
	assert.Empty(t, s.History("sess"))
}

func TestSessionStoreConcurrent(t *testing.T) {
	s := NewSessionStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Append("sess", "user", fmt.Sprintf("turn %d", n), nil)
			s.History("sess")
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.History("sess"), 20)
}

func TestBuildUIPayload(t *testing.T) {
	result := &models.RunResult{
		Answer: "42 companies",
		TraceSteps: []trace.Step{
			{Type: trace.StepResolve},
			{Type: trace.StepRoute},
			{Type: trace.StepSpecialist},
			{Type: trace.StepSpecialist},
			{Type: trace.StepAnswer},
		},
		Semantic: &models.SemanticContext{
			Mentions: []string{"Acme"},
			Candidates: []models.CandidateEntity{
				{Mention: "Acme", DisplayName: "Acme Corp", Database: "kgnormal", Score: 0.9, Source: "fulltext"},
				{Mention: "Acme", DisplayName: "Acme Ltd", Database: "kgfibo", Score: 0.4, Source: "contains"},
			},
		},
	}

	payload := BuildUIPayload("semantic", result)

	require.Len(t, payload.Cards, 2)
	assert.Equal(t, "Mode: semantic", payload.Cards[0].Title)
	assert.Equal(t, "42 companies", payload.Cards[0].Body)
	assert.Equal(t, "5 steps", payload.Cards[1].Body)

	assert.Equal(t, map[string]int{
		"RESOLVE": 1, "ROUTE": 1, "SPECIALIST": 2, "ANSWER": 1,
	}, payload.TraceSummary)

	require.Len(t, payload.EntityCandidates, 1)
	assert.Equal(t, "Acme", payload.EntityCandidates[0].QuestionEntity)
	assert.Len(t, payload.EntityCandidates[0].Candidates, 2)

	assert.Nil(t, payload.RuntimeControl)
	assert.Nil(t, payload.FallbackFrom)
}

func TestBuildUIPayloadDebateFallback(t *testing.T) {
	result := &models.RunResult{
		Answer:       "fallback answer",
		FallbackFrom: "debate",
		DebateState:  models.ReadinessBlocked,
		AgentStatuses: []models.AgentStatus{
			{Database: "kgnormal", Status: models.StatusFailed, Error: "unreachable"},
		},
	}

	payload := BuildUIPayload("debate", result)

	require.NotNil(t, payload.RuntimeControl)
	assert.Equal(t, "debate", payload.RuntimeControl.RequestedMode)
	assert.Equal(t, "semantic", payload.RuntimeControl.ExecutedMode)
	assert.Equal(t, "debate_blocked", payload.RuntimeControl.Reason)

	require.NotNil(t, payload.FallbackFrom)
	assert.Equal(t, "debate", payload.FallbackFrom.Mode)
	assert.Equal(t, models.ReadinessBlocked, payload.FallbackFrom.DebateState)
	require.Len(t, payload.FallbackFrom.AgentStatuses, 1)
}
