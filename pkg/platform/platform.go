// Package platform shapes orchestration results for the chat surface:
// bounded session history plus UI-friendly cards, trace summaries, and
// entity candidate groups.
package platform

import (
	"fmt"
	"sync"
	"time"

	"github.com/seocho-project/graphqa/pkg/dispatch"
	"github.com/seocho-project/graphqa/pkg/models"
)

// DefaultMaxTurns bounds a chat session's retained history.
const DefaultMaxTurns = 100

// Turn is one chat message.
type Turn struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	At       time.Time      `json:"at"`
}

// SessionStore keeps per-session chat history in memory, oldest turns
// evicted first. Safe for concurrent use.
type SessionStore struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[string][]Turn
}

// NewSessionStore creates a store. maxTurns below 1 falls back to
// DefaultMaxTurns.
func NewSessionStore(maxTurns int) *SessionStore {
	if maxTurns < 1 {
		maxTurns = DefaultMaxTurns
	}
	return &SessionStore{maxTurns: maxTurns, sessions: make(map[string][]Turn)}
}

// Append records one turn, evicting the oldest above the cap.
func (s *SessionStore) Append(sessionID, role, content string, metadata map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[sessionID], Turn{
		Role:     role,
		Content:  content,
		Metadata: metadata,
		At:       time.Now(),
	})
	if len(history) > s.maxTurns {
		history = history[len(history)-s.maxTurns:]
	}
	s.sessions[sessionID] = history
}

// History returns a copy of the session's turns.
func (s *SessionStore) History(sessionID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.sessions[sessionID]))
	copy(out, s.sessions[sessionID])
	return out
}

// Clear drops a session.
func (s *SessionStore) Clear(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// RuntimeControl reports when the executed mode differs from the requested
// one.
type RuntimeControl struct {
	RequestedMode string `json:"requested_mode"`
	ExecutedMode  string `json:"executed_mode"`
	Reason        string `json:"reason"`
}

// FallbackInfo carries the failed mode's evidence alongside the fallback's
// answer.
type FallbackInfo struct {
	Mode          string               `json:"mode"`
	DebateState   string               `json:"debate_state"`
	AgentStatuses []models.AgentStatus `json:"agent_statuses"`
}

// Card is one UI card.
type Card struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CandidateGroup groups resolution candidates per question entity.
type CandidateGroup struct {
	QuestionEntity string                   `json:"question_entity"`
	Candidates     []models.CandidateEntity `json:"candidates"`
}

// UIPayload is the frontend-facing rendering of a run.
type UIPayload struct {
	Cards            []Card           `json:"cards"`
	TraceSummary     map[string]int   `json:"trace_summary"`
	EntityCandidates []CandidateGroup `json:"entity_candidates"`
	RuntimeControl   *RuntimeControl  `json:"runtime_control,omitempty"`
	FallbackFrom     *FallbackInfo    `json:"fallback_from,omitempty"`
}

// BuildUIPayload shapes a RunResult for the chat frontend. A debate that
// fell back to the semantic flow is flagged through runtime_control so the
// UI can tell the user what actually ran.
func BuildUIPayload(requestedMode string, result *models.RunResult) *UIPayload {
	traceSummary := map[string]int{}
	for _, step := range result.TraceSteps {
		traceSummary[string(step.Type)]++
	}

	payload := &UIPayload{
		Cards: []Card{
			{Kind: "summary", Title: "Mode: " + requestedMode, Body: result.Answer},
			{Kind: "trace", Title: "Trace Steps", Body: fmt.Sprintf("%d steps", len(result.TraceSteps))},
		},
		TraceSummary:     traceSummary,
		EntityCandidates: candidateGroups(result.Semantic),
	}

	if result.FallbackFrom != "" {
		payload.RuntimeControl = &RuntimeControl{
			RequestedMode: requestedMode,
			ExecutedMode:  dispatch.ModeSemantic,
			Reason:        "debate_blocked",
		}
		payload.FallbackFrom = &FallbackInfo{
			Mode:          result.FallbackFrom,
			DebateState:   result.DebateState,
			AgentStatuses: result.AgentStatuses,
		}
	}
	return payload
}

func candidateGroups(sc *models.SemanticContext) []CandidateGroup {
	if sc == nil {
		return nil
	}
	byMention := map[string][]models.CandidateEntity{}
	for _, c := range sc.Candidates {
		byMention[c.Mention] = append(byMention[c.Mention], c)
	}
	groups := make([]CandidateGroup, 0, len(byMention))
	for _, mention := range sc.Mentions {
		if candidates, ok := byMention[mention]; ok {
			groups = append(groups, CandidateGroup{QuestionEntity: mention, Candidates: candidates})
		}
	}
	return groups
}
