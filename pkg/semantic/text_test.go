package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAlias(t *testing.T) {
	assert.Equal(t, "acme inc", NormalizeAlias("Acme, Inc."))
	assert.Equal(t, "acme inc", NormalizeAlias("  ACME   INC  "))
	assert.Equal(t, "", NormalizeAlias("!!!"))
}

func TestLexicalSim(t *testing.T) {
	assert.Equal(t, 1.0, LexicalSim("Acme", "ACME"))
	assert.Equal(t, 0.0, LexicalSim("", "anything"))
	assert.Greater(t, LexicalSim("Acme", "Acme Inc"), LexicalSim("Acme", "Globex Corp"))
	assert.InDelta(t, LexicalSim("abc", "abd"), 2.0/3.0, 0.001)
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{"quoted", `Who owns "Acme Corp"?`, []string{"Acme Corp"}},
		{"capitalized run", "How is Global Dynamics related to Initech?", []string{"Global Dynamics", "Initech"}},
		{"stopword fallback", "What is the graph?", []string{"graph"}},
		{"long token fallback", "count relationships between suppliers", []string{"count", "relationships", "between"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMentions(tt.question)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestExtractMentionsCapped(t *testing.T) {
	question := `"a1" "a2" "a3" "a4" "a5" "a6" "a7" "a8" "a9" "a10"`
	assert.Len(t, ExtractMentions(question), MaxMentions)
}
