// Package semantic implements entity resolution, query routing, and the
// resolver-to-answer flow that turns a natural-language question into a
// grounded response.
package semantic

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// OntologyHintStore holds offline-built resolution hints: alias → canonical
// surface forms and per-label keyword sets. Built by the ingestion pipeline;
// read-only at request time.
type OntologyHintStore struct {
	aliases       map[string]string
	labelKeywords map[string][]string
}

type hintsFile struct {
	Aliases       map[string]string   `yaml:"aliases"`
	LabelKeywords map[string][]string `yaml:"label_keywords"`
}

// LoadHints reads a YAML hint store. A missing file yields an empty store;
// a malformed file is an error.
func LoadHints(path string) (*OntologyHintStore, error) {
	store := &OntologyHintStore{
		aliases:       map[string]string{},
		labelKeywords: map[string][]string{},
	}
	if path == "" {
		return store, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("read ontology hints: %w", err)
	}
	var file hintsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse ontology hints: %w", err)
	}
	for alias, canonical := range file.Aliases {
		key := NormalizeAlias(alias)
		if key != "" && canonical != "" {
			store.aliases[key] = canonical
		}
	}
	for label, keywords := range file.LabelKeywords {
		cleaned := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			if kw = NormalizeAlias(kw); kw != "" {
				cleaned = append(cleaned, kw)
			}
		}
		if label != "" && len(cleaned) > 0 {
			store.labelKeywords[label] = cleaned
		}
	}
	return store, nil
}

// ResolveAlias maps a surface form to its canonical form, or returns the
// input unchanged.
func (s *OntologyHintStore) ResolveAlias(text string) string {
	if canonical, ok := s.aliases[NormalizeAlias(text)]; ok {
		return canonical
	}
	return text
}

// InferLabelHints returns labels whose keywords appear in the question.
func (s *OntologyHintStore) InferLabelHints(question string) []string {
	q := " " + NormalizeAlias(question) + " "
	var hints []string
	for label, keywords := range s.labelKeywords {
		for _, kw := range keywords {
			if strings.Contains(q, " "+kw+" ") {
				hints = append(hints, label)
				break
			}
		}
	}
	sort.Strings(hints)
	return hints
}

// Summary reports store sizes for diagnostics payloads.
func (s *OntologyHintStore) Summary() map[string]int {
	return map[string]int{
		"aliases": len(s.aliases),
		"labels":  len(s.labelKeywords),
	}
}
