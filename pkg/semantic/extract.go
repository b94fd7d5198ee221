package semantic

import (
	"regexp"
	"strings"
)

// MaxMentions caps how many entity mentions a single question contributes.
const MaxMentions = 8

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "of": true, "to": true, "in": true, "on": true,
	"for": true, "and": true, "or": true, "do": true, "does": true,
	"did": true, "what": true, "which": true, "who": true, "whom": true,
	"where": true, "when": true, "why": true, "how": true, "tell": true,
	"show": true, "about": true, "please": true,
}

var (
	doubleQuotedRe = regexp.MustCompile(`"([^"]+)"`)
	singleQuotedRe = regexp.MustCompile(`'([^']+)'`)
	capitalizedRe  = regexp.MustCompile(`\b(?:[A-Z][a-zA-Z0-9&.-]+|[A-Z]{2,})(?:\s+[A-Z][a-zA-Z0-9&.-]+)*\b`)
	longTokenRe    = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9&._-]{2,}`)
	digitsOnlyRe   = regexp.MustCompile(`^[0-9]+$`)
	spanTrimSet    = ".,:;!?()[]{}"
)

// ExtractMentions pulls candidate entity spans out of a question: quoted
// spans, capitalized spans, then a long-token fallback when nothing else
// matched. Deduplicated case-insensitively, stopword-filtered, capped at
// MaxMentions.
func ExtractMentions(question string) []string {
	var mentions []string
	seen := map[string]bool{}

	add := func(value string) bool {
		cleaned := cleanSpan(value)
		if cleaned == "" {
			return false
		}
		key := strings.ToLower(cleaned)
		if seen[key] || stopwords[key] {
			return false
		}
		seen[key] = true
		mentions = append(mentions, cleaned)
		return true
	}

	for _, m := range doubleQuotedRe.FindAllStringSubmatch(question, -1) {
		add(m[1])
	}
	for _, m := range singleQuotedRe.FindAllStringSubmatch(question, -1) {
		add(m[1])
	}
	for _, m := range capitalizedRe.FindAllString(question, -1) {
		add(m)
	}

	if len(mentions) == 0 {
		for _, token := range longTokenRe.FindAllString(question, -1) {
			if digitsOnlyRe.MatchString(token) {
				continue
			}
			if add(token) && len(mentions) >= 3 {
				break
			}
		}
	}

	if len(mentions) > MaxMentions {
		mentions = mentions[:MaxMentions]
	}
	return mentions
}

func cleanSpan(value string) string {
	cleaned := strings.Join(strings.Fields(value), " ")
	return strings.Trim(cleaned, spanTrimSet)
}
