package graph

import (
	"fmt"
	"regexp"
	"strings"
)

// mutationRe matches Cypher keywords that modify the graph. The guard scans
// the whole statement, not just the first keyword, so prefixed mutations
// like "MATCH (n) DETACH DELETE n" are rejected too.
var mutationRe = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|FOREACH)\b|\bLOAD\s+CSV\b|\bIN\s+TRANSACTIONS\b`)

// lineCommentRe strips // comments so commented-out mutations do not trip
// the guard.
var lineCommentRe = regexp.MustCompile(`//[^\n]*`)

var blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)

// GuardReadOnly rejects statements containing mutating keywords before any
// I/O happens. Conservative on purpose: a keyword inside a string literal is
// still rejected.
func GuardReadOnly(db, cypher string) error {
	stripped := blockCommentRe.ReplaceAllString(cypher, " ")
	stripped = lineCommentRe.ReplaceAllString(stripped, " ")
	if strings.TrimSpace(stripped) == "" {
		return &Error{Kind: KindForbidden, Database: db, Err: fmt.Errorf("empty statement")}
	}
	if m := mutationRe.FindString(stripped); m != "" {
		return &Error{Kind: KindForbidden, Database: db, Err: fmt.Errorf("mutating keyword %q in read-only query", strings.ToUpper(strings.Join(strings.Fields(m), " ")))}
	}
	return nil
}
