// Package registry is the single source of truth for database names and
// Cypher identifiers. Every component consults it before accepting a
// database name from input; labels interpolated into Cypher must pass
// ValidateLabel first.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Sentinel errors for identifier validation and lookup.
var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrNotRegistered     = errors.New("database not registered")
)

var (
	dbNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
	labelRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// systemDatabases are excluded from user-facing listings. agenttraces is
// the trace store and never a debate or semantic target.
var systemDatabases = map[string]bool{
	"neo4j":       true,
	"system":      true,
	"agenttraces": true,
}

// Registry is an append-only, case-sensitive allowlist of database names.
// Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	databases map[string]bool
}

// New creates a Registry seeded with the built-in databases.
func New() *Registry {
	return &Registry{
		databases: map[string]bool{
			"neo4j":       true,
			"system":      true,
			"kgnormal":    true,
			"kgfibo":      true,
			"agenttraces": true,
		},
	}
}

// RegisterDB validates and registers a database name. Registration is
// idempotent.
func (r *Registry) RegisterDB(name string) error {
	if !dbNameRe.MatchString(name) {
		return fmt.Errorf("%w: database name %q must be alphanumeric and start with a letter", ErrInvalidIdentifier, name)
	}
	r.mu.Lock()
	r.databases[name] = true
	r.mu.Unlock()
	return nil
}

// IsValid reports whether the name is registered.
func (r *Registry) IsValid(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.databases[name]
}

// Require returns ErrNotRegistered (or ErrInvalidIdentifier for malformed
// names) when the database is not usable as a request target.
func (r *Registry) Require(name string) error {
	if !dbNameRe.MatchString(name) {
		return fmt.Errorf("%w: database name %q", ErrInvalidIdentifier, name)
	}
	if !r.IsValid(name) {
		return fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return nil
}

// ListUserDBs returns registered databases excluding system databases,
// sorted for stable output.
func (r *Registry) ListUserDBs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.databases))
	for name := range r.databases {
		if systemDatabases[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateLabel checks a Cypher label or relationship type. Labels are
// treated as code: they are interpolated into queries, so anything outside
// the identifier grammar is rejected before I/O.
func ValidateLabel(label string) error {
	if !labelRe.MatchString(label) {
		return fmt.Errorf("%w: label %q", ErrInvalidIdentifier, label)
	}
	return nil
}

// ValidateIdentifiers validates a list of labels, properties, or index
// names, returning the cleaned list. Empty entries are dropped; an empty
// result is an error.
func ValidateIdentifiers(values []string, field string) ([]string, error) {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if !labelRe.MatchString(v) {
			return nil, fmt.Errorf("%w: %q in %s", ErrInvalidIdentifier, v, field)
		}
		cleaned = append(cleaned, v)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: %s must contain at least one identifier", ErrInvalidIdentifier, field)
	}
	return cleaned, nil
}
