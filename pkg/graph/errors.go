package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Kind classifies gateway failures so callers can react without parsing
// driver error strings.
type Kind string

const (
	KindUnreachable Kind = "unreachable"
	KindSyntax      Kind = "syntax"
	KindTimeout     Kind = "timeout"
	KindForbidden   Kind = "forbidden"
	KindInternal    Kind = "internal"
)

// Error wraps a gateway failure with its kind and target database.
type Error struct {
	Kind     Kind
	Database string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("graph %s (db=%s): %v", e.Kind, e.Database, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain. Returns KindInternal
// for non-gateway errors.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// classify maps a driver error to a gateway Error. Connectivity failures and
// context deadlines get their own kinds so the pool and supervisor can
// downgrade or time out the request cleanly.
func classify(db string, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Database: db, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindTimeout, Database: db, Err: err}
	case neo4j.IsConnectivityError(err):
		return &Error{Kind: KindUnreachable, Database: db, Err: err}
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		code := neoErr.Code
		switch {
		case strings.Contains(code, "SyntaxError"), strings.Contains(code, "ParameterMissing"):
			return &Error{Kind: KindSyntax, Database: db, Err: err}
		case strings.Contains(code, "DatabaseNotFound"):
			return &Error{Kind: KindUnreachable, Database: db, Err: err}
		}
	}
	return &Error{Kind: KindInternal, Database: db, Err: err}
}
