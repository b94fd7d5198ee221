package graph

import (
	"context"
	"fmt"
	"strings"
)

// Schema is a point-in-time snapshot of a database's labels, relationship
// types, and property keys. Rendered into agent instructions.
type Schema struct {
	Database          string
	Labels            []string
	RelationshipTypes []string
	PropertyKeys      []string
}

// String renders the schema block embedded in agent instructions.
func (s Schema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database: %s\n", s.Database)
	fmt.Fprintf(&b, "Node labels: %s\n", orNone(s.Labels))
	fmt.Fprintf(&b, "Relationship types: %s\n", orNone(s.RelationshipTypes))
	fmt.Fprintf(&b, "Property keys: %s\n", orNone(s.PropertyKeys))
	return b.String()
}

func orNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}

// SchemaSnapshot probes a database's schema. Also serves as the readiness
// probe: an unreachable database fails here before any agent is built.
func (g *Gateway) SchemaSnapshot(ctx context.Context, db string) (Schema, error) {
	schema := Schema{Database: db}

	labels, err := g.stringColumn(ctx, db, "CALL db.labels() YIELD label RETURN label", "label")
	if err != nil {
		return schema, err
	}
	rels, err := g.stringColumn(ctx, db, "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType", "relationshipType")
	if err != nil {
		return schema, err
	}
	props, err := g.stringColumn(ctx, db, "CALL db.propertyKeys() YIELD propertyKey RETURN propertyKey", "propertyKey")
	if err != nil {
		return schema, err
	}

	schema.Labels, schema.RelationshipTypes, schema.PropertyKeys = labels, rels, props
	return schema, nil
}

func (g *Gateway) stringColumn(ctx context.Context, db, cypher, column string) ([]string, error) {
	rows, err := g.RunCypher(ctx, db, cypher, nil)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		if v, ok := row[column].(string); ok {
			values = append(values, v)
		}
	}
	return values, nil
}
