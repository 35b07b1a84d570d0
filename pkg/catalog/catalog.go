// Package catalog provides the collaborator implementations the
// partition generator consumes: relation metadata lookup, identifier
// construction with the PostgreSQL length rules, and sub-partition
// template storage. In-memory implementations back tests and offline
// expansion; the live PostgreSQL implementations sit in
// internal/database/postgres.
package catalog

import (
	"context"

	"github.com/tablekit/partgen/pkg/partition"
)

// Accessor resolves a parent relation's metadata: identity, partition
// key with types and collations, and the storage attributes children
// inherit.
type Accessor interface {
	LookupRelation(ctx context.Context, namespace, name string) (*partition.Relation, error)
}
