// Package postgres implements the generator's catalog collaborators
// against a live PostgreSQL database: relation metadata lookup, name
// de-duplication, sub-partition template storage and transactional
// script execution.
package postgres

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablekit/partgen/pkg/datum"
	"github.com/tablekit/partgen/pkg/partition"
)

const relationCacheSize = 128

// Accessor resolves parent relation metadata from the system catalogs.
// Lookups are cached; call Invalidate after DDL that changes a parent.
type Accessor struct {
	pool  *pgxpool.Pool
	cache *lru.Cache[string, *partition.Relation]
}

func NewAccessor(pool *pgxpool.Pool) (*Accessor, error) {
	cache, err := lru.New[string, *partition.Relation](relationCacheSize)
	if err != nil {
		return nil, fmt.Errorf("error creating relation cache: %w", err)
	}
	return &Accessor{pool: pool, cache: cache}, nil
}

// relationQuery collects everything the generator needs about a parent
// in one round trip. The key vectors come back whole so a multi-column
// key loads as a multi-column Relation; the generator refuses widths
// other than one with its usual message.
const relationQuery = `
SELECT c.oid,
       c.relname,
       n.nspname,
       pg_get_userbyid(c.relowner),
       c.relpersistence::text,
       coalesce(am.amname, ''),
       coalesce(ts.spcname, ''),
       c.reloptions,
       pt.partstrat::text,
       pt.partattrs::int2[],
       pt.partcollation::oid[],
       (SELECT count(*) - 1 FROM pg_partition_ancestors(c.oid))
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_partitioned_table pt ON pt.partrelid = c.oid
LEFT JOIN pg_am am ON am.oid = c.relam
LEFT JOIN pg_tablespace ts ON ts.oid = c.reltablespace
WHERE n.nspname = $1 AND c.relname = $2`

// LookupRelation loads a partitioned parent's identity, partition key
// and inheritable storage attributes.
func (a *Accessor) LookupRelation(ctx context.Context, namespace, name string) (*partition.Relation, error) {
	key := namespace + "." + name
	if rel, ok := a.cache.Get(key); ok {
		return rel, nil
	}

	var (
		oid         uint32
		rel         partition.Relation
		persistence string
		reloptions  []string
		strategy    string
		partattrs   []int16
		collations  []uint32
		ancestors   int
	)
	err := a.pool.QueryRow(ctx, relationQuery, namespace, name).Scan(
		&oid, &rel.Name, &rel.Namespace, &rel.Owner, &persistence,
		&rel.AccessMethod, &rel.Tablespace, &reloptions,
		&strategy, &partattrs, &collations, &ancestors,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("relation %q does not exist or is not partitioned", key)
	}
	if err != nil {
		return nil, fmt.Errorf("error looking up relation %q: %w", key, err)
	}

	switch persistence {
	case "u":
		rel.Persistence = partition.PersistenceUnlogged
	case "t":
		rel.Persistence = partition.PersistenceTemporary
	default:
		rel.Persistence = partition.PersistencePermanent
	}

	switch strategy {
	case "r":
		rel.Strategy = partition.StrategyRange
	case "l":
		rel.Strategy = partition.StrategyList
	default:
		return nil, fmt.Errorf("relation %q uses unsupported partition strategy %q", key, strategy)
	}

	if err := a.loadKeyColumns(ctx, oid, partattrs, collations, &rel); err != nil {
		return nil, fmt.Errorf("relation %q: %w", key, err)
	}
	rel.Options = parseRelOptions(reloptions)
	rel.Ancestors = ancestors

	if err := a.loadDistribution(ctx, oid, &rel); err != nil {
		return nil, fmt.Errorf("relation %q: %w", key, err)
	}

	a.cache.Add(key, &rel)
	return &rel, nil
}

const keyColumnQuery = `
SELECT a.attname,
       format_type(a.atttypid, a.atttypmod),
       coalesce((SELECT collname FROM pg_collation WHERE oid = $3), '')
FROM pg_attribute a
WHERE a.attrelid = $1 AND a.attnum = $2`

// keyColumnAttr is what the catalog reports for one partition key entry.
type keyColumnAttr struct {
	name      string
	typeName  string
	collation string
}

// loadKeyColumns resolves every entry of the partition key vector. Key
// width is not checked here; the generator rejects multi-column keys.
func (a *Accessor) loadKeyColumns(ctx context.Context, oid uint32, attnums []int16, collations []uint32, rel *partition.Relation) error {
	attrs := make([]keyColumnAttr, 0, len(attnums))
	for i, attnum := range attnums {
		if attnum == 0 {
			return fmt.Errorf("partition key column %d is an expression, only plain columns are supported", i+1)
		}
		var collOid uint32
		if i < len(collations) {
			collOid = collations[i]
		}
		var attr keyColumnAttr
		err := a.pool.QueryRow(ctx, keyColumnQuery, oid, attnum, collOid).Scan(
			&attr.name, &attr.typeName, &attr.collation)
		if err != nil {
			return fmt.Errorf("error resolving partition key column %d: %w", attnum, err)
		}
		attrs = append(attrs, attr)
	}
	cols, err := buildKeyColumns(attrs)
	if err != nil {
		return err
	}
	rel.KeyColumns = cols
	return nil
}

// buildKeyColumns turns resolved key attributes into typed KeyColumns,
// one per vector entry in catalog order.
func buildKeyColumns(attrs []keyColumnAttr) ([]partition.KeyColumn, error) {
	cols := make([]partition.KeyColumn, 0, len(attrs))
	for _, attr := range attrs {
		typ, err := datum.ParseType(attr.typeName)
		if err != nil {
			return nil, err
		}
		cols = append(cols, partition.KeyColumn{
			Name:      attr.name,
			Type:      typ,
			Collation: datum.Collation(attr.collation),
		})
	}
	return cols, nil
}

const distributionQuery = `
SELECT distkey::int2[] FROM gp_distribution_policy WHERE localoid = $1`

const attnameQuery = `
SELECT attname FROM pg_attribute WHERE attrelid = $1 AND attnum = $2`

// loadDistribution fills DistributedBy on clusters that carry the
// gp_distribution_policy catalog. Stock PostgreSQL has no such catalog
// and randomly distributed tables have an empty distkey; both leave the
// relation without a distribution clause.
func (a *Accessor) loadDistribution(ctx context.Context, oid uint32, rel *partition.Relation) error {
	var present bool
	err := a.pool.QueryRow(ctx, `SELECT to_regclass('pg_catalog.gp_distribution_policy') IS NOT NULL`).Scan(&present)
	if err != nil {
		return fmt.Errorf("error probing for distribution catalog: %w", err)
	}
	if !present {
		return nil
	}

	var distkey []int16
	err = a.pool.QueryRow(ctx, distributionQuery, oid).Scan(&distkey)
	if err == pgx.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading distribution policy: %w", err)
	}

	for _, attnum := range distkey {
		var attname string
		if err := a.pool.QueryRow(ctx, attnameQuery, oid, attnum).Scan(&attname); err != nil {
			return fmt.Errorf("error resolving distribution column %d: %w", attnum, err)
		}
		rel.DistributedBy = append(rel.DistributedBy, attname)
	}
	return nil
}

// Invalidate drops a cached relation after DDL has changed it.
func (a *Accessor) Invalidate(namespace, name string) {
	a.cache.Remove(namespace + "." + name)
}

// parseRelOptions splits pg_class.reloptions entries of the form
// "fillfactor=70" into option pairs.
func parseRelOptions(raw []string) []partition.Option {
	if len(raw) == 0 {
		return nil
	}
	opts := make([]partition.Option, 0, len(raw))
	for _, entry := range raw {
		name, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		opts = append(opts, partition.Option{Name: name, Value: value})
	}
	return opts
}
