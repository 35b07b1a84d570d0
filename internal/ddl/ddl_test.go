package ddl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekit/partgen/pkg/datum"
	"github.com/tablekit/partgen/pkg/partition"
)

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"sales"`, QuoteIdentifier("sales"))
	assert.Equal(t, `"sa""les"`, QuoteIdentifier(`sa"les`))
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, `"public"."sales"`, QualifiedName("public", "sales"))
	assert.Equal(t, `"sales"`, QualifiedName("", "sales"))
}

func TestFormatLiteral(t *testing.T) {
	assert.Equal(t, "42", FormatLiteral(datum.Int4{V: 42}))
	assert.Equal(t, "-7", FormatLiteral(datum.Int8{V: -7}))
	assert.Equal(t, "1.5", FormatLiteral(datum.Float8{V: 1.5}))
	assert.Equal(t, "true", FormatLiteral(datum.Bool{V: true}))
	assert.Equal(t, "'2024-01-01'", FormatLiteral(datum.Date{Year: 2024, Month: 1, Day: 1}))
	assert.Equal(t, "'it''s'", FormatLiteral(datum.Text{S: "it's"}))
	assert.Equal(t, "NULL", FormatLiteral(nil))
}

func rangeBound(lo, hi int32) partition.BoundSpec {
	return partition.BoundSpec{
		Strategy: partition.StrategyRange,
		Lower:    []partition.Bound{partition.ValueBound(datum.Int4{V: lo})},
		Upper:    []partition.Bound{partition.ValueBound(datum.Int4{V: hi})},
	}
}

func TestCreateTable(t *testing.T) {
	t.Run("range child", func(t *testing.T) {
		c := &partition.Child{
			Name:        "sales_1_prt_1",
			Namespace:   "public",
			Persistence: partition.PersistencePermanent,
			Parent:      "sales",
			Bound:       rangeBound(1, 4),
		}
		want := `CREATE TABLE "public"."sales_1_prt_1"
    PARTITION OF "public"."sales"
    FOR VALUES FROM (1) TO (4)`
		assert.Equal(t, want, CreateTable(c))
	})

	t.Run("open ended bounds use sentinels", func(t *testing.T) {
		c := &partition.Child{
			Name:      "p",
			Namespace: "public",
			Parent:    "sales",
			Bound: partition.BoundSpec{
				Strategy: partition.StrategyRange,
				Lower:    []partition.Bound{partition.MinValueBound()},
				Upper:    []partition.Bound{partition.MaxValueBound()},
			},
		}
		assert.Contains(t, CreateTable(c), "FOR VALUES FROM (MINVALUE) TO (MAXVALUE)")
	})

	t.Run("list child with null", func(t *testing.T) {
		c := &partition.Child{
			Name:      "p",
			Namespace: "public",
			Parent:    "sales",
			Bound: partition.BoundSpec{
				Strategy:   partition.StrategyList,
				ListValues: []datum.Value{datum.Int4{V: 1}, nil},
			},
		}
		assert.Contains(t, CreateTable(c), "FOR VALUES IN (1, NULL)")
	})

	t.Run("default child", func(t *testing.T) {
		c := &partition.Child{
			Name:      "p",
			Namespace: "public",
			Parent:    "sales",
			Bound:     partition.BoundSpec{Strategy: partition.StrategyDefault, IsDefault: true},
		}
		got := CreateTable(c)
		assert.Contains(t, got, "\n    DEFAULT")
		assert.NotContains(t, got, "FOR VALUES")
	})

	t.Run("unlogged persistence", func(t *testing.T) {
		c := &partition.Child{
			Name:        "p",
			Namespace:   "public",
			Persistence: partition.PersistenceUnlogged,
			Parent:      "sales",
			Bound:       rangeBound(1, 2),
		}
		assert.True(t, strings.HasPrefix(CreateTable(c), "CREATE UNLOGGED TABLE"))
	})

	t.Run("storage clauses in grammar order", func(t *testing.T) {
		c := &partition.Child{
			Name:         "p",
			Namespace:    "public",
			Parent:       "sales",
			Bound:        rangeBound(1, 2),
			AccessMethod: "ao_row",
			Options: []partition.Option{
				{Name: "fillfactor", Value: "70"},
				{Name: "appendonly", Value: "true"},
			},
			Tablespace:    "fast",
			DistributedBy: []string{"j", "k"},
			PartitionBy: &partition.SubPartition{
				Strategy: partition.StrategyList,
				Column:   "region",
			},
		}
		got := CreateTable(c)

		want := `CREATE TABLE "public"."p"
    PARTITION OF "public"."sales"
    FOR VALUES FROM (1) TO (2)
    PARTITION BY LIST ("region")
    USING "ao_row"
    WITH (fillfactor='70', appendonly='true')
    TABLESPACE "fast"
    DISTRIBUTED BY ("j", "k")`
		assert.Equal(t, want, got)
	})

	t.Run("encoding directives", func(t *testing.T) {
		c := &partition.Child{
			Name:      "p",
			Namespace: "public",
			Parent:    "sales",
			Bound:     rangeBound(1, 2),
			Encodings: []partition.EncodingDirective{
				{Column: "a", Options: []partition.Option{{Name: "compresstype", Value: "zlib"}}},
				{Default: true, Options: []partition.Option{{Name: "compresstype", Value: "rle_type"}}},
			},
		}
		got := CreateTable(c)
		assert.Contains(t, got, `COLUMN "a" ENCODING (compresstype='zlib')`)
		assert.Contains(t, got, "DEFAULT COLUMN ENCODING (compresstype='rle_type')")
		require.Less(t, strings.Index(got, "ENCODING"), strings.Index(got, "FOR VALUES"),
			"element list precedes the bound clause")
	})
}

func TestStatements(t *testing.T) {
	tree := []partition.Child{
		{
			Name:      "p1",
			Namespace: "public",
			Parent:    "sales",
			Owner:     "dba",
			Bound:     rangeBound(1, 4),
			Children: []partition.Child{
				{
					Name:      "p1_sub",
					Namespace: "public",
					Parent:    "p1",
					Bound: partition.BoundSpec{
						Strategy:   partition.StrategyList,
						ListValues: []datum.Value{datum.Int4{V: 1}},
					},
				},
			},
		},
		{
			Name:      "p2",
			Namespace: "public",
			Parent:    "sales",
			Bound:     rangeBound(4, 7),
		},
	}

	stmts := Statements(tree)
	require.Len(t, stmts, 4)

	assert.Contains(t, stmts[0], `CREATE TABLE "public"."p1"`)
	assert.Equal(t, `ALTER TABLE "public"."p1" OWNER TO "dba"`, stmts[1])
	assert.Contains(t, stmts[2], `"public"."p1_sub"`)
	assert.Contains(t, stmts[2], `PARTITION OF "public"."p1"`)
	assert.Contains(t, stmts[3], `CREATE TABLE "public"."p2"`)
}

func TestScript(t *testing.T) {
	t.Run("statements separated and terminated", func(t *testing.T) {
		tree := []partition.Child{
			{Name: "p1", Namespace: "public", Parent: "s", Bound: rangeBound(1, 2)},
			{Name: "p2", Namespace: "public", Parent: "s", Bound: rangeBound(2, 3)},
		}
		got := Script(tree)
		assert.Equal(t, 2, strings.Count(got, ";"))
		assert.True(t, strings.HasSuffix(got, ";\n"))
	})

	t.Run("empty tree renders nothing", func(t *testing.T) {
		assert.Empty(t, Script(nil))
	})
}
