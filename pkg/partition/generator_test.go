package partition

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekit/partgen/pkg/datum"
)

// fakeNamer joins name parts without length clipping and de-duplicates
// unnamed children against everything it has handed out.
type fakeNamer struct {
	existing map[string]bool
}

func newFakeNamer() *fakeNamer {
	return &fakeNamer{existing: map[string]bool{}}
}

func (f *fakeNamer) MakeObjectName(name1, name2, label string) string {
	name := name1 + "_" + name2 + "_" + label
	f.existing[name] = true
	return name
}

func (f *fakeNamer) ChooseRelationName(_ context.Context, name1, name2, label, _ string) (string, error) {
	for pass := 0; ; pass++ {
		modlabel := label
		if pass > 0 {
			modlabel = fmt.Sprintf("%s%d", label, pass)
		}
		name := name1 + "_" + name2 + "_" + modlabel
		if !f.existing[name] {
			f.existing[name] = true
			return name, nil
		}
	}
}

type templateKey struct {
	relation string
	level    int
}

type fakeTemplateStore struct {
	stored map[templateKey]*Definition
	calls  int
}

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{stored: map[templateKey]*Definition{}}
}

func (s *fakeTemplateStore) StoreTemplate(_ context.Context, relation string, level int, def *Definition) error {
	s.calls++
	k := templateKey{relation, level}
	if _, ok := s.stored[k]; ok {
		return nil
	}
	s.stored[k] = def
	return nil
}

func (s *fakeTemplateStore) GetTemplate(_ context.Context, relation string, level int) (*Definition, error) {
	return s.stored[templateKey{relation, level}], nil
}

func (s *fakeTemplateStore) RemoveTemplate(_ context.Context, relation string, level int) error {
	delete(s.stored, templateKey{relation, level})
	return nil
}

func rangeParent() *Relation {
	return &Relation{
		Name:        "sales",
		Namespace:   "public",
		Persistence: PersistencePermanent,
		Owner:       "dba",
		Strategy:    StrategyRange,
		KeyColumns:  []KeyColumn{intCol()},
	}
}

func listParent() *Relation {
	p := rangeParent()
	p.Strategy = StrategyList
	return p
}

func rangeElem(name string, start, end *Expr, every *Expr) Element {
	return Element{Name: name, Range: &RangeSpec{Start: start, End: end, Every: every}}
}

func generate(t *testing.T, parent *Relation, def *Definition) []Child {
	t.Helper()
	g := NewGenerator(newFakeNamer(), nil)
	children, err := g.Generate(context.Background(), parent, def, nil)
	require.NoError(t, err)
	return children
}

func generateErr(t *testing.T, parent *Relation, def *Definition) *SpecError {
	t.Helper()
	g := NewGenerator(newFakeNamer(), nil)
	_, err := g.Generate(context.Background(), parent, def, nil)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	return se
}

func lowerInt(t *testing.T, c Child) int32 {
	t.Helper()
	require.Len(t, c.Bound.Lower, 1)
	require.Equal(t, BoundValue, c.Bound.Lower[0].Kind)
	return c.Bound.Lower[0].Value.(datum.Int4).V
}

func upperInt(t *testing.T, c Child) int32 {
	t.Helper()
	require.Len(t, c.Bound.Upper, 1)
	require.Equal(t, BoundValue, c.Bound.Upper[0].Kind)
	return c.Bound.Upper[0].Value.(datum.Int4).V
}

func TestGenerateRange(t *testing.T) {
	t.Run("every expansion with sequence names", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			rangeElem("", intExpr(1), intExpr(10), intExpr(3)),
		}}
		got := generate(t, rangeParent(), def)
		require.Len(t, got, 3)

		assert.Equal(t, []string{"sales_1_prt_1", "sales_1_prt_2", "sales_1_prt_3"}, names(got))
		assert.Equal(t, int32(1), lowerInt(t, got[0]))
		assert.Equal(t, int32(4), upperInt(t, got[0]))
		assert.Equal(t, int32(4), lowerInt(t, got[1]))
		assert.Equal(t, int32(7), upperInt(t, got[1]))
		assert.Equal(t, int32(7), lowerInt(t, got[2]))
		assert.Equal(t, int32(10), upperInt(t, got[2]))

		for _, c := range got {
			assert.Equal(t, "sales", c.Parent)
			assert.Equal(t, "public", c.Namespace)
			assert.Equal(t, PersistencePermanent, c.Persistence)
			assert.Equal(t, "dba", c.Owner)
			assert.Equal(t, StrategyRange, c.Bound.Strategy)
		}
	})

	t.Run("named element with every gets numbered suffixes", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			rangeElem("q", intExpr(1), intExpr(7), intExpr(3)),
		}}
		got := generate(t, rangeParent(), def)
		require.Len(t, got, 2)
		assert.Equal(t, []string{"sales_1_prt_q_1", "sales_1_prt_q_2"}, names(got))
	})

	t.Run("suffix applies even when every yields one partition", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			rangeElem("q", intExpr(1), intExpr(4), intExpr(5)),
		}}
		got := generate(t, rangeParent(), def)
		require.Len(t, got, 1)
		assert.Equal(t, "sales_1_prt_q_1", got[0].Name)
		assert.Equal(t, int32(4), upperInt(t, got[0]), "clamped to END")
	})

	t.Run("named element without every keeps its plain name", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			rangeElem("q1", intExpr(1), intExpr(10), nil),
		}}
		got := generate(t, rangeParent(), def)
		require.Len(t, got, 1)
		assert.Equal(t, "sales_1_prt_q1", got[0].Name)
	})

	t.Run("implicit bounds resolved across elements", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			{Name: "", Range: &RangeSpec{End: intExpr(10)}},
			{Name: "", Range: &RangeSpec{Start: intExpr(10), End: intExpr(20)}},
			{Name: "", Range: &RangeSpec{Start: intExpr(20)}},
		}}
		got := generate(t, rangeParent(), def)
		require.Len(t, got, 3)

		assert.Equal(t, []Bound{MinValueBound()}, got[0].Bound.Lower)
		assert.Equal(t, []Bound{MaxValueBound()}, got[2].Bound.Upper)
		for i := 0; i < len(got)-1; i++ {
			assert.Equal(t, got[i].Bound.Upper, got[i+1].Bound.Lower)
		}
	})

	t.Run("every error carries the element name", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			rangeElem("bad", intExpr(1), intExpr(10), intExpr(0)),
		}}
		se := generateErr(t, rangeParent(), def)
		assert.Equal(t, ErrArithmeticDomain, se.Kind)
		assert.Equal(t, "EVERY parameter too small", se.Message)
		assert.Equal(t, "bad", se.Partition)
	})

	t.Run("null bound rejected", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			rangeElem("", &Expr{Value: nil}, intExpr(10), nil),
		}}
		se := generateErr(t, rangeParent(), def)
		assert.Equal(t, ErrNullBound, se.Kind)
	})

	t.Run("list spec on range parent", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			{Name: "x", List: &ListSpec{Values: [][]Expr{{*intExpr(1)}}}},
		}}
		se := generateErr(t, rangeParent(), def)
		assert.Equal(t, ErrInvalidSpec, se.Kind)
		assert.Equal(t, "invalid boundary specification for RANGE partition", se.Message)
	})

	t.Run("element without any boundary", func(t *testing.T) {
		def := &Definition{Elements: []Element{{Name: "x"}}}
		se := generateErr(t, rangeParent(), def)
		assert.Equal(t, `missing boundary specification in partition "x" of type RANGE`, se.Message)
	})

	t.Run("two key columns rejected", func(t *testing.T) {
		parent := rangeParent()
		parent.KeyColumns = append(parent.KeyColumns, KeyColumn{Name: "k", Type: datum.TypeInt4})
		def := &Definition{Elements: []Element{
			rangeElem("", intExpr(1), intExpr(10), nil),
		}}
		se := generateErr(t, parent, def)
		assert.Equal(t, "too many columns for RANGE partition -- only one column is allowed", se.Message)
	})

	t.Run("unsupported strategy", func(t *testing.T) {
		parent := rangeParent()
		parent.Strategy = Strategy("hash")
		def := &Definition{Elements: []Element{
			rangeElem("", intExpr(1), intExpr(10), nil),
		}}
		se := generateErr(t, parent, def)
		assert.Equal(t, `unsupported partition strategy "hash"`, se.Message)
	})
}

func TestGenerateList(t *testing.T) {
	t.Run("values become list bounds", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			{Name: "ones", List: &ListSpec{Values: [][]Expr{{*intExpr(1)}, {*intExpr(2)}}}},
		}}
		got := generate(t, listParent(), def)
		require.Len(t, got, 1)
		assert.Equal(t, "sales_1_prt_ones", got[0].Name)
		assert.Equal(t, StrategyList, got[0].Bound.Strategy)
		require.Len(t, got[0].Bound.ListValues, 2)
		assert.Equal(t, datum.Int4{V: 1}, got[0].Bound.ListValues[0])
		assert.Equal(t, datum.Int4{V: 2}, got[0].Bound.ListValues[1])
	})

	t.Run("null membership preserved", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			{Name: "n", List: &ListSpec{Values: [][]Expr{{{Value: nil}}, {*intExpr(5)}}}},
		}}
		got := generate(t, listParent(), def)
		require.Len(t, got, 1)
		require.Len(t, got[0].Bound.ListValues, 2)
		assert.Nil(t, got[0].Bound.ListValues[0])
		assert.Equal(t, datum.Int4{V: 5}, got[0].Bound.ListValues[1])
	})

	t.Run("multi column tuple rejected", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			{Name: "x", List: &ListSpec{Values: [][]Expr{{*intExpr(1), *intExpr(2)}}}},
		}}
		se := generateErr(t, listParent(), def)
		assert.Equal(t, "VALUES specification with more than one column not allowed", se.Message)
		assert.Equal(t, "x", se.Partition)
	})

	t.Run("range spec on list parent", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			rangeElem("x", intExpr(1), intExpr(2), nil),
		}}
		se := generateErr(t, listParent(), def)
		assert.Equal(t, "invalid boundary specification for LIST partition", se.Message)
	})

	t.Run("value cast to the key type", func(t *testing.T) {
		parent := listParent()
		parent.KeyColumns = []KeyColumn{{Name: "j", Type: datum.TypeInt8}}
		def := &Definition{Elements: []Element{
			{Name: "v", List: &ListSpec{Values: [][]Expr{{*intExpr(7)}}}},
		}}
		got := generate(t, parent, def)
		require.Len(t, got, 1)
		assert.Equal(t, datum.Int8{V: 7}, got[0].Bound.ListValues[0])
	})
}

func TestGenerateDefault(t *testing.T) {
	t.Run("default lands last but numbers first", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			rangeElem("", intExpr(1), intExpr(3), nil),
			{Name: "other", IsDefault: true},
		}}
		got := generate(t, rangeParent(), def)
		require.Len(t, got, 2)

		assert.Equal(t, "sales_1_prt_2", got[0].Name, "range child numbered after the default")
		assert.Equal(t, "sales_1_prt_other", got[1].Name)
		assert.True(t, got[1].Bound.IsDefault)
		assert.Empty(t, got[1].Bound.Lower)
		assert.Empty(t, got[1].Bound.Upper)
	})

	t.Run("multiple defaults rejected", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			{Name: "d1", IsDefault: true},
			{Name: "d2", IsDefault: true},
		}}
		se := generateErr(t, rangeParent(), def)
		assert.Equal(t, ErrDuplicateDefault, se.Kind)
		assert.Equal(t, "multiple default partitions are not allowed", se.Message)
		assert.Equal(t, "d2", se.Partition)
	})

	t.Run("default requires a name", func(t *testing.T) {
		def := &Definition{Elements: []Element{{IsDefault: true}}}
		se := generateErr(t, rangeParent(), def)
		assert.Equal(t, "default partition requires a name", se.Message)
	})

	t.Run("boundary on default rejected", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			{Name: "d", IsDefault: true, Range: &RangeSpec{Start: intExpr(1)}},
		}}
		se := generateErr(t, rangeParent(), def)
		assert.Equal(t, `invalid use of boundary specification in DEFAULT partition "d"`, se.Message)
	})

	t.Run("default works for list parents", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			{Name: "vals", List: &ListSpec{Values: [][]Expr{{*intExpr(1)}}}},
			{Name: "other", IsDefault: true},
		}}
		got := generate(t, listParent(), def)
		require.Len(t, got, 2)
		assert.Equal(t, "sales_1_prt_vals", got[0].Name)
		assert.True(t, got[1].Bound.IsDefault, "default sorts last")
	})
}

func TestGenerateTablename(t *testing.T) {
	t.Run("tablename overrides naming and suppresses every", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			{
				Name:    "q",
				Range:   &RangeSpec{Start: intExpr(1), End: intExpr(10), Every: intExpr(3)},
				Options: []Option{{Name: "tablename", Value: "legacy_tab"}, {Name: "appendonly", Value: "true"}},
			},
		}}
		got := generate(t, rangeParent(), def)
		require.Len(t, got, 1, "EVERY suppressed under a tablename override")

		assert.Equal(t, "legacy_tab", got[0].Name)
		assert.Equal(t, int32(1), lowerInt(t, got[0]))
		assert.Equal(t, int32(10), upperInt(t, got[0]))
		assert.Equal(t, []Option{{Name: "appendonly", Value: "true"}}, got[0].Options,
			"tablename entry stripped from the option bag")
	})

	t.Run("tablename does not spend a counter slot", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			{
				Range:   &RangeSpec{Start: intExpr(1), End: intExpr(5)},
				Options: []Option{{Name: "tablename", Value: "legacy_tab"}},
			},
			rangeElem("", intExpr(5), intExpr(9), nil),
		}}
		got := generate(t, rangeParent(), def)
		require.Len(t, got, 2)
		assert.Equal(t, []string{"legacy_tab", "sales_1_prt_1"}, names(got))
	})
}

func TestGenerateInheritance(t *testing.T) {
	t.Run("storage attributes flow from parent", func(t *testing.T) {
		parent := rangeParent()
		parent.Options = []Option{{Name: "fillfactor", Value: "70"}}
		parent.AccessMethod = "heap"
		parent.DistributedBy = []string{"j"}

		def := &Definition{Elements: []Element{
			rangeElem("a", intExpr(1), intExpr(5), nil),
		}}
		got := generate(t, parent, def)
		require.Len(t, got, 1)

		assert.Equal(t, parent.Options, got[0].Options)
		assert.Equal(t, "heap", got[0].AccessMethod)
		assert.Equal(t, []string{"j"}, got[0].DistributedBy)
	})

	t.Run("element attributes override the parent", func(t *testing.T) {
		parent := rangeParent()
		parent.Options = []Option{{Name: "fillfactor", Value: "70"}}
		parent.AccessMethod = "heap"

		def := &Definition{Elements: []Element{
			{
				Name:         "a",
				Range:        &RangeSpec{Start: intExpr(1), End: intExpr(5)},
				Options:      []Option{{Name: "fillfactor", Value: "90"}},
				AccessMethod: "ao_row",
				Tablespace:   "fast",
			},
		}}
		got := generate(t, parent, def)
		require.Len(t, got, 1)

		assert.Equal(t, []Option{{Name: "fillfactor", Value: "90"}}, got[0].Options)
		assert.Equal(t, "ao_row", got[0].AccessMethod)
		assert.Equal(t, "fast", got[0].Tablespace)
	})

	t.Run("column store elements merge encodings", func(t *testing.T) {
		zlib := Option{Name: "compresstype", Value: "zlib"}
		rle := Option{Name: "compresstype", Value: "rle_type"}

		parent := rangeParent()
		parent.AccessMethod = "aoco"
		parent.Encodings = []EncodingDirective{defEnc(rle)}

		def := &Definition{
			Encodings: []EncodingDirective{colEnc("a", zlib)},
			Elements: []Element{
				{
					Name:      "p",
					Range:     &RangeSpec{Start: intExpr(1), End: intExpr(5)},
					Encodings: []EncodingDirective{colEnc("b", zlib)},
				},
			},
		}
		got := generate(t, parent, def)
		require.Len(t, got, 1)

		encs := got[0].Encodings
		require.Len(t, encs, 3)
		assert.Equal(t, "b", encs[0].Column, "element's own directive first")
		assert.Equal(t, "a", encs[1].Column, "configuration column inherited")
		assert.True(t, encs[2].Default, "parent default inherited last")
	})

	t.Run("row store elements skip the merge", func(t *testing.T) {
		parent := rangeParent()
		parent.AccessMethod = "heap"
		parent.Encodings = []EncodingDirective{defEnc()}

		def := &Definition{Elements: []Element{
			rangeElem("p", intExpr(1), intExpr(5), nil),
		}}
		got := generate(t, parent, def)
		require.Len(t, got, 1)
		assert.Empty(t, got[0].Encodings)
	})

	t.Run("doubled element default still rejected off the merge path", func(t *testing.T) {
		def := &Definition{Elements: []Element{
			{
				Name:      "p",
				Range:     &RangeSpec{Start: intExpr(1), End: intExpr(5)},
				Encodings: []EncodingDirective{defEnc(), defEnc()},
			},
		}}
		se := generateErr(t, rangeParent(), def)
		assert.Equal(t, ErrDuplicateDefault, se.Kind)
		assert.Equal(t, "p", se.Partition)
	})
}

func TestGenerateDeterminism(t *testing.T) {
	def := &Definition{Elements: []Element{
		{Name: "other", IsDefault: true},
		rangeElem("", intExpr(1), intExpr(10), intExpr(3)),
		rangeElem("top", intExpr(10), intExpr(20), nil),
	}}

	run := func() []Child {
		g := NewGenerator(newFakeNamer(), nil)
		got, err := g.Generate(context.Background(), rangeParent(), def, nil)
		require.NoError(t, err)
		return got
	}

	first := run()
	second := run()
	assert.Equal(t, names(first), names(second), "fresh collaborators reproduce the same names")
	assert.Equal(t, first, second)
}

func TestGenerateTree(t *testing.T) {
	ctx := context.Background()

	subTemplate := &SubPartition{
		Strategy: StrategyList,
		Column:   "k",
		Type:     datum.TypeInt4,
		Def: &Definition{
			IsTemplate: true,
			Elements: []Element{
				{Name: "a", List: &ListSpec{Values: [][]Expr{{*intExpr(1)}}}},
				{Name: "oth", IsDefault: true},
			},
		},
	}

	t.Run("expands nested levels", func(t *testing.T) {
		store := newFakeTemplateStore()
		g := NewGenerator(newFakeNamer(), store)

		def := &Definition{Elements: []Element{
			rangeElem("", intExpr(1), intExpr(7), intExpr(3)),
		}}
		got, err := g.GenerateTree(ctx, rangeParent(), def, subTemplate)
		require.NoError(t, err)
		require.Len(t, got, 2)

		for _, c := range got {
			assert.Same(t, subTemplate, c.PartitionBy)
			require.Len(t, c.Children, 2)
			assert.Equal(t, c.Name+"_2_prt_a", c.Children[0].Name)
			assert.Equal(t, c.Name+"_2_prt_oth", c.Children[1].Name)
			assert.True(t, c.Children[1].Bound.IsDefault)
			assert.Equal(t, c.Name, c.Children[0].Parent)
		}
	})

	t.Run("stores the template once under the root", func(t *testing.T) {
		store := newFakeTemplateStore()
		g := NewGenerator(newFakeNamer(), store)

		def := &Definition{Elements: []Element{
			rangeElem("", intExpr(1), intExpr(7), intExpr(3)),
		}}
		_, err := g.GenerateTree(ctx, rangeParent(), def, subTemplate)
		require.NoError(t, err)

		assert.Equal(t, 1, store.calls)
		tpl, err := store.GetTemplate(ctx, "sales", 2)
		require.NoError(t, err)
		assert.Same(t, subTemplate.Def, tpl)
	})

	t.Run("per element definitions used when no template", func(t *testing.T) {
		sub := &SubPartition{Strategy: StrategyList, Column: "k", Type: datum.TypeInt4}
		def := &Definition{Elements: []Element{
			{
				Name:  "p",
				Range: &RangeSpec{Start: intExpr(1), End: intExpr(5)},
				SubDef: &Definition{Elements: []Element{
					{Name: "x", List: &ListSpec{Values: [][]Expr{{*intExpr(9)}}}},
				}},
			},
		}}
		g := NewGenerator(newFakeNamer(), nil)
		got, err := g.GenerateTree(ctx, rangeParent(), def, sub)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Len(t, got[0].Children, 1)
		assert.Equal(t, "sales_1_prt_p_2_prt_x", got[0].Children[0].Name)
	})

	t.Run("missing nested definition fails by depth", func(t *testing.T) {
		sub := &SubPartition{Strategy: StrategyList, Column: "k", Type: datum.TypeInt4}
		def := &Definition{Elements: []Element{
			rangeElem("p", intExpr(1), intExpr(5), nil),
		}}
		g := NewGenerator(newFakeNamer(), nil)
		_, err := g.GenerateTree(ctx, rangeParent(), def, sub)
		var se *SpecError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "no partitions specified at depth 2", se.Message)
		assert.Equal(t, "p", se.Partition)
	})

	t.Run("grandchildren inherit through the child", func(t *testing.T) {
		parent := rangeParent()
		parent.AccessMethod = "heap"
		parent.DistributedBy = []string{"j"}

		def := &Definition{Elements: []Element{
			rangeElem("p", intExpr(1), intExpr(5), nil),
		}}
		g := NewGenerator(newFakeNamer(), newFakeTemplateStore())
		got, err := g.GenerateTree(ctx, parent, def, subTemplate)
		require.NoError(t, err)
		require.Len(t, got, 1)

		for _, gc := range got[0].Children {
			assert.Equal(t, "heap", gc.AccessMethod)
			assert.Equal(t, []string{"j"}, gc.DistributedBy)
			assert.Equal(t, PersistencePermanent, gc.Persistence)
			assert.Equal(t, "dba", gc.Owner)
		}
	})
}
