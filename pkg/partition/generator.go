// Package partition expands legacy declarative partition specifications
// (START/END/EVERY ranges, VALUES lists, DEFAULT catch-alls, per-column
// ENCODING directives) into fully resolved child-table directives. The
// generator resolves implicit bounds, steps EVERY progressions with
// type-generic arithmetic, merges storage and encoding inheritance, and
// names every child, leaving nothing for the table-creation side to
// infer.
package partition

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tablekit/partgen/pkg/datum"
)

// Generator orchestrates one level of expansion. It is stateless across
// Generate calls; naming and template persistence go through the
// supplied collaborators.
type Generator struct {
	namer     Namer
	templates TemplateStore
}

// NewGenerator returns a generator using the given naming collaborator.
// templates may be nil when no template persistence is wanted.
func NewGenerator(namer Namer, templates TemplateStore) *Generator {
	return &Generator{namer: namer, templates: templates}
}

// elemState carries one element's effective attributes after
// inheritance and the tablename carve-out have been applied.
type elemState struct {
	elem      *Element
	options   []Option
	am        string
	encodings []EncodingDirective
	sub       *SubPartition
	subDef    *Definition
}

// namingContext tracks the per-level naming state: the hierarchy level,
// the running counter, and the per-element legacy tablename override.
type namingContext struct {
	level     int
	partnum   int
	tablename string
}

// Generate expands one level of the definition under the parent
// relation into an ordered child list. Range children come back sorted
// by bound with every implicit bound resolved; the default child, when
// present, is always last. Errors abort the whole call; no partial
// child set is returned.
func (g *Generator) Generate(ctx context.Context, parent *Relation, def *Definition, sub *SubPartition) ([]Child, error) {
	nctx := &namingContext{level: parent.Ancestors + 1}

	parentOptions, _ := extractTablename(parent.Options)

	configEnc, err := mergeEncodingDirectives(def.Encodings, parent.Encodings)
	if err != nil {
		return nil, err
	}

	elems, err := defaultFirst(def.Elements)
	if err != nil {
		return nil, err
	}

	var result []Child
	for i := range elems {
		elem := &elems[i]

		st, err := g.prepareElement(parent, elem, sub, parentOptions, configEnc, nctx)
		if err != nil {
			return nil, err
		}

		var children []Child
		switch {
		case elem.IsDefault:
			children, err = g.generateDefault(ctx, parent, st, nctx)
		case parent.Strategy == StrategyRange:
			children, err = g.generateRange(ctx, parent, st, nctx)
		case parent.Strategy == StrategyList:
			children, err = g.generateList(ctx, parent, st, nctx)
		default:
			err = specErrorf(ErrInvalidSpec, def.Loc, "unsupported partition strategy %q", parent.Strategy)
		}
		if err != nil {
			return nil, err
		}
		result = append(result, children...)
	}

	col, err := singleKeyColumn(parent)
	if err != nil {
		return nil, err
	}
	if parent.Strategy == StrategyRange {
		return resolveImplicitRangeBounds(result, col), nil
	}
	return orderSiblings(result, col), nil
}

// GenerateTree expands the definition recursively, filling each child's
// Children from its sub-partition level. Templates marked as such are
// stored once per level under the root relation's name.
func (g *Generator) GenerateTree(ctx context.Context, parent *Relation, def *Definition, sub *SubPartition) ([]Child, error) {
	return g.generateTree(ctx, parent, def, sub, parent.Name)
}

func (g *Generator) generateTree(ctx context.Context, parent *Relation, def *Definition, sub *SubPartition, root string) ([]Child, error) {
	if sub != nil && sub.Def != nil && sub.Def.IsTemplate && g.templates != nil {
		if err := g.templates.StoreTemplate(ctx, root, parent.Ancestors+2, sub.Def); err != nil {
			return nil, fmt.Errorf("error storing partition template: %w", err)
		}
	}

	children, err := g.Generate(ctx, parent, def, sub)
	if err != nil {
		return nil, err
	}

	for i := range children {
		child := &children[i]
		if sub == nil || child.subDef == nil {
			continue
		}
		childRel := &Relation{
			Name:          child.Name,
			Namespace:     child.Namespace,
			Persistence:   child.Persistence,
			Owner:         child.Owner,
			Strategy:      sub.Strategy,
			KeyColumns:    []KeyColumn{{Name: sub.Column, Type: sub.Type, Collation: sub.Collation}},
			Options:       child.Options,
			AccessMethod:  child.AccessMethod,
			Tablespace:    child.Tablespace,
			Encodings:     child.Encodings,
			DistributedBy: child.DistributedBy,
			Ancestors:     parent.Ancestors + 1,
		}
		grandchildren, err := g.generateTree(ctx, childRel, child.subDef, sub.Sub, root)
		if err != nil {
			return nil, err
		}
		child.Children = grandchildren
	}
	return children, nil
}

// prepareElement applies the tablename carve-out, option and access
// method inheritance, encoding merge for column-oriented storage, and
// sub-definition resolution for one element.
func (g *Generator) prepareElement(parent *Relation, elem *Element, sub *SubPartition, parentOptions []Option, configEnc []EncodingDirective, nctx *namingContext) (*elemState, error) {
	st := &elemState{elem: elem}

	if sub != nil {
		st.sub = sub
		if sub.Def != nil {
			st.subDef = sub.Def
		} else {
			st.subDef = elem.SubDef
		}
		if st.subDef == nil {
			return nil, &SpecError{
				Kind:      ErrInvalidSpec,
				Message:   fmt.Sprintf("no partitions specified at depth %d", nctx.level+1),
				Partition: elem.Name,
				Loc:       sub.Loc,
			}
		}
	}

	options, tablename := extractTablename(elem.Options)
	nctx.tablename = tablename
	if len(options) == 0 {
		options = parentOptions
	}
	st.options = options

	st.am = elem.AccessMethod
	if st.am == "" {
		st.am = parent.AccessMethod
	}

	// A doubled default directive is an element definition error even
	// when the merge below does not run.
	if _, _, err := splitEncodingDirectives(elem.Encodings); err != nil {
		se := err.(*SpecError)
		se.Partition = elem.Name
		return nil, se
	}

	st.encodings = elem.Encodings
	if st.am == "aoco" {
		merged, err := mergeEncodingDirectives(elem.Encodings, configEnc)
		if err != nil {
			return nil, err
		}
		st.encodings = merged
	}
	return st, nil
}

func (g *Generator) generateRange(ctx context.Context, parent *Relation, st *elemState, nctx *namingContext) ([]Child, error) {
	elem := st.elem
	if elem.Range == nil {
		if elem.List != nil {
			return nil, specErrorf(ErrInvalidSpec, elem.Loc, "invalid boundary specification for RANGE partition")
		}
		return nil, &SpecError{
			Kind:      ErrInvalidSpec,
			Message:   fmt.Sprintf("missing boundary specification in partition %q of type RANGE", elem.Name),
			Partition: elem.Name,
			Loc:       elem.Loc,
		}
	}

	col, err := singleKeyColumn(parent)
	if err != nil {
		return nil, err
	}

	spec := elem.Range
	every := spec.Every
	// A legacy tablename override names exactly one table, so EVERY
	// expansion is suppressed to reproduce historical restore behavior.
	if nctx.tablename != "" {
		every = nil
	}

	iter, err := newBoundIterator(col, spec.Start, spec.End, spec.EndInclusive, every, elem.Name)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var result []Child
	i := 0
	for {
		ok, err := iter.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		bound := BoundSpec{Strategy: StrategyRange}
		if spec.Start != nil {
			bound.Lower = []Bound{ValueBound(iter.currStart)}
		}
		if spec.End != nil {
			bound.Upper = []Bound{ValueBound(iter.currEnd)}
		}

		name := elem.Name
		if every != nil && elem.Name != "" {
			i++
			name = fmt.Sprintf("%s_%d", elem.Name, i)
		}

		child, err := g.makeChild(ctx, parent, name, bound, st, nctx)
		if err != nil {
			return nil, err
		}
		result = append(result, child)
	}
	return result, nil
}

func (g *Generator) generateList(ctx context.Context, parent *Relation, st *elemState, nctx *namingContext) ([]Child, error) {
	elem := st.elem
	if elem.List == nil {
		if elem.Range != nil {
			return nil, specErrorf(ErrInvalidSpec, elem.Loc, "invalid boundary specification for LIST partition")
		}
		return nil, &SpecError{
			Kind:      ErrInvalidSpec,
			Message:   fmt.Sprintf("missing boundary specification in partition %q of type LIST", elem.Name),
			Partition: elem.Name,
			Loc:       elem.Loc,
		}
	}

	col, err := singleKeyColumn(parent)
	if err != nil {
		return nil, err
	}

	bound := BoundSpec{Strategy: StrategyList, ListValues: make([]datum.Value, 0, len(elem.List.Values))}
	for _, tuple := range elem.List.Values {
		if len(tuple) != 1 {
			return nil, &SpecError{
				Kind:      ErrInvalidSpec,
				Message:   "VALUES specification with more than one column not allowed",
				Partition: elem.Name,
				Loc:       elem.List.Loc,
			}
		}
		e := tuple[0]
		if e.Value == nil {
			// NULL is a legal list membership value.
			bound.ListValues = append(bound.ListValues, nil)
			continue
		}
		v, err := transformBoundValue(col, &e, elem.Name)
		if err != nil {
			return nil, err
		}
		bound.ListValues = append(bound.ListValues, v)
	}

	child, err := g.makeChild(ctx, parent, elem.Name, bound, st, nctx)
	if err != nil {
		return nil, err
	}
	return []Child{child}, nil
}

func (g *Generator) generateDefault(ctx context.Context, parent *Relation, st *elemState, nctx *namingContext) ([]Child, error) {
	elem := st.elem
	if elem.Name == "" {
		return nil, specErrorf(ErrInvalidSpec, elem.Loc, "default partition requires a name")
	}
	if elem.Range != nil || elem.List != nil {
		return nil, &SpecError{
			Kind:      ErrInvalidSpec,
			Message:   fmt.Sprintf("invalid use of boundary specification in DEFAULT partition %q", elem.Name),
			Partition: elem.Name,
			Loc:       elem.Loc,
		}
	}

	bound := BoundSpec{Strategy: StrategyDefault, IsDefault: true}
	child, err := g.makeChild(ctx, parent, elem.Name, bound, st, nctx)
	if err != nil {
		return nil, err
	}
	return []Child{child}, nil
}

// makeChild assembles one child directive: a final name from the naming
// collaborator (or the legacy tablename override), the parent's
// identity attributes, and the element's effective storage attributes.
func (g *Generator) makeChild(ctx context.Context, parent *Relation, partName string, bound BoundSpec, st *elemState, nctx *namingContext) (Child, error) {
	var finalName string
	if nctx.tablename != "" {
		finalName = nctx.tablename
	} else {
		nctx.partnum++
		name, err := g.choosePartitionName(ctx, parent, nctx.level, partName, nctx.partnum)
		if err != nil {
			return Child{}, err
		}
		finalName = name
	}

	return Child{
		Name:          finalName,
		Namespace:     parent.Namespace,
		Persistence:   parent.Persistence,
		Owner:         parent.Owner,
		Parent:        parent.Name,
		Bound:         bound,
		Options:       st.options,
		AccessMethod:  st.am,
		Tablespace:    st.elem.Tablespace,
		Encodings:     st.encodings,
		DistributedBy: parent.DistributedBy,
		PartitionBy:   st.sub,
		subDef:        st.subDef,
	}, nil
}

// choosePartitionName derives the child name. Named elements build a
// deterministic parent_level_prt_name; unnamed ones spend a counter
// slot and go through sibling de-duplication.
func (g *Generator) choosePartitionName(ctx context.Context, parent *Relation, level int, partName string, partnum int) (string, error) {
	levelStr := strconv.Itoa(level)
	if partName != "" {
		return g.namer.MakeObjectName(parent.Name, levelStr, "prt_"+partName), nil
	}
	name, err := g.namer.ChooseRelationName(ctx, parent.Name, levelStr, "prt_"+strconv.Itoa(partnum), parent.Namespace)
	if err != nil {
		return "", fmt.Errorf("error choosing partition name: %w", err)
	}
	return name, nil
}

// defaultFirst moves the single allowed default element to the front of
// a copied element list so it takes the first counter slot, keeping the
// numbering of the remaining children compatible with historic names.
func defaultFirst(elems []Element) ([]Element, error) {
	var def *Element
	out := make([]Element, 0, len(elems))
	for i := range elems {
		elem := elems[i]
		if elem.IsDefault {
			if def != nil {
				return nil, &SpecError{
					Kind:      ErrDuplicateDefault,
					Message:   "multiple default partitions are not allowed",
					Partition: elem.Name,
					Loc:       elem.Loc,
				}
			}
			def = &elem
			continue
		}
		out = append(out, elem)
	}
	if def != nil {
		out = append([]Element{*def}, out...)
	}
	return out, nil
}

// extractTablename splits a legacy "tablename" entry out of an option
// bag, returning the remaining options unchanged in order.
func extractTablename(options []Option) ([]Option, string) {
	for i, o := range options {
		if o.Name == "tablename" {
			rest := make([]Option, 0, len(options)-1)
			rest = append(rest, options[:i]...)
			rest = append(rest, options[i+1:]...)
			return rest, o.Value
		}
	}
	return options, ""
}

func singleKeyColumn(parent *Relation) (KeyColumn, error) {
	if len(parent.KeyColumns) != 1 {
		if parent.Strategy == StrategyRange {
			return KeyColumn{}, specErrorf(ErrInvalidSpec, Location{},
				"too many columns for RANGE partition -- only one column is allowed")
		}
		return KeyColumn{}, specErrorf(ErrInvalidSpec, Location{},
			"partition key must have exactly one column")
	}
	return parent.KeyColumns[0], nil
}
