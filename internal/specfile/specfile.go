// Package specfile reads partition specification documents. The YAML is
// walked node by node rather than unmarshalled into structs so every
// bound, element and directive keeps its source line and column for
// error reporting.
package specfile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tablekit/partgen/pkg/datum"
	"github.com/tablekit/partgen/pkg/partition"
)

// Spec is a fully decoded specification document: the parent relation,
// its first-level definition, and the sub-partition chain when the
// document declares deeper levels.
type Spec struct {
	Relation     *partition.Relation
	Definition   *partition.Definition
	SubPartition *partition.SubPartition
}

// keyInfo is the partition key of one level; element bounds at that
// level are parsed against it.
type keyInfo struct {
	Type      datum.Type
	Collation datum.Collation
}

// Load reads and parses a specification file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading specification file: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes a specification document.
func Parse(data []byte) (*Spec, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("error parsing specification: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("specification document is empty")
	}
	return parseDocument(root.Content[0])
}

func parseDocument(doc *yaml.Node) (*Spec, error) {
	if doc.Kind != yaml.MappingNode {
		return nil, nodeErrf(doc, "specification must be a mapping")
	}

	rel := &partition.Relation{
		Namespace:   "public",
		Persistence: partition.PersistencePermanent,
	}
	var sub *partition.SubPartition
	var elemsNode, encsNode *yaml.Node

	for _, e := range mappingEntries(doc) {
		switch e.key.Value {
		case "table":
			if err := decodeTable(e.value, rel); err != nil {
				return nil, err
			}
		case "partition_by":
			s, err := decodePartitionBy(e.value, rel)
			if err != nil {
				return nil, err
			}
			sub = s
		case "partitions":
			elemsNode = e.value
		case "encodings":
			encsNode = e.value
		default:
			return nil, nodeErrf(e.key, "unknown specification key %q", e.key.Value)
		}
	}

	if rel.Name == "" {
		return nil, nodeErrf(doc, "table.name is required")
	}
	if rel.Strategy == "" {
		return nil, nodeErrf(doc, "partition_by is required")
	}
	if elemsNode == nil {
		return nil, nodeErrf(doc, "partitions is required")
	}

	def := &partition.Definition{Loc: nodeLoc(elemsNode)}
	col := keyInfo{Type: rel.KeyColumns[0].Type, Collation: rel.KeyColumns[0].Collation}
	elems, err := decodeElements(elemsNode, col, sub)
	if err != nil {
		return nil, err
	}
	def.Elements = elems

	if encsNode != nil {
		encs, err := decodeEncodings(encsNode)
		if err != nil {
			return nil, err
		}
		def.Encodings = encs
	}

	return &Spec{Relation: rel, Definition: def, SubPartition: sub}, nil
}

func decodeTable(node *yaml.Node, rel *partition.Relation) error {
	if node.Kind != yaml.MappingNode {
		return nodeErrf(node, "table must be a mapping")
	}
	for _, e := range mappingEntries(node) {
		switch e.key.Value {
		case "name":
			rel.Name = e.value.Value
		case "namespace":
			rel.Namespace = e.value.Value
		case "owner":
			rel.Owner = e.value.Value
		case "persistence":
			switch p := partition.Persistence(e.value.Value); p {
			case partition.PersistencePermanent, partition.PersistenceUnlogged, partition.PersistenceTemporary:
				rel.Persistence = p
			default:
				return nodeErrf(e.value, "unknown persistence %q", e.value.Value)
			}
		case "access_method":
			rel.AccessMethod = e.value.Value
		case "tablespace":
			rel.Tablespace = e.value.Value
		case "distributed_by":
			cols, err := decodeStringList(e.value)
			if err != nil {
				return err
			}
			rel.DistributedBy = cols
		case "options":
			opts, err := decodeOptions(e.value)
			if err != nil {
				return err
			}
			rel.Options = opts
		case "encodings":
			encs, err := decodeEncodings(e.value)
			if err != nil {
				return err
			}
			rel.Encodings = encs
		default:
			return nodeErrf(e.key, "unknown table key %q", e.key.Value)
		}
	}
	return nil
}

// decodePartitionBy fills the relation's own partition key and returns
// the decoded sub-partition chain, if any.
func decodePartitionBy(node *yaml.Node, rel *partition.Relation) (*partition.SubPartition, error) {
	strategy, column, typ, coll, subNode, err := decodeLevelKey(node, false)
	if err != nil {
		return nil, err
	}
	rel.Strategy = strategy
	rel.KeyColumns = []partition.KeyColumn{{Name: column, Type: typ, Collation: coll}}

	if subNode == nil {
		return nil, nil
	}
	return decodeSubPartition(subNode)
}

// decodeSubPartition decodes one subpartition_by block, including its
// optional shared definition and deeper nesting.
func decodeSubPartition(node *yaml.Node) (*partition.SubPartition, error) {
	strategy, column, typ, coll, subNode, err := decodeLevelKey(node, true)
	if err != nil {
		return nil, err
	}
	sub := &partition.SubPartition{
		Strategy:  strategy,
		Column:    column,
		Type:      typ,
		Collation: coll,
		Loc:       nodeLoc(node),
	}
	if subNode != nil {
		nested, err := decodeSubPartition(subNode)
		if err != nil {
			return nil, err
		}
		sub.Sub = nested
	}

	// The shared definition, when present, applies to every sibling at
	// this level.
	var elemsNode, encsNode *yaml.Node
	var isTemplate bool
	for _, e := range mappingEntries(node) {
		switch e.key.Value {
		case "template":
			if err := e.value.Decode(&isTemplate); err != nil {
				return nil, nodeErrf(e.value, "template must be a boolean")
			}
		case "partitions":
			elemsNode = e.value
		case "encodings":
			encsNode = e.value
		}
	}
	if isTemplate && elemsNode == nil {
		return nil, nodeErrf(node, "template requires partitions")
	}
	if elemsNode != nil {
		def := &partition.Definition{IsTemplate: isTemplate, Loc: nodeLoc(elemsNode)}
		col := keyInfo{Type: typ, Collation: coll}
		elems, err := decodeElements(elemsNode, col, sub.Sub)
		if err != nil {
			return nil, err
		}
		def.Elements = elems
		if encsNode != nil {
			encs, err := decodeEncodings(encsNode)
			if err != nil {
				return nil, err
			}
			def.Encodings = encs
		}
		sub.Def = def
	}
	return sub, nil
}

// decodeLevelKey reads the strategy/column/type/collate quartet shared
// by partition_by and subpartition_by blocks. Keys handled elsewhere
// are skipped when nested is set.
func decodeLevelKey(node *yaml.Node, nested bool) (partition.Strategy, string, datum.Type, datum.Collation, *yaml.Node, error) {
	if node.Kind != yaml.MappingNode {
		return "", "", "", "", nil, nodeErrf(node, "partition_by must be a mapping")
	}
	var (
		strategy partition.Strategy
		column   string
		typ      datum.Type
		coll     datum.Collation
		subNode  *yaml.Node
	)
	for _, e := range mappingEntries(node) {
		switch e.key.Value {
		case "strategy":
			switch s := partition.Strategy(strings.ToLower(e.value.Value)); s {
			case partition.StrategyRange, partition.StrategyList:
				strategy = s
			default:
				return "", "", "", "", nil, nodeErrf(e.value, "unknown partition strategy %q", e.value.Value)
			}
		case "column":
			column = e.value.Value
		case "type":
			t, err := datum.ParseType(e.value.Value)
			if err != nil {
				return "", "", "", "", nil, nodeErrf(e.value, "%v", err)
			}
			typ = t
		case "collate":
			coll = datum.Collation(e.value.Value)
		case "subpartition_by":
			subNode = e.value
		case "template", "partitions", "encodings":
			if !nested {
				return "", "", "", "", nil, nodeErrf(e.key, "key %q is only valid under subpartition_by", e.key.Value)
			}
		default:
			return "", "", "", "", nil, nodeErrf(e.key, "unknown partition_by key %q", e.key.Value)
		}
	}
	if strategy == "" {
		return "", "", "", "", nil, nodeErrf(node, "partition_by.strategy is required")
	}
	if column == "" {
		return "", "", "", "", nil, nodeErrf(node, "partition_by.column is required")
	}
	if typ == "" {
		return "", "", "", "", nil, nodeErrf(node, "partition_by.type is required")
	}
	return strategy, column, typ, coll, subNode, nil
}

func decodeElements(node *yaml.Node, col keyInfo, sub *partition.SubPartition) ([]partition.Element, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, nodeErrf(node, "partitions must be a sequence")
	}
	elems := make([]partition.Element, 0, len(node.Content))
	for _, item := range node.Content {
		elem, err := decodeElement(item, col, sub)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	return elems, nil
}

func decodeElement(node *yaml.Node, col keyInfo, sub *partition.SubPartition) (partition.Element, error) {
	var elem partition.Element
	if node.Kind != yaml.MappingNode {
		return elem, nodeErrf(node, "partition element must be a mapping")
	}
	elem.Loc = nodeLoc(node)

	var rangeSpec *partition.RangeSpec
	ensureRange := func(at *yaml.Node) *partition.RangeSpec {
		if rangeSpec == nil {
			rangeSpec = &partition.RangeSpec{Loc: nodeLoc(at)}
		}
		return rangeSpec
	}

	for _, e := range mappingEntries(node) {
		switch e.key.Value {
		case "name":
			elem.Name = e.value.Value
		case "default":
			if err := e.value.Decode(&elem.IsDefault); err != nil {
				return elem, nodeErrf(e.value, "default must be a boolean")
			}
		case "start":
			expr, err := decodeExpr(e.value, col)
			if err != nil {
				return elem, err
			}
			ensureRange(e.key).Start = expr
		case "end":
			expr, err := decodeExpr(e.value, col)
			if err != nil {
				return elem, err
			}
			ensureRange(e.key).End = expr
		case "inclusive_end":
			var incl bool
			if err := e.value.Decode(&incl); err != nil {
				return elem, nodeErrf(e.value, "inclusive_end must be a boolean")
			}
			ensureRange(e.key).EndInclusive = incl
		case "every":
			expr, err := decodeEvery(e.value, col)
			if err != nil {
				return elem, err
			}
			ensureRange(e.key).Every = expr
		case "values":
			values, err := decodeValues(e.value, col)
			if err != nil {
				return elem, err
			}
			elem.List = &partition.ListSpec{Values: values, Loc: nodeLoc(e.value)}
		case "tablename":
			elem.Options = append(elem.Options, partition.Option{Name: "tablename", Value: e.value.Value})
		case "options":
			opts, err := decodeOptions(e.value)
			if err != nil {
				return elem, err
			}
			elem.Options = append(elem.Options, opts...)
		case "access_method":
			elem.AccessMethod = e.value.Value
		case "tablespace":
			elem.Tablespace = e.value.Value
		case "encodings":
			encs, err := decodeEncodings(e.value)
			if err != nil {
				return elem, err
			}
			elem.Encodings = encs
		case "partitions":
			if sub == nil {
				return elem, nodeErrf(e.key, "nested partitions declared without subpartition_by")
			}
			nestedCol := keyInfo{Type: sub.Type, Collation: sub.Collation}
			nested, err := decodeElements(e.value, nestedCol, sub.Sub)
			if err != nil {
				return elem, err
			}
			elem.SubDef = &partition.Definition{Elements: nested, Loc: nodeLoc(e.value)}
		default:
			return elem, nodeErrf(e.key, "unknown partition element key %q", e.key.Value)
		}
	}

	elem.Range = rangeSpec
	return elem, nil
}

// decodeExpr parses a bound value. The short form is a plain scalar;
// the long form is a mapping with value and collate keys.
func decodeExpr(node *yaml.Node, col keyInfo) (*partition.Expr, error) {
	valueNode := node
	collate := datum.CollationDefault

	if node.Kind == yaml.MappingNode {
		valueNode = nil
		for _, e := range mappingEntries(node) {
			switch e.key.Value {
			case "value":
				valueNode = e.value
			case "collate":
				collate = datum.Collation(e.value.Value)
			default:
				return nil, nodeErrf(e.key, "unknown bound key %q", e.key.Value)
			}
		}
		if valueNode == nil {
			return nil, nodeErrf(node, "bound mapping requires a value")
		}
	}

	if valueNode.Kind != yaml.ScalarNode {
		return nil, nodeErrf(valueNode, "bound must be a scalar")
	}
	if valueNode.Tag == "!!null" {
		return &partition.Expr{Value: nil, Collate: collate, Loc: nodeLoc(valueNode)}, nil
	}
	v, err := datum.Parse(col.Type, valueNode.Value)
	if err != nil {
		return nil, nodeErrf(valueNode, "%v", err)
	}
	return &partition.Expr{Value: v, Collate: collate, Loc: nodeLoc(valueNode)}, nil
}

// decodeEvery parses the EVERY step. Time-family keys take interval
// syntax; everything else parses as the key column type.
func decodeEvery(node *yaml.Node, col keyInfo) (*partition.Expr, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, nodeErrf(node, "every must be a scalar")
	}
	if node.Tag == "!!null" {
		return &partition.Expr{Value: nil, Loc: nodeLoc(node)}, nil
	}
	switch col.Type {
	case datum.TypeDate, datum.TypeTimestamp, datum.TypeTimestampTZ:
		iv, err := datum.ParseInterval(node.Value)
		if err != nil {
			return nil, nodeErrf(node, "%v", err)
		}
		return &partition.Expr{Value: iv, Loc: nodeLoc(node)}, nil
	}
	v, err := datum.Parse(col.Type, node.Value)
	if err != nil {
		return nil, nodeErrf(node, "%v", err)
	}
	return &partition.Expr{Value: v, Loc: nodeLoc(node)}, nil
}

// decodeValues parses a list element's VALUES. Each entry is either a
// scalar (one-column tuple) or a sequence spelling the tuple out.
func decodeValues(node *yaml.Node, col keyInfo) ([][]partition.Expr, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, nodeErrf(node, "values must be a sequence")
	}
	tuples := make([][]partition.Expr, 0, len(node.Content))
	for _, item := range node.Content {
		entries := []*yaml.Node{item}
		if item.Kind == yaml.SequenceNode {
			entries = item.Content
		}
		tuple := make([]partition.Expr, 0, len(entries))
		for _, entry := range entries {
			expr, err := decodeExpr(entry, col)
			if err != nil {
				return nil, err
			}
			tuple = append(tuple, *expr)
		}
		tuples = append(tuples, tuple)
	}
	return tuples, nil
}

func decodeEncodings(node *yaml.Node) ([]partition.EncodingDirective, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, nodeErrf(node, "encodings must be a sequence")
	}
	encs := make([]partition.EncodingDirective, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return nil, nodeErrf(item, "encoding directive must be a mapping")
		}
		enc := partition.EncodingDirective{Loc: nodeLoc(item)}
		for _, e := range mappingEntries(item) {
			switch e.key.Value {
			case "column":
				enc.Column = e.value.Value
			case "default":
				if err := e.value.Decode(&enc.Default); err != nil {
					return nil, nodeErrf(e.value, "default must be a boolean")
				}
			case "options":
				opts, err := decodeOptions(e.value)
				if err != nil {
					return nil, err
				}
				enc.Options = opts
			default:
				return nil, nodeErrf(e.key, "unknown encoding key %q", e.key.Value)
			}
		}
		if enc.Default == (enc.Column != "") {
			return nil, nodeErrf(item, "encoding directive needs either a column or default")
		}
		encs = append(encs, enc)
	}
	return encs, nil
}

// decodeOptions reads a mapping into an option list, preserving the
// document order.
func decodeOptions(node *yaml.Node) ([]partition.Option, error) {
	if node.Kind != yaml.MappingNode {
		return nil, nodeErrf(node, "options must be a mapping")
	}
	opts := make([]partition.Option, 0, len(node.Content)/2)
	for _, e := range mappingEntries(node) {
		if e.value.Kind != yaml.ScalarNode {
			return nil, nodeErrf(e.value, "option %q must be a scalar", e.key.Value)
		}
		opts = append(opts, partition.Option{Name: e.key.Value, Value: e.value.Value})
	}
	return opts, nil
}

func decodeStringList(node *yaml.Node) ([]string, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, nodeErrf(node, "expected a sequence")
	}
	out := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		out = append(out, item.Value)
	}
	return out, nil
}

type mapEntry struct {
	key   *yaml.Node
	value *yaml.Node
}

// mappingEntries flattens a mapping node into key/value pairs in
// document order.
func mappingEntries(node *yaml.Node) []mapEntry {
	entries := make([]mapEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		entries = append(entries, mapEntry{key: node.Content[i], value: node.Content[i+1]})
	}
	return entries
}

func nodeLoc(node *yaml.Node) partition.Location {
	return partition.Location{Line: node.Line, Column: node.Column}
}

func nodeErrf(node *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d, column %d: %s", node.Line, node.Column, fmt.Sprintf(format, args...))
}
