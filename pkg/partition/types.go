package partition

import (
	"context"
	"fmt"

	"github.com/tablekit/partgen/pkg/datum"
)

// Strategy assigns rows to children by value range, explicit value
// membership, or a catch-all default.
type Strategy string

const (
	StrategyRange   Strategy = "range"
	StrategyList    Strategy = "list"
	StrategyDefault Strategy = "default"
)

func (s Strategy) String() string { return string(s) }

// Persistence mirrors the parent relation's persistence level.
type Persistence string

const (
	PersistencePermanent Persistence = "permanent"
	PersistenceUnlogged  Persistence = "unlogged"
	PersistenceTemporary Persistence = "temporary"
)

// Location points at the clause in the source document a value came
// from. The zero value means the input was built programmatically.
type Location struct {
	Line   int
	Column int
}

func (l Location) IsZero() bool { return l.Line == 0 && l.Column == 0 }

func (l Location) String() string {
	return fmt.Sprintf("line %d, column %d", l.Line, l.Column)
}

// KeyColumn is one column of a parent's partition key.
type KeyColumn struct {
	Name      string
	Type      datum.Type
	Collation datum.Collation
}

// Relation carries the parent metadata the generator needs: identity,
// partition key, and the storage attributes children inherit.
type Relation struct {
	Name          string
	Namespace     string
	Persistence   Persistence
	Owner         string
	Strategy      Strategy
	KeyColumns    []KeyColumn
	Options       []Option
	AccessMethod  string
	Tablespace    string
	Encodings     []EncodingDirective
	DistributedBy []string
	// Ancestors is the relation's depth in an existing partition
	// hierarchy; the children generated here live at Ancestors+1.
	Ancestors int
}

// Option is one storage parameter from a WITH clause. The bag is
// opaque to the engine except for the legacy "tablename" entry.
type Option struct {
	Name  string
	Value string
}

// Expr is a literal bound or step value prior to evaluation. A nil
// Value is a NULL literal. Collate is set only when the source spelled
// an explicit COLLATE clause.
type Expr struct {
	Value   datum.Value
	Collate datum.Collation
	Loc     Location
}

// RangeSpec is the START/END/EVERY clause trio of a range element.
// Every field is optional; EndInclusive widens END by one unit step
// before iteration.
type RangeSpec struct {
	Start        *Expr
	End          *Expr
	EndInclusive bool
	Every        *Expr
	Loc          Location
}

// ListSpec enumerates the value tuples of a list element. Legacy
// syntax allows exactly one column per tuple.
type ListSpec struct {
	Values [][]Expr
	Loc    Location
}

// EncodingDirective configures physical column storage for one column,
// or for every column not otherwise named when Default is set.
type EncodingDirective struct {
	Column  string
	Default bool
	Options []Option
	Loc     Location
}

// Element is one partition clause of a definition: a name, exactly one
// of a range spec, a list spec or the default marker, plus per-element
// storage attributes and an optional nested definition.
type Element struct {
	Name         string
	Range        *RangeSpec
	List         *ListSpec
	IsDefault    bool
	Options      []Option
	AccessMethod string
	Tablespace   string
	Encodings    []EncodingDirective
	// SubDef is this element's own next-level definition, used when the
	// enclosing SubPartition carries no shared template.
	SubDef *Definition
	Loc    Location
}

// Definition is the ordered element list of one partition level,
// together with any configuration-level encoding directives declared
// alongside the elements.
type Definition struct {
	Elements   []Element
	Encodings  []EncodingDirective
	IsTemplate bool
	Loc        Location
}

// SubPartition declares the next level's partition key and, when the
// source used a shared template, the definition applied to every
// sibling at that level.
type SubPartition struct {
	Strategy  Strategy
	Column    string
	Type      datum.Type
	Collation datum.Collation
	Def       *Definition
	Sub       *SubPartition
	Loc       Location
}

// BoundSpec is a child's fully resolved bound: range lower/upper datum
// lists, list values, or the default marker.
type BoundSpec struct {
	Strategy  Strategy
	IsDefault bool
	Lower     []Bound
	Upper     []Bound
	// ListValues holds one scalar per tuple; a nil entry is NULL.
	ListValues []datum.Value
}

// Child is one generated child-table creation directive, sufficient
// for a table-creation collaborator to act on without further bound
// inference.
type Child struct {
	Name          string
	Namespace     string
	Persistence   Persistence
	Owner         string
	Parent        string
	Bound         BoundSpec
	Options       []Option
	AccessMethod  string
	Tablespace    string
	Encodings     []EncodingDirective
	DistributedBy []string
	// PartitionBy is the PARTITION BY clause the child itself carries
	// when another level nests below it.
	PartitionBy *SubPartition
	// Children holds the recursively expanded next level when the
	// tree-expansion entry point was used.
	Children []Child

	// subDef is the resolved next-level definition for this child:
	// the shared template, or the originating element's own SubDef.
	subDef *Definition
}

// Namer is the external naming collaborator. MakeObjectName joins
// parent name, level and suffix deterministically under the identifier
// length limit; ChooseRelationName additionally de-duplicates against
// relations that already exist in the namespace.
type Namer interface {
	MakeObjectName(name1, name2, label string) string
	ChooseRelationName(ctx context.Context, name1, name2, label, namespace string) (string, error)
}

// TemplateStore persists shared sub-partition templates keyed by root
// relation and level. Storing an already present key is a no-op.
type TemplateStore interface {
	StoreTemplate(ctx context.Context, relation string, level int, def *Definition) error
	GetTemplate(ctx context.Context, relation string, level int) (*Definition, error)
	RemoveTemplate(ctx context.Context, relation string, level int) error
}
